// Package movement implements movement classes: per-class terrain traversal
// rules, the terrain model they are evaluated against, and the precomputed
// walkability grids the pathfinder searches.
package movement

import (
	"fmt"
)

// ClassDefinition is a named set of traversal constraints shared by many unit
// types. Depths and slopes are in heightmap units.
type ClassDefinition struct {
	Name          string
	FootprintX    int
	FootprintZ    int
	MinWaterDepth int
	MaxWaterDepth int
	MaxSlope      int
	MaxWaterSlope int
}

// NewClassDefinition returns a class with the engine defaults: any water
// depth from 0 to 255, any slope, and a water slope equal to the land slope.
func NewClassDefinition(name string, footprintX, footprintZ int) ClassDefinition {
	return ClassDefinition{
		Name:          name,
		FootprintX:    footprintX,
		FootprintZ:    footprintZ,
		MinWaterDepth: 0,
		MaxWaterDepth: 255,
		MaxSlope:      255,
		MaxWaterSlope: 255,
	}
}

// Misconfigured reports whether the record can never be satisfied. Such a
// class is treated as impassable everywhere.
func (c ClassDefinition) Misconfigured() bool {
	return c.FootprintX <= 0 || c.FootprintZ <= 0 || c.MinWaterDepth > c.MaxWaterDepth
}

// ValidationError contains details about an invalid class record.
type ValidationError struct {
	Code    string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Validate checks a class record at load time.
// Checks:
//   - footprint is at least 1x1
//   - min water depth does not exceed max water depth
func (c ClassDefinition) Validate() error {
	if c.FootprintX <= 0 || c.FootprintZ <= 0 {
		return ValidationError{
			Code:    "BAD_FOOTPRINT",
			Message: fmt.Sprintf("class %q has footprint %dx%d", c.Name, c.FootprintX, c.FootprintZ),
		}
	}
	if c.MinWaterDepth > c.MaxWaterDepth {
		return ValidationError{
			Code:    "BAD_WATER_DEPTH",
			Message: fmt.Sprintf("class %q has min water depth %d above max %d", c.Name, c.MinWaterDepth, c.MaxWaterDepth),
		}
	}
	return nil
}
