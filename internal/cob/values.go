package cob

import "strconv"

// ValueID names a unit value readable through GET_UNIT_VALUE and GET, or
// writable through SET_UNIT_VALUE.
type ValueID int32

const (
	ValueActivation           ValueID = 1
	ValueStandingMoveOrders   ValueID = 2
	ValueStandingFireOrders   ValueID = 3
	ValueHealth               ValueID = 4
	ValueInBuildStance        ValueID = 5
	ValueBusy                 ValueID = 6
	ValuePieceXZ              ValueID = 7
	ValuePieceY               ValueID = 8
	ValueUnitXZ               ValueID = 9
	ValueUnitY                ValueID = 10
	ValueUnitHeight           ValueID = 11
	ValueXZAtan               ValueID = 12
	ValueXZHypot              ValueID = 13
	ValueAtan                 ValueID = 14
	ValueHypot                ValueID = 15
	ValueGroundHeight         ValueID = 16
	ValueBuildPercentLeft     ValueID = 17
	ValueYardOpen             ValueID = 18
	ValueBuggerOff            ValueID = 19
	ValueArmored              ValueID = 20
	ValueVeteranLevel         ValueID = 32
	ValueMinID                ValueID = 69
	ValueMaxID                ValueID = 70
	ValueMyID                 ValueID = 71
	ValueUnitTeam             ValueID = 72
	ValueUnitBuildPercentLeft ValueID = 73
	ValueUnitAllied           ValueID = 74

	// ValuePlaySound is an engine extension; writing it emits a sound cue.
	ValuePlaySound ValueID = 200
)

var valueNames = map[ValueID]string{
	ValueActivation:           "ACTIVATION",
	ValueStandingMoveOrders:   "STANDINGMOVEORDERS",
	ValueStandingFireOrders:   "STANDINGFIREORDERS",
	ValueHealth:               "HEALTH",
	ValueInBuildStance:        "INBUILDSTANCE",
	ValueBusy:                 "BUSY",
	ValuePieceXZ:              "PIECE_XZ",
	ValuePieceY:               "PIECE_Y",
	ValueUnitXZ:               "UNIT_XZ",
	ValueUnitY:                "UNIT_Y",
	ValueUnitHeight:           "UNIT_HEIGHT",
	ValueXZAtan:               "XZ_ATAN",
	ValueXZHypot:              "XZ_HYPOT",
	ValueAtan:                 "ATAN",
	ValueHypot:                "HYPOT",
	ValueGroundHeight:         "GROUND_HEIGHT",
	ValueBuildPercentLeft:     "BUILD_PERCENT_LEFT",
	ValueYardOpen:             "YARD_OPEN",
	ValueBuggerOff:            "BUGGER_OFF",
	ValueArmored:              "ARMORED",
	ValueVeteranLevel:         "VETERAN_LEVEL",
	ValueMinID:                "MIN_ID",
	ValueMaxID:                "MAX_ID",
	ValueMyID:                 "MY_ID",
	ValueUnitTeam:             "UNIT_TEAM",
	ValueUnitBuildPercentLeft: "UNIT_BUILD_PERCENT_LEFT",
	ValueUnitAllied:           "UNIT_ALLIED",
	ValuePlaySound:            "PLAY_SOUND",
}

var valuesByName = func() map[string]ValueID {
	m := make(map[string]ValueID, len(valueNames))
	for id, name := range valueNames {
		m[name] = id
	}
	return m
}()

// LookupValue resolves a value name such as "ACTIVATION".
func LookupValue(name string) (ValueID, bool) {
	id, ok := valuesByName[name]
	return id, ok
}

func (v ValueID) String() string {
	if name, ok := valueNames[v]; ok {
		return name
	}
	return "VALUE_" + strconv.Itoa(int(v))
}
