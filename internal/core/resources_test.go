package core

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCloser struct {
	name  string
	order *[]string
	err   error
}

func (f fakeCloser) Close() error {
	*f.order = append(*f.order, f.name)
	return f.err
}

func TestResourcesCloseReverseOrder(t *testing.T) {
	var order []string
	r := NewResources(log.New(io.Discard))
	require.NoError(t, r.Own("store", fakeCloser{"store", &order, nil}))
	require.NoError(t, r.Own("server", fakeCloser{"server", &order, nil}))

	require.NoError(t, r.Close())
	assert.Equal(t, []string{"server", "store"}, order)

	require.NoError(t, r.Close(), "second close is a no-op")
	assert.Len(t, order, 2)
}

func TestResourcesCloseJoinsErrors(t *testing.T) {
	var order []string
	boom := errors.New("boom")
	r := NewResources(log.New(io.Discard))
	require.NoError(t, r.Own("a", fakeCloser{"a", &order, boom}))
	require.NoError(t, r.Own("b", fakeCloser{"b", &order, nil}))

	err := r.Close()
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "closing a")
	assert.Equal(t, []string{"b", "a"}, order, "later resources still close")
}

func TestResourcesOwnAfterClose(t *testing.T) {
	var order []string
	r := NewResources(nil)
	require.NoError(t, r.Close())
	require.NoError(t, r.Own("late", fakeCloser{"late", &order, nil}))
	assert.Equal(t, []string{"late"}, order)
}

func TestNewLoggerVerbose(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "test", false)
	logger.Debug("hidden")
	assert.Empty(t, buf.String())

	logger = NewLogger(&buf, "test", true)
	logger.Debug("shown", "k", 1)
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "test")
}
