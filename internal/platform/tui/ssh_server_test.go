package tui

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/lockstep/internal/registry"
)

func TestSSHServerSessions(t *testing.T) {
	catalog, err := registry.NewCatalog()
	require.NoError(t, err)

	cfg := DefaultSSHServerConfig()
	cfg.Address = "127.0.0.1:0"
	cfg.HostKeyPath = filepath.Join(t.TempDir(), "keys", "host_key")
	srv, err := NewSSHServer(cfg, catalog, nil, log.New(io.Discard))
	require.NoError(t, err)
	defer srv.Close()

	m, err := srv.NewSession("alice", nil)
	require.NoError(t, err)
	defer m.Close()
	assert.Equal(t, "Skirmish: spectating as alice", m.opts.Title)

	b1, err := srv.NewSession("bob", []string{"bridge"})
	require.NoError(t, err)
	defer b1.Close()
	b2, err := srv.NewSession("carol", []string{"bridge"})
	require.NoError(t, err)
	defer b2.Close()
	assert.NotSame(t, b1.sim, b2.sim, "each session runs its own simulation")
	assert.Same(t, b1.sim.World(), b2.sim.World(), "worlds are shared")

	_, err = srv.NewSession("dave", []string{"nowhere"})
	assert.ErrorIs(t, err, registry.ErrUnknownScenario)
}
