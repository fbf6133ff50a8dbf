package tohost

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const managerTestConfig = `---
control:
  disabled: true
netstack:
  address: 192.0.2.2
stages:
  - name: ns
    device: eth0
    sink: netstack
    allow_nonexistent: true
    quiet: true
`

func readHandlerEventually(t *testing.T, m *manager, name, expected string) {
	t.Helper()

	require.Eventually(t, func() bool {
		value, err := m.handlers.Read(name)

		return err == nil && value == expected
	}, 5*time.Second, 10*time.Millisecond)
}

func TestManagerRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tohost.yaml")
	require.NoError(t, os.WriteFile(path, []byte(managerTestConfig), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := NewMemoryRegistry(testLogger())

	m, err := newManager(
		WithContext(ctx),
		WithLogger(testLogger()),
		WithConfigFile(path),
		WithRegistry(registry),
		WithLiveReload(true),
	)
	require.NoError(t, err)

	runErr := make(chan error, 1)

	go func() {
		runErr <- m.Run()
	}()

	readHandlerEventually(t, m, "ns.state", "unbound")

	require.NoError(t, registry.Add(testDevice("eth0", 2, testDstMAC)))

	readHandlerEventually(t, m, "ns.state", "bound")
	readHandlerEventually(t, m, "ns.device", "eth0")

	updated := managerTestConfig + `  - name: other
    sink: netstack
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	readHandlerEventually(t, m, "other.state", "unbound")
	// the restarted stage finds the device that is already registered
	readHandlerEventually(t, m, "ns.state", "bound")

	cancel()

	select {
	case err = <-runErr:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not stop")
	}

	_, err = m.handlers.Read("ns.state")
	require.ErrorIs(t, err, ErrHandler)
}

func TestManagerMissingDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tohost.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`---
control:
  disabled: true
stages:
  - name: ns
    device: eth0
    sink: netstack
`), 0o600))

	m, err := newManager(
		WithLogger(testLogger()),
		WithConfigFile(path),
		WithRegistry(NewMemoryRegistry(testLogger())),
	)
	require.NoError(t, err)

	require.ErrorIs(t, m.Run(), ErrBind)
}

func TestNewManagerBadConfig(t *testing.T) {
	_, err := NewManager(WithLogger(testLogger()), WithConfigFile(filepath.Join(t.TempDir(), "nope")))
	require.Error(t, err)

	//nolint:staticcheck
	_, err = NewManager(WithContext(nil))
	require.ErrorIs(t, err, ErrConfig)
}
