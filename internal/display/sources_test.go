package display

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcnmx/screenstub-go/internal/config"
	"github.com/arcnmx/screenstub-go/internal/qemu"
)

type fakeMonitor struct {
	mu      sync.Mutex
	source  byte
	sources []byte
	sets    []byte
}

func (f *fakeMonitor) String() string        { return "fake monitor" }
func (f *fakeMonitor) Matches(DdcSearch) bool { return true }
func (f *fakeMonitor) Sources() ([]byte, error) {
	return f.sources, nil
}
func (f *fakeMonitor) GetSource() (byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.source, nil
}
func (f *fakeMonitor) SetSource(v byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.source = v
	f.sets = append(f.sets, v)
	return nil
}

type fakeEmulator struct {
	mu        sync.Mutex
	qgaCalls  []string
	execArgv  [][]string
}

func (f *fakeEmulator) ExecuteQGA(ctx context.Context, name string, args any) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.qgaCalls = append(f.qgaCalls, name)
	return json.RawMessage(`{}`), nil
}

func (f *fakeEmulator) GuestExec(ctx context.Context, argv []string) (qemu.GuestExecStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execArgv = append(f.execArgv, argv)
	zero := 0
	return qemu.GuestExecStatus{Exited: true, ExitCode: &zero}, nil
}

func TestFillDiscoversHostAndGuestSource(t *testing.T) {
	mon := &fakeMonitor{source: 0x11, sources: []byte{0x11, 0x0f, 0x12}}
	s := New(&fakeEmulator{}, config.Monitor{}, config.Source{}, config.Source{},
		[]config.Method{{Kind: config.MethodDdc}}, nil)
	s.connect = func(config.MethodKind, DdcSearch) (MonitorHandle, error) { return mon, nil }

	require.NoError(t, s.Fill())

	host, ok := s.sourceFor(true)
	require.True(t, ok)
	assert.Equal(t, byte(0x11), host)

	guest, ok := s.sourceFor(false)
	require.True(t, ok)
	assert.Equal(t, byte(0x0f), guest, "guest source must be the first value that isn't the host source")
}

func TestFillSkipsDiscoveryWhenBothSourcesConfigured(t *testing.T) {
	called := false
	s := New(&fakeEmulator{}, config.Monitor{},
		config.Source{Value: 0x11, Set: true}, config.Source{Value: 0x0f, Set: true},
		[]config.Method{{Kind: config.MethodDdc}}, nil)
	s.connect = func(config.MethodKind, DdcSearch) (MonitorHandle, error) {
		called = true
		return nil, nil
	}

	require.NoError(t, s.Fill())
	assert.False(t, called, "fill must not open a DDC connection when both sources are already configured")
}

func TestShowHostRunsGuestWaitDdcAndExecInOrder(t *testing.T) {
	mon := &fakeMonitor{}
	emu := &fakeEmulator{}
	s := New(emu, config.Monitor{}, config.Source{Value: 0x11, Set: true}, config.Source{Value: 0x0f, Set: true},
		[]config.Method{
			{Kind: config.MethodGuestWait},
			{Kind: config.MethodDdc},
			{Kind: config.MethodExec, Argv: []string{"screenstub-test-nonexistent-binary-xyz", "{:x}"}},
		}, nil)
	s.connect = func(config.MethodKind, DdcSearch) (MonitorHandle, error) { return mon, nil }

	// Start "showing guest" so ShowHost actually has work to do.
	s.showingGuest.Store(true)

	err := s.ShowHost(context.Background())
	require.Error(t, err, "exec'ing a nonexistent binary must surface as an error")

	require.Len(t, emu.qgaCalls, 1)
	assert.Equal(t, "guest-ping", emu.qgaCalls[0])
	require.Len(t, mon.sets, 1)
	assert.Equal(t, byte(0x11), mon.sets[0])
	assert.False(t, s.ShowingGuest())
}

func TestShowHostTwiceRunsMethodsAtMostOnce(t *testing.T) {
	mon := &fakeMonitor{}
	emu := &fakeEmulator{}
	s := New(emu, config.Monitor{}, config.Source{Value: 0x11, Set: true}, config.Source{Value: 0x0f, Set: true},
		[]config.Method{{Kind: config.MethodDdc}}, nil)
	s.connect = func(config.MethodKind, DdcSearch) (MonitorHandle, error) { return mon, nil }

	s.showingGuest.Store(true)

	require.NoError(t, s.ShowHost(context.Background()))
	require.NoError(t, s.ShowHost(context.Background()))

	assert.Len(t, mon.sets, 1, "a second ShowHost while already on host must be a no-op")
}

func TestMapSourceArgPlaceholders(t *testing.T) {
	assert.Equal(t, "17", mapSourceArg("{}", 0x11))
	assert.Equal(t, "11", mapSourceArg("{:x}", 0x11))
	assert.Equal(t, "0x11", mapSourceArg("0x{:x}", 0x11))
	assert.Equal(t, "notify", mapSourceArg("notify", 0x11))
}
