package display

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/arcnmx/screenstub-go/internal/config"
	"github.com/arcnmx/screenstub-go/internal/qemu"
)

// Emulator is the subset of *qemu.Qemu the Source Switcher depends on,
// narrowed to an interface so tests can exercise GuestWait/GuestExec methods
// without a real QEMU socket.
type Emulator interface {
	ExecuteQGA(ctx context.Context, name string, args any) (json.RawMessage, error)
	GuestExec(ctx context.Context, argv []string) (qemu.GuestExecStatus, error)
}

// Sources is the Source Switcher: it holds the ordered host/guest method
// lists, the cached DDC monitor connection, and the showing_guest flag that
// the Event Loop and lifecycle coordinator read to decide which side is
// currently live.
type Sources struct {
	qemu   Emulator
	search DdcSearch

	hostMethods  []config.Method
	guestMethods []config.Method

	showingGuest atomic.Bool

	mu          sync.Mutex
	sourceHost  *byte
	sourceGuest *byte

	ddcMu sync.Mutex
	ddc   MonitorHandle

	// connect is a seam over connectBackend so tests can substitute a fake
	// monitor instead of touching real i2c buses.
	connect func(config.MethodKind, DdcSearch) (MonitorHandle, error)
}

// New builds a Sources for one screen's monitor/source/method configuration.
func New(q Emulator, monitor config.Monitor, hostSource, guestSource config.Source, hostMethods, guestMethods []config.Method) *Sources {
	s := &Sources{
		qemu:         q,
		search:       NewSearch(monitor),
		hostMethods:  hostMethods,
		guestMethods: guestMethods,
		connect:      connectBackend,
	}
	if hostSource.Set {
		v := hostSource.Value
		s.sourceHost = &v
	}
	if guestSource.Set {
		v := guestSource.Value
		s.sourceGuest = &v
	}
	return s
}

func connectBackend(kind config.MethodKind, search DdcSearch) (MonitorHandle, error) {
	switch kind {
	case config.MethodLibddcutil:
		return nil, ErrLibddcutilUnavailable
	case config.MethodDdcutil:
		return nil, ErrDdcutilCLIUnimplemented
	default:
		monitors, err := EnumerateI2C()
		if err != nil {
			return nil, err
		}
		for _, m := range monitors {
			if m.Matches(search) {
				return m, nil
			}
		}
		return nil, fmt.Errorf("display: no DDC monitor matched %+v", search)
	}
}

// ShowingGuest reports which side is currently believed to be live.
func (s *Sources) ShowingGuest() bool {
	return s.showingGuest.Load()
}

// Fill iterates the host method list and, for any source still unset, opens
// a DDC connection and fills source_host (by querying the current VCP 0x60
// value) and source_guest (the first other-than-host value in the
// monitor's source list) from it.
func (s *Sources) Fill() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, method := range s.hostMethods {
		if s.sourceHost != nil && s.sourceGuest != nil {
			break
		}

		mon, err := s.ddcConnect(method)
		if err != nil {
			return err
		}

		if s.sourceHost == nil {
			source, err := mon.GetSource()
			if err != nil {
				return fmt.Errorf("query current source: %w", err)
			}
			s.sourceHost = &source
		}

		if s.sourceGuest == nil {
			sources, err := mon.Sources()
			if err != nil {
				return fmt.Errorf("query source list: %w", err)
			}
			if guest, ok := FindGuestSource(sources, *s.sourceHost); ok {
				s.sourceGuest = &guest
			}
		}
	}
	return nil
}

func (s *Sources) ddcConnect(method config.Method) (MonitorHandle, error) {
	s.ddcMu.Lock()
	defer s.ddcMu.Unlock()
	if s.ddc != nil {
		return s.ddc, nil
	}
	mon, err := s.connect(method.Kind, s.search)
	if err != nil {
		return nil, err
	}
	s.ddc = mon
	return mon, nil
}

func (s *Sources) sourceFor(host bool) (byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ptr := s.sourceGuest
	if host {
		ptr = s.sourceHost
	}
	if ptr == nil {
		return 0, false
	}
	return *ptr, true
}

// ShowHost switches to the host side; ShowGuest switches to the guest side.
func (s *Sources) ShowHost(ctx context.Context) error { return s.show(ctx, true) }
func (s *Sources) ShowGuest(ctx context.Context) error { return s.show(ctx, false) }

// show runs the target direction's method list, but only when the switch
// is actually needed (showingGuest() == host, i.e. the live side is
// currently the opposite of what's being requested) — calling ShowHost
// twice in a row runs the method list at most once. showingGuest is flipped
// before the methods run, matching the original's "toggle state, then
// await" ordering (spec §5's "no suspension point while holding state").
func (s *Sources) show(ctx context.Context, host bool) error {
	run := s.showingGuest.Load() == host

	var methods []config.Method
	if run {
		if host {
			methods = s.hostMethods
		} else {
			methods = s.guestMethods
		}
	}

	s.showingGuest.Store(!host)

	for _, method := range methods {
		if err := s.runMethod(ctx, host, method); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sources) runMethod(ctx context.Context, host bool, method config.Method) error {
	switch method.Kind {
	case config.MethodGuestWait:
		_, err := s.qemu.ExecuteQGA(ctx, "guest-ping", nil)
		return err

	case config.MethodDdc, config.MethodLibddcutil, config.MethodDdcutil:
		mon, err := s.ddcConnect(method)
		if err != nil {
			return err
		}
		source, ok := s.sourceFor(host)
		if !ok {
			return fmt.Errorf("display: %s source not found", directionName(host))
		}
		return mon.SetSource(source)

	case config.MethodExec:
		argv, err := s.mapArgv(method.Argv, host)
		if err != nil {
			return err
		}
		return runExec(ctx, argv)

	case config.MethodGuestExec:
		argv, err := s.mapArgv(method.Argv, host)
		if err != nil {
			return err
		}
		_, err = s.qemu.GuestExec(ctx, argv)
		return err

	default:
		return fmt.Errorf("display: unknown switch method %q", method.Kind)
	}
}

func (s *Sources) mapArgv(argv []string, host bool) ([]string, error) {
	source, ok := s.sourceFor(host)
	if !ok {
		return nil, fmt.Errorf("display: %s source not found", directionName(host))
	}
	mapped := make([]string, len(argv))
	for i, a := range argv {
		mapped[i] = mapSourceArg(a, source)
	}
	return mapped, nil
}

// mapSourceArg substitutes the three placeholder grammars the original's
// map_source_arg recognizes; anything else passes through unchanged.
func mapSourceArg(s string, source byte) string {
	switch s {
	case "{}":
		return strconv.Itoa(int(source))
	case "{:x}":
		return fmt.Sprintf("%02x", source)
	case "0x{:x}":
		return fmt.Sprintf("0x%02x", source)
	default:
		return s
	}
}

func directionName(host bool) string {
	if host {
		return "host"
	}
	return "guest"
}

func runExec(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return errors.New("display: exec method missing a command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	return cmd.Run()
}
