package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arcnmx/screenstub-go/internal/config"
	"github.com/arcnmx/screenstub-go/internal/display"
	"github.com/arcnmx/screenstub-go/internal/hotkey"
	"github.com/arcnmx/screenstub-go/internal/inputevent"
	"github.com/arcnmx/screenstub-go/internal/logger"
	"github.com/arcnmx/screenstub-go/internal/process"
	"github.com/arcnmx/screenstub-go/internal/qemu"
	"github.com/arcnmx/screenstub-go/internal/remap"
	"github.com/arcnmx/screenstub-go/internal/route"
	"github.com/arcnmx/screenstub-go/internal/xadapter"
)

var (
	configPath string
	logToFile  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run screenstub, switching input and display between host and guest",
	Long: `Run loads screenstub.toml, connects to every configured screen's QEMU
instance, and runs each screen's event loop until interrupted.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to screenstub.toml (default: search the standard config path)")
	runCmd.Flags().BoolVarP(&logToFile, "log-file", "l", false, "Write logs to a file under the standard log directory instead of stderr")
	viper.BindPFlag("config", runCmd.Flags().Lookup("config"))
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if len(cfg.Screens) == 0 {
		return fmt.Errorf("config has no screens configured; run 'screenstub init' first")
	}

	if logToFile {
		logFile, err := logger.SetupFileLogging("RUN")
		if err != nil {
			return fmt.Errorf("setting up file logging: %w", err)
		}
		defer logFile.Close()
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, len(cfg.Screens))
	for i := range cfg.Screens {
		screen := cfg.Screens[i]
		go func(id int, s config.Screen) {
			if err := runScreen(ctx, id, s); err != nil && ctx.Err() == nil {
				logger.Errorf("screen %d exited: %v", id, err)
				errCh <- err
			}
		}(i, screen)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}

// runScreen wires and runs one configured screen's event loop until ctx is
// cancelled or the (currently stubbed) display-server adapter closes.
func runScreen(ctx context.Context, id int, s config.Screen) error {
	q := qemu.New(s.Qemu.QmpSocket, s.Qemu.GaSocket)
	sources := display.New(q, s.Monitor, s.HostSource, s.GuestSource, s.Ddc.Host, s.Ddc.Guest)

	// The standing route is the single sink every non-grab-owned keyboard
	// and mouse event is sent to; for uinput-backed routings its local
	// device advertises every capability preset (keyboard, relative,
	// absolute) since one physical host uinput node backs whatever guest
	// peripherals device.Coordinator attaches or detaches under it.
	deviceID := fmt.Sprintf("screenstub-route-%d", id)
	r, err := route.New(s.Qemu.Routing, q, deviceID, route.ClassKeyboard, s.Qemu.Bus, true)
	if err != nil {
		return fmt.Errorf("building standing route: %w", err)
	}
	if b := r.Builder(); b != nil {
		b.RelativePreset()
		b.AbsolutePreset()
	}

	routeErrCh := make(chan error, 16)
	go logRouteErrors(ctx, id, routeErrCh)
	deviceEvents := r.Spawn(ctx, routeErrCh)

	remapTable := buildRemapTable(s.KeyRemap)

	// The real display-server adapter (an X11 client observing
	// visibility/focus/input and posting grab requests) lives outside this
	// module; Fake stands in so the event loop has a Source/Sink to run
	// against. Wire a real xadapter implementation here when one exists.
	xadp := xadapter.NewFake()

	p := process.New(s.Qemu.Routing, s.Qemu.KeyboardDriver, s.Qemu.RelativeDriver, s.Qemu.AbsoluteDriver,
		s.ExitEvents, s.Qemu.Bus, q, sources, xadp, deviceEvents, remapTable)

	matcher := buildMatcher(s.Hotkeys)
	p.SetMatcher(matcher)

	if err := p.DevicesInit(ctx); err != nil {
		return fmt.Errorf("initializing keyboard device: %w", err)
	}

	userActions := make(chan config.Event, 16)
	return p.Run(ctx, xadp, userActions, routeErrCh)
}

func logRouteErrors(ctx context.Context, id int, ch <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-ch:
			if !ok {
				return
			}
			logger.Errorf("screen %d route: %v", id, err)
		}
	}
}

func buildRemapTable(cfg map[uint16]uint16) remap.Table {
	if len(cfg) == 0 {
		return nil
	}
	t := make(remap.Table, len(cfg))
	for from, to := range cfg {
		t[inputevent.Key(from)] = inputevent.Key(to)
	}
	return t
}

func buildMatcher(hotkeys []config.Hotkey) *hotkey.Matcher {
	m := hotkey.NewMatcher()
	for _, h := range hotkeys {
		m.Add(hotkey.Hotkey{
			Triggers:  keysOf(h.Triggers),
			Modifiers: keysOf(h.Modifiers),
			Actions:   h.Events,
			OnRelease: h.OnRelease,
			Global:    h.Global,
		})
	}
	return m
}

func keysOf(codes []uint16) []inputevent.Key {
	keys := make([]inputevent.Key, len(codes))
	for i, c := range codes {
		keys[i] = inputevent.Key(c)
	}
	return keys
}
