package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/arcnmx/screenstub-go/internal/config"
	"github.com/arcnmx/screenstub-go/internal/logger"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively generate a screenstub.toml for one screen",
	Long: `init walks through the monitor, QEMU socket, and driver settings for a
single screen and writes them to the standard config path. Run it again (or
edit the file by hand) to add more screens.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	var (
		manufacturer, model, serial     string
		hostValue, guestValue           string
		qmpSocket, gaSocket             string
		routing, bus                    string
		kbdDriver, relDriver, absDriver string
	)

	routing = string(config.RoutingQmp)
	kbdDriver = string(config.DriverPs2)
	relDriver = string(config.DriverUsb)
	absDriver = string(config.DriverUsb)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Monitor manufacturer (DDC search, blank = any)").Value(&manufacturer),
			huh.NewInput().Title("Monitor model (DDC search, blank = any)").Value(&model),
			huh.NewInput().Title("Monitor serial (DDC search, blank = any)").Value(&serial),
		),
		huh.NewGroup(
			huh.NewInput().Title("Host DDC input-source value (decimal, blank = auto-discover)").Value(&hostValue),
			huh.NewInput().Title("Guest DDC input-source value (decimal, blank = auto-discover)").Value(&guestValue),
		),
		huh.NewGroup(
			huh.NewInput().Title("QEMU QMP socket path").Placeholder("/var/run/screenstub/qmp.sock").Value(&qmpSocket),
			huh.NewInput().Title("QEMU guest-agent socket path").Placeholder("/var/run/screenstub/qga.sock").Value(&gaSocket),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Input routing").
				Description("How captured events reach the guest").
				Options(
					huh.NewOption("QMP input-send-event", string(config.RoutingQmp)),
					huh.NewOption("input-linux object (local uinput device)", string(config.RoutingInputLinux)),
					huh.NewOption("virtio-input-host-device", string(config.RoutingVirtioHost)),
				).
				Value(&routing),
			huh.NewInput().Title("virtio-input-host-device bus (only used by virtio-host routing)").Value(&bus),
			huh.NewSelect[string]().
				Title("Keyboard driver").
				Options(driverOptions()...).
				Value(&kbdDriver),
			huh.NewSelect[string]().
				Title("Mouse (relative) driver").
				Options(driverOptions()...).
				Value(&relDriver),
			huh.NewSelect[string]().
				Title("Tablet (absolute) driver").
				Options(driverOptions()...).
				Value(&absDriver),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("init cancelled: %w", err)
	}

	screen := config.Screen{
		Monitor: config.Monitor{
			Manufacturer: manufacturer,
			Model:        model,
			Serial:       serial,
		},
		HostSource:  parseSource(hostValue),
		GuestSource: parseSource(guestValue),
		Qemu: config.Qemu{
			QmpSocket:      qmpSocket,
			GaSocket:       gaSocket,
			Routing:        config.Routing(routing),
			Bus:            bus,
			KeyboardDriver: config.Driver(kbdDriver),
			RelativeDriver: config.Driver(relDriver),
			AbsoluteDriver: config.Driver(absDriver),
		},
	}

	cfg, err := loadExistingOrEmpty()
	if err != nil {
		return err
	}
	cfg.Screens = append(cfg.Screens, screen)

	path := SavePath
	if err := writeConfig(cfg, path); err != nil {
		return err
	}

	logger.Infof("wrote %s", path)
	return nil
}

// SavePath is the destination init writes to; a var rather than a direct
// config.SavePath() call so tests can redirect it.
var SavePath = config.SavePath()

func driverOptions() []huh.Option[string] {
	return []huh.Option[string]{
		huh.NewOption("ps2", string(config.DriverPs2)),
		huh.NewOption("usb", string(config.DriverUsb)),
		huh.NewOption("virtio", string(config.DriverVirtio)),
	}
}

func parseSource(s string) config.Source {
	if s == "" {
		return config.Source{}
	}
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		logger.Warnf("ignoring invalid source value %q: %v", s, err)
		return config.Source{}
	}
	return config.Source{Value: uint8(v), Set: true}
}

func loadExistingOrEmpty() (*config.Config, error) {
	if cfg, err := config.Load(SavePath); err == nil {
		return cfg, nil
	}
	return &config.Config{}, nil
}

func writeConfig(cfg *config.Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
