// Package config loads the screenstub configuration surface using Viper,
// mirroring the teacher's TOML-file convention and search path precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/arcnmx/screenstub-go/internal/inputevent"
)

// Config is the top-level configuration: an ordered list of screens, each
// independently configurable per spec section 6.
type Config struct {
	Screens []Screen `mapstructure:"screens" toml:"screens"`
}

// Screen is one ConfigScreen entry: a monitor, its DDC source mapping, the
// hotkeys and key remap table that apply while this screen's grab is active,
// and the QEMU connection/routing parameters.
type Screen struct {
	Monitor     Monitor           `mapstructure:"monitor" toml:"monitor"`
	GuestSource Source            `mapstructure:"guest_source" toml:"guest_source"`
	HostSource  Source            `mapstructure:"host_source" toml:"host_source"`
	Ddc         Ddc               `mapstructure:"ddc" toml:"ddc"`
	Hotkeys     []Hotkey          `mapstructure:"hotkeys" toml:"hotkeys,omitempty"`
	KeyRemap    map[uint16]uint16 `mapstructure:"key_remap" toml:"key_remap,omitempty"`
	Qemu        Qemu              `mapstructure:"qemu" toml:"qemu"`
	ExitEvents  []Event           `mapstructure:"exit_events" toml:"exit_events,omitempty"`
}

// Monitor is a DdcSearch: a monitor matches when every populated field equals
// the corresponding display info field. Path is read from the config but is
// not carried into the search, so it takes no part in matching.
type Monitor struct {
	Manufacturer string `mapstructure:"manufacturer" toml:"manufacturer"`
	Model        string `mapstructure:"model" toml:"model"`
	Serial       string `mapstructure:"serial" toml:"serial"`
	BackendID    string `mapstructure:"id" toml:"id"`
	Path         string `mapstructure:"path" toml:"path"`
}

// Source is a ConfigInput: an explicit source value, or unset (Set=false)
// meaning "discover via Source Switcher's fill()". Load marks a source Set
// when its configured value is non-zero; a value of 0 reads as unset.
type Source struct {
	Value uint8 `mapstructure:"value" toml:"value"`
	Set   bool  `mapstructure:"-" toml:"-"`
}

// Ddc holds the ordered method lists run per direction.
type Ddc struct {
	Host  []Method `mapstructure:"host" toml:"host"`
	Guest []Method `mapstructure:"guest" toml:"guest"`
}

// MethodKind tags a SwitchMethod variant.
type MethodKind string

const (
	MethodGuestWait  MethodKind = "guest_wait"
	MethodDdc        MethodKind = "ddc"
	MethodLibddcutil MethodKind = "libddcutil"
	MethodDdcutil    MethodKind = "ddcutil"
	MethodExec       MethodKind = "exec"
	MethodGuestExec  MethodKind = "guest_exec"
)

// Method is one entry of a host/guest SwitchMethod list.
type Method struct {
	Kind MethodKind `mapstructure:"kind" toml:"kind"`
	Argv []string   `mapstructure:"argv" toml:"argv"`
}

// Hotkey is the ConfigHotkey data model from spec section 3.
type Hotkey struct {
	Triggers  []uint16 `mapstructure:"triggers" toml:"triggers"`
	Modifiers []uint16 `mapstructure:"modifiers" toml:"modifiers"`
	Events    []Event  `mapstructure:"events" toml:"events"`
	OnRelease bool     `mapstructure:"on_release" toml:"on_release"`
	Global    bool     `mapstructure:"global" toml:"global"`
}

// EventKind tags a ConfigEvent variant.
type EventKind string

const (
	EventExec        EventKind = "exec"
	EventShowHost    EventKind = "show_host"
	EventShowGuest   EventKind = "show_guest"
	EventToggleShow  EventKind = "toggle_show"
	EventToggleGrab  EventKind = "toggle_grab"
	EventGrab        EventKind = "grab"
	EventUngrab      EventKind = "ungrab"
	EventUnstickHost EventKind = "unstick_host"
	EventUnstickGuest EventKind = "unstick_guest"
	EventShutdown    EventKind = "shutdown"
	EventReboot      EventKind = "reboot"
	EventExit        EventKind = "exit"
)

// Event is a ConfigEvent: a user action, optionally parameterized.
type Event struct {
	Kind EventKind `mapstructure:"kind" toml:"kind"`
	Argv []string  `mapstructure:"argv" toml:"argv,omitempty"` // for Exec
	Grab *Grab     `mapstructure:"grab" toml:"grab,omitempty"` // for Grab/ToggleGrab
	Mode GrabMode  `mapstructure:"mode" toml:"mode,omitempty"` // for Ungrab
}

// GrabMode is ConfigGrabMode.
type GrabMode string

const (
	GrabModeXCore GrabMode = "xcore"
	GrabModeEvdev GrabMode = "evdev"
)

// Grab is a ConfigGrab variant.
type Grab struct {
	Mode          GrabMode          `mapstructure:"mode" toml:"mode"`
	Exclusive     bool              `mapstructure:"exclusive" toml:"exclusive"`
	NewDeviceName string            `mapstructure:"new_device_name" toml:"new_device_name,omitempty"`
	XCoreIgnore   []inputevent.Kind `mapstructure:"-" toml:"-"`
	EvdevIgnore   []inputevent.Kind `mapstructure:"-" toml:"-"`
	Devices       []string          `mapstructure:"devices" toml:"devices"`
}

// ModeOf returns the ConfigGrabMode this grab variant belongs to.
func (g Grab) ModeOf() GrabMode {
	if g.Mode == "" {
		return GrabModeXCore
	}
	return g.Mode
}

// Driver is a ConfigQemuDriver.
type Driver string

const (
	DriverPs2    Driver = "ps2"
	DriverUsb    Driver = "usb"
	DriverVirtio Driver = "virtio"
)

// Routing is a ConfigQemuRouting.
type Routing string

const (
	RoutingInputLinux Routing = "input-linux"
	RoutingVirtioHost Routing = "virtio-host"
	RoutingQmp        Routing = "qmp"
)

// Qemu is the per-screen QEMU connection and routing configuration.
type Qemu struct {
	GaSocket       string  `mapstructure:"ga_socket" toml:"ga_socket"`
	QmpSocket      string  `mapstructure:"qmp_socket" toml:"qmp_socket"`
	KeyboardDriver Driver  `mapstructure:"keyboard_driver" toml:"keyboard_driver"`
	RelativeDriver Driver  `mapstructure:"relative_driver" toml:"relative_driver"`
	AbsoluteDriver Driver  `mapstructure:"absolute_driver" toml:"absolute_driver"`
	Routing        Routing `mapstructure:"routing" toml:"routing"`
	Bus            string  `mapstructure:"bus" toml:"bus,omitempty"`
}

// DefaultQemu mirrors the original's ConfigQemu::default().
func DefaultQemu() Qemu {
	return Qemu{
		KeyboardDriver: DriverPs2,
		RelativeDriver: DriverUsb,
		AbsoluteDriver: DriverUsb,
		Routing:        RoutingQmp,
	}
}

// Load reads the TOML config from the standard search path precedence:
// /etc/screenstub, $HOME/.config/screenstub (or the invoking user's home when
// run via sudo), then the current directory.
func Load(explicitPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("screenstub")
	v.SetConfigType("toml")

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		v.AddConfigPath("/etc/screenstub")
		if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
			v.AddConfigPath(filepath.Join("/home", sudoUser, ".config", "screenstub"))
		} else if home := os.Getenv("HOME"); home != "" {
			v.AddConfigPath(filepath.Join(home, ".config", "screenstub"))
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	for i := range cfg.Screens {
		if cfg.Screens[i].Qemu.Routing == "" {
			cfg.Screens[i].Qemu = DefaultQemu()
		}
		cfg.Screens[i].HostSource.Set = cfg.Screens[i].HostSource.Value != 0
		cfg.Screens[i].GuestSource.Set = cfg.Screens[i].GuestSource.Value != 0
	}

	return cfg, nil
}

// SavePath returns the path Load would write to for the init wizard, mirroring
// the teacher's GetConfigPath precedence (system path when root/sudo, user
// config directory otherwise).
func SavePath() string {
	if os.Getuid() == 0 || os.Getenv("SUDO_USER") != "" {
		return "/etc/screenstub/screenstub.toml"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/etc/screenstub/screenstub.toml"
	}
	return filepath.Join(home, ".config", "screenstub", "screenstub.toml")
}
