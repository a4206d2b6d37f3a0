// Package display implements the Source Switcher, the polymorphic
// MonitorHandle backends (DDC/CI over i2c, with stubs for the libddcutil
// and ddcutil-CLI variants the original leaves unimplemented too), and a
// guest-liveness probe used by the GuestWait switch method.
package display

import "github.com/arcnmx/screenstub-go/internal/config"

// DisplayInfo is what a backend can tell us about one enumerated display.
type DisplayInfo struct {
	BackendID    string
	Manufacturer string
	Model        string
	Serial       string
}

// DdcSearch is a DdcSearch: a monitor matches when every field left
// non-empty here equals the corresponding DisplayInfo field. The zero value
// matches anything.
type DdcSearch struct {
	BackendID    string
	Manufacturer string
	Model        string
	Serial       string
}

// NewSearch converts a config.Monitor into a DdcSearch.
func NewSearch(m config.Monitor) DdcSearch {
	return DdcSearch{
		BackendID:    m.BackendID,
		Manufacturer: m.Manufacturer,
		Model:        m.Model,
		Serial:       m.Serial,
	}
}

// Matches reports whether every populated field of s equals info's.
func (s DdcSearch) Matches(info DisplayInfo) bool {
	if s.BackendID != "" && s.BackendID != info.BackendID {
		return false
	}
	if s.Manufacturer != "" && s.Manufacturer != info.Manufacturer {
		return false
	}
	if s.Model != "" && s.Model != info.Model {
		return false
	}
	if s.Serial != "" && s.Serial != info.Serial {
		return false
	}
	return true
}
