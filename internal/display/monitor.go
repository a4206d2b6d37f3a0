package display

import "fmt"

// FeatureCodeInput is the DDC/CI VCP feature code for the active video input
// source (VCP 0x60).
const FeatureCodeInput = 0x60

// MonitorHandle is the polymorphic DDC backend operation set: enumerate
// happens at the package level per backend (EnumerateI2C etc.), a handle is
// one already-identified display.
type MonitorHandle interface {
	fmt.Stringer
	Matches(search DdcSearch) bool
	Sources() ([]byte, error)
	GetSource() (byte, error)
	SetSource(byte) error
}

// FindGuestSource returns the first source code in sources that isn't
// hostSource, i.e. the original's "any other input" guest-source guess.
func FindGuestSource(sources []byte, hostSource byte) (byte, bool) {
	for _, s := range sources {
		if s != hostSource {
			return s, true
		}
	}
	return 0, false
}
