package display

import "testing"

import "github.com/stretchr/testify/assert"

func TestDdcSearchMatchesOnlyPopulatedFields(t *testing.T) {
	search := DdcSearch{Manufacturer: "DEL"}
	assert.True(t, search.Matches(DisplayInfo{Manufacturer: "DEL", Model: "U2720Q"}))
	assert.False(t, search.Matches(DisplayInfo{Manufacturer: "ACI", Model: "U2720Q"}))
}

func TestDdcSearchZeroValueMatchesAnything(t *testing.T) {
	assert.True(t, DdcSearch{}.Matches(DisplayInfo{Manufacturer: "ANY"}))
}

func TestDdcSearchAllFieldsMustMatch(t *testing.T) {
	search := DdcSearch{Manufacturer: "DEL", Serial: "12345"}
	assert.False(t, search.Matches(DisplayInfo{Manufacturer: "DEL", Serial: "99999"}))
}
