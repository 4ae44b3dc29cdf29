package geocode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"austin", "Austin, TX"},
		{"Austin, tx", "Austin, TX"},
		{"  San   Antonio   Texas ", "San Antonio, TX"},
		{"Orlando Florida", "Orlando, FL"},
		{"orlando, florida", "Orlando, FL"},
		{"pheonix, az", "Phoenix, AZ"},
		{"St Louis, MO", "St. Louis, MO"},
		{"sanfransisco", "San Francisco, CA"},
		{"78705", "78705"},
		{"West Virginia", "West Virginia"},
		{"springfield", "Springfield"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonicalize(tt.in))
		})
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	inputs := []string{
		"austin", "Austin, TX", "san antonio texas", "pheonix, az",
		"St Louis, MO", "78705", "West Virginia", "springfield", "new york",
	}
	for _, in := range inputs {
		once := Canonicalize(in)
		assert.Equal(t, once, Canonicalize(once), "input %q", in)
	}
}

func TestIsCityState(t *testing.T) {
	assert.True(t, IsCityState("Austin, TX"))
	assert.True(t, IsCityState("St. Louis, MO"))
	assert.False(t, IsCityState("Austin"))
	assert.False(t, IsCityState("austin, tx"))
	assert.False(t, IsCityState("78705"))
}

func TestIsZIP(t *testing.T) {
	assert.True(t, IsZIP("78705"))
	assert.True(t, IsZIP(" 78705 "))
	assert.False(t, IsZIP("7870"))
	assert.False(t, IsZIP("78705-1234"))
}

func TestSplitCityState(t *testing.T) {
	name, state := SplitCityState("San Antonio, TX")
	assert.Equal(t, "San Antonio", name)
	assert.Equal(t, "TX", state)

	name, state = SplitCityState("78705")
	assert.Equal(t, "78705", name)
	assert.Empty(t, state)
}
