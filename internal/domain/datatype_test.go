package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"canonical passes through", "water level", "water level"},
		{"canonical is case-insensitive", "Water Level", "water level"},
		{"single letter alias", "h", "water level"},
		{"single letter alias upper", "Q", "flow"},
		{"word alias", "discharge", "flow"},
		{"plural alias", "velocities", "velocity"},
		{"depth alias", "d", "depth"},
		{"max prefix", "max water level", "max water level"},
		{"max prefix on alias", "max h", "max water level"},
		{"maximum spelled out", "maximum flow", "max flow"},
		{"peak prefix", "peak flow", "max flow"},
		{"max suffix", "water level max", "max water level"},
		{"fused max suffix", "Hmax", "max water level"},
		{"fused flow max", "Qmax", "max flow"},
		{"tmax prefix", "tmax water level", "tmax water level"},
		{"time of max", "time of max h", "tmax water level"},
		{"time of peak", "time of peak flow", "tmax flow"},
		{"min prefix", "min depth", "min depth"},
		{"tmin prefix", "tmin depth", "tmin depth"},
		{"underscore separator", "max_water level", "max water level"},
		{"template digit", "FC2", "fraction 2 concentration"},
		{"template canonical", "fraction 12 concentration", "fraction 12 concentration"},
		{"template with modifier", "max fc3", "max fraction 3 concentration"},
		{"unknown lower-cased", "Froude Number", "froude number"},
		{"unknown stays whole", "benjamin", "benjamin"},
		{"whitespace trimmed", "  flow  ", "flow"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalizeRoundTrip(t *testing.T) {
	// Every alias of every vocabulary entry resolves to its canonical
	// name, with or without a modifier prefix.
	for _, entry := range dataTypeVocabulary {
		for _, alias := range entry.alts {
			if KnownDataType(alias) {
				assert.Equal(t, entry.canon, Normalize(alias), "alias %q", alias)
				assert.Equal(t, "max "+entry.canon, Normalize("max "+alias), "alias %q", alias)
			}
		}
		// Normalizing a canonical name is a no-op.
		assert.Equal(t, entry.canon, Normalize(entry.canon))
	}
}

func TestNormalizeWith(t *testing.T) {
	t.Run("caller modifier applies", func(t *testing.T) {
		assert.Equal(t, "max water level", NormalizeWith("h", ModMax))
	})

	t.Run("inline modifier wins", func(t *testing.T) {
		assert.Equal(t, "tmax water level", NormalizeWith("tmax h", ModMax))
	})

	t.Run("no double prefix", func(t *testing.T) {
		assert.Equal(t, "max flow", NormalizeWith("max flow", ModMax))
	})

	t.Run("unknown still prefixed", func(t *testing.T) {
		assert.Equal(t, "max froude number", NormalizeWith("froude number", ModMax))
	})
}

func TestKnownDataType(t *testing.T) {
	assert.True(t, KnownDataType("h"))
	assert.True(t, KnownDataType("max water level"))
	assert.True(t, KnownDataType("fc1"))
	assert.False(t, KnownDataType("froude number"))
	assert.False(t, KnownDataType(""))
}
