package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNum(t *testing.T) {
	assert.Equal(t, Major<<16|Minor<<8|Patch, Num())
}

func TestParseReqr(t *testing.T) {
	tests := []struct {
		raw      string
		cmp      Comparator
		major    int
		minor    int
		patch    int
		hasPatch bool
	}{
		{">=3.0", GreaterEqual, 3, 0, 0, false},
		{"3.0+", GreaterEqual, 3, 0, 0, false},
		{"=3.1.2", Equal, 3, 1, 2, true},
		{"==3.1.2", Equal, 3, 1, 2, true},
		{"3.1", Equal, 3, 1, 0, false},
		{"<4.0", Lower, 4, 0, 0, false},
		{"<=3.0.0", LowerEqual, 3, 0, 0, true},
		{">2.9", Greater, 2, 9, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			r, err := ParseReqr(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.cmp, r.Cmp)
			assert.Equal(t, tt.major, r.Major)
			assert.Equal(t, tt.minor, r.Minor)
			assert.Equal(t, tt.patch, r.Patch)
			assert.Equal(t, tt.hasPatch, r.HasPatch)
		})
	}
}

func TestParseReqrRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "three", "3", ">=3.0+", "3.0.0.0", "v3.0"} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseReqr(raw)
			assert.Error(t, err)
		})
	}
}

func TestSatisfied(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		// the running version is 3.0.0
		{">=3.0", true},
		{"3.0+", true},
		{"=3.0", true},
		{"=3.0.0", true},
		{"=3.0.1", false},
		{">3.0", false},
		{">2.9", true},
		{"<4.0", true},
		{"<3.0", false},
		{"<=3.0", true},
		{">=3.1", false},
		{"4.0+", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			r, err := ParseReqr(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Satisfied())
		})
	}
}
