package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "identical", a: "RAM KUMAR", b: "RAM KUMAR", want: 1},
		{name: "both empty", a: "", b: "", want: 1},
		{name: "one empty", a: "RAM", b: "", want: 0},
		{name: "disjoint", a: "abc", b: "xyz", want: 0},
		// longest match "bcd" (3 chars), total length 8.
		{name: "partial overlap", a: "abcd", b: "bcde", want: 0.75},
		// "RAM " + "DAS" match out of 2*12 characters.
		{name: "middle name differs", a: "RAM K DAS", b: "RAM BDAS", want: 2.0 * 7 / 17},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Ratio(tt.a, tt.b), 1e-9)
		})
	}
}

func TestRatioIsSymmetricInLength(t *testing.T) {
	// The measure counts matching characters from both sides, so swapping
	// arguments never changes the score.
	assert.InDelta(t, Ratio("abcd", "bcde"), Ratio("bcde", "abcd"), 1e-9)
}
