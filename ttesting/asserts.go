// Package ttesting contains assertions shared by the tests of other packages.
package ttesting

import (
	"bytes"
	"testing"
)

func AssertEqualInt(t *testing.T, name string, got, want int) {
	t.Helper()
	t.Run(name, func(t *testing.T) {
		if got != want {
			t.Errorf("got %d; want %d", got, want)
		}
	})
}

func AssertEqualString(t *testing.T, name string, got, want string) {
	t.Helper()
	t.Run(name, func(t *testing.T) {
		if got != want {
			t.Errorf("got %q; want %q", got, want)
		}
	})
}

// AssertEqualBytes reports the first position at which the slices differ,
// which is far more useful than a dump of two 8k payloads.
func AssertEqualBytes(t *testing.T, name string, got, want []byte) {
	t.Helper()
	t.Run(name, func(t *testing.T) {
		if bytes.Equal(got, want) {
			return
		}
		i := 0
		for i < len(got) && i < len(want) && got[i] == want[i] {
			i++
		}
		t.Errorf("got %d bytes; want %d bytes; first difference at offset %d", len(got), len(want), i)
	})
}

func AssertStringer(t *testing.T, name string, got, want interface{ String() string }) {
	t.Helper()
	t.Run(name, func(t *testing.T) {
		if got.String() != want.String() {
			t.Errorf("got %s; want %s", got, want)
		}
	})
}
