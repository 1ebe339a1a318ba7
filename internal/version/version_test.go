package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func withBuild(t *testing.T, version, commit, date string) {
	t.Helper()
	v, c, d := Version, Commit, BuildDate
	t.Cleanup(func() { Version, Commit, BuildDate = v, c, d })
	Version, Commit, BuildDate = version, commit, date
}

func TestInfo(t *testing.T) {
	tests := []struct {
		commit string
		want   string
	}{
		{"unknown", "0.9.1"},
		{"abc", "0.9.1"},
		{"1234567", "0.9.1"},
		{"12345678", "0.9.1 (1234567)"},
		{"deadbeefcafe", "0.9.1 (deadbee)"},
	}
	for _, tt := range tests {
		t.Run(tt.commit, func(t *testing.T) {
			withBuild(t, "0.9.1", tt.commit, "unknown")
			assert.Equal(t, tt.want, Info())
		})
	}
}

func TestFull(t *testing.T) {
	withBuild(t, "1.2.3", "abcdef123456", "2026-01-15")
	assert.Equal(t, "asmlsp version 1.2.3\nCommit: abcdef123456\nBuilt: 2026-01-15", Full())
}

func TestVersionIsDotted(t *testing.T) {
	assert.GreaterOrEqual(t, Major(Version), 0)
}

func TestMajor(t *testing.T) {
	tests := map[string]int{
		"0.9.0":  0,
		"v1.2.3": 1,
		" 2.0 ":  2,
		"12":     12,
		"":       -1,
		"latest": -1,
		"v":      -1,
	}
	for in, want := range tests {
		assert.Equal(t, want, Major(in), "Major(%q)", in)
	}
}
