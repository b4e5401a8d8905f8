package pathext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapabilitiesFor(t *testing.T) {
	tests := []struct {
		version      string
		targetConfig bool
		jobs         bool
	}{
		{"", false, false},
		{"garbage", false, false},
		{"3.5.22", false, false},
		{"3.6.0", true, false},
		{"3.6.2", true, false},
		{"v3.6", true, false},
		{"4.0.0.dev", true, false},
		{"4.0.1", true, false},
		{"4.0.2", true, true},
		{"4.0.2.pre1", true, true},
		{"4.1", true, true},
		{"10.0.0", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			caps := CapabilitiesFor(tt.version)
			assert.Equal(t, tt.targetConfig, caps.TargetConfig, "TargetConfig")
			assert.Equal(t, tt.jobs, caps.Jobs, "Jobs")
			assert.True(t, caps.InstallInLib)
		})
	}
}

func TestCanonicalVersion(t *testing.T) {
	assert.Equal(t, "v3.6.2", canonicalVersion("3.6.2"))
	assert.Equal(t, "v4.0.0", canonicalVersion("4.0.0.dev"))
	assert.Equal(t, "v3.6.0", canonicalVersion("3.6"))
	assert.Equal(t, "v1.2.3", canonicalVersion(" v1.2.3.4 "))
	assert.Equal(t, "", canonicalVersion("dev"))
}

func TestHostPlatform(t *testing.T) {
	assert.NotEmpty(t, HostPlatform())
	assert.Contains(t, HostPlatform(), "-")
}
