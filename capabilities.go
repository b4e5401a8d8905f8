package pathext

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/mod/semver"
)

// RubyGems releases that changed the extension build CLI.
const (
	targetConfigSince = "v3.6.0"
	jobsSince         = "v4.0.2"
)

// ToolchainCapabilities are the host toolchain features a builder may use.
// They are resolved once at startup and passed to builders explicitly.
type ToolchainCapabilities struct {
	// TargetConfig: configure accepts --target-rbconfig.
	TargetConfig bool
	// Jobs: make may receive a -j hint.
	Jobs bool
	// InstallInLib: artifacts are copied into the gem's lib directory.
	InstallInLib bool
}

// CapabilitiesFor derives capabilities from a RubyGems version string such
// as "3.6.2" or "4.0.0.dev". Unparseable versions get the conservative set.
func CapabilitiesFor(rubygemsVersion string) ToolchainCapabilities {
	caps := ToolchainCapabilities{InstallInLib: true}
	v := canonicalVersion(rubygemsVersion)
	if v == "" {
		return caps
	}
	caps.TargetConfig = semver.Compare(v, targetConfigSince) >= 0
	caps.Jobs = caps.TargetConfig && semver.Compare(v, jobsSince) >= 0
	return caps
}

// canonicalVersion keeps the leading numeric segments of a RubyGems version
// and returns them in semver form ("4.0.2.dev" -> "v4.0.2").
func canonicalVersion(version string) string {
	parts := strings.Split(strings.TrimPrefix(strings.TrimSpace(version), "v"), ".")
	var numeric []string
	for _, part := range parts {
		if part == "" || strings.Trim(part, "0123456789") != "" {
			break
		}
		numeric = append(numeric, part)
		if len(numeric) == 3 {
			break
		}
	}
	if len(numeric) == 0 {
		return ""
	}
	v := semver.Canonical("v" + strings.Join(numeric, "."))
	return v
}

// RubyInfo describes the interpreter that drives configure steps.
type RubyInfo struct {
	Version         string // RUBY_VERSION
	Platform        string // RUBY_PLATFORM
	RubygemsVersion string // Gem::VERSION
}

const rubyInfoScript = `print RUBY_VERSION, " ", RUBY_PLATFORM, " ", Gem::VERSION`

// DetectRuby asks the interpreter for its version, platform and RubyGems
// version.
func DetectRuby(ctx context.Context, runner Runner, rubyPath string) (*RubyInfo, error) {
	if rubyPath == "" {
		rubyPath = rubyCommand
	}
	var out []string
	cmd := Command{Args: []string{rubyPath, "-e", rubyInfoScript}}
	if err := runner.Run(ctx, cmd, func(line string) { out = append(out, line) }); err != nil {
		return nil, fmt.Errorf("detect ruby: %w", err)
	}
	fields := strings.Fields(strings.Join(out, " "))
	if len(fields) != 3 {
		return nil, fmt.Errorf("detect ruby: unexpected output %q", strings.Join(out, "\n"))
	}
	return &RubyInfo{Version: fields[0], Platform: fields[1], RubygemsVersion: fields[2]}, nil
}

// HostPlatform guesses RUBY_PLATFORM from the Go runtime. It is only a
// fallback for when the interpreter was not asked.
func HostPlatform() string {
	arch := runtime.GOARCH
	switch arch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		if runtime.GOOS == platformDarwin {
			arch = "arm64"
		} else {
			arch = "aarch64"
		}
	case "386":
		arch = "i386"
	}

	switch runtime.GOOS {
	case platformDarwin:
		return arch + "-darwin"
	case platformWindows:
		return arch + "-mingw-ucrt"
	default:
		return arch + "-" + runtime.GOOS
	}
}
