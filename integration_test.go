package pathext

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

const integrationExtconf = `require "mkmf"
create_makefile("pathext_probe")
`

const integrationSource = `#include <ruby.h>

void Init_pathext_probe(void) {
    rb_define_module("PathextProbe");
}
`

// requireToolchain skips unless ruby, make and a C compiler are on PATH.
func requireToolchain(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping toolchain test in short mode")
	}
	for _, tool := range []string{rubyCommand, makeProgram} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not found, skipping integration test", tool)
		}
	}
	if _, err := exec.LookPath("cc"); err != nil {
		if _, err := exec.LookPath("gcc"); err != nil {
			t.Skip("no C compiler found, skipping integration test")
		}
	}
}

func TestRealToolchainBuild(t *testing.T) {
	requireToolchain(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	root := t.TempDir()
	extDir := filepath.Join(root, "ext", "pathext_probe")
	libDir := filepath.Join(root, "lib")
	writeFile(t, filepath.Join(extDir, "extconf.rb"), integrationExtconf)
	writeFile(t, filepath.Join(extDir, "pathext_probe.c"), integrationSource)

	cfg := DefaultConfig()
	info, err := DetectRuby(ctx, ExecRunner{}, cfg.RubyPath)
	if err != nil {
		t.Skipf("cannot query ruby: %v", err)
	}
	cfg.Apply(info)

	targetDir := filepath.Join(root, "tmp", info.Platform, "pathext_probe", info.Version)
	builder := NewArtifactBuilder(ExecRunner{}, cfg)
	result, err := builder.Build(ctx, &BuildRequest{
		SourceDir:       extDir,
		DescriptionFile: "extconf.rb",
		TargetDir:       targetDir,
		LibDir:          libDir,
	})
	if errors.Is(err, ErrConfigurationFailed) {
		// Interpreters without development headers cannot configure.
		t.Skipf("configure failed on this host: %v", err)
	}
	if err != nil {
		t.Fatalf("build failed: %v\n%s", err, BuildError(builder.Name(), result.Log, err))
	}

	found := false
	for _, path := range result.ArtifactsCopied {
		if isNativeLibrary(path) {
			found = true
			if _, err := os.Stat(path); err != nil {
				t.Errorf("copied artifact %s missing: %v", path, err)
			}
		}
	}
	if !found {
		t.Errorf("no native library copied into %s: %v", libDir, result.ArtifactsCopied)
	}

	if _, err := os.Stat(filepath.Join(targetDir, CompleteMarker)); err != nil {
		t.Errorf("completion marker missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(targetDir, mkmfLogName)); err != nil {
		t.Errorf("mkmf.log was not moved into the target directory: %v", err)
	}
	if left := workspaces(t, extDir); len(left) != 0 {
		t.Errorf("workspace left behind: %v", left)
	}
}

func TestDetectRubyWithFakeRunner(t *testing.T) {
	runner := &fakeRunner{handle: func(cmd Command, onLine func(string)) error {
		onLine("3.4.1 arm64-darwin24 3.6.2")
		return nil
	}}

	info, err := DetectRuby(context.Background(), runner, "")
	if err != nil {
		t.Fatalf("DetectRuby failed: %v", err)
	}
	if info.Version != "3.4.1" || info.Platform != "arm64-darwin24" || info.RubygemsVersion != "3.6.2" {
		t.Errorf("unexpected ruby info %+v", info)
	}
	if args := runner.recorded()[0].Args; args[0] != rubyCommand || args[1] != "-e" {
		t.Errorf("unexpected detection command %v", args)
	}

	cfg := testConfig()
	cfg.Capabilities.InstallInLib = false
	cfg.Apply(info)
	if !cfg.Capabilities.TargetConfig || cfg.Capabilities.Jobs {
		t.Errorf("unexpected capabilities %+v", cfg.Capabilities)
	}
	if cfg.Capabilities.InstallInLib {
		t.Error("Apply must keep the InstallInLib setting")
	}
	if cfg.RubyPlatform != "arm64-darwin24" {
		t.Errorf("RubyPlatform = %q", cfg.RubyPlatform)
	}
}

func TestDetectRubyErrors(t *testing.T) {
	failing := &fakeRunner{handle: func(cmd Command, _ func(string)) error {
		return &ExitError{Command: cmd.String(), Code: 127}
	}}
	if _, err := DetectRuby(context.Background(), failing, "ruby"); err == nil {
		t.Error("Expected error from failing interpreter")
	}

	garbled := &fakeRunner{handle: func(_ Command, onLine func(string)) error {
		onLine("ruby: warning")
		return nil
	}}
	if _, err := DetectRuby(context.Background(), garbled, "ruby"); err == nil {
		t.Error("Expected error from unexpected output")
	}
}
