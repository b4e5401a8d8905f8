package internal

import (
	"bytes"
	"strings"
	"testing"

	"github.com/contriboss/pathext-go"
)

func TestReportTools(t *testing.T) {
	statuses := []pathext.ToolStatus{
		{Requirement: pathext.ToolRequirement{Name: "make", Purpose: "Build automation tool"}, Found: "gmake"},
		{Requirement: pathext.ToolRequirement{Name: "ninja", Optional: true, Purpose: "Ninja build tool"}},
		{Requirement: pathext.ToolRequirement{Name: "cmake", Purpose: "CMake build system"}},
	}

	var buf bytes.Buffer
	missing := reportTools(&buf, "CMake", statuses)
	if missing != 1 {
		t.Errorf("reportTools() missing = %d, want 1", missing)
	}

	out := buf.String()
	for _, want := range []string{"CMake:", "ok       gmake", "optional ninja", "MISSING  cmake"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestValueOr(t *testing.T) {
	if got := valueOr("", "unknown"); got != "unknown" {
		t.Errorf("valueOr(\"\") = %q", got)
	}
	if got := valueOr("3.4.1", "unknown"); got != "3.4.1" {
		t.Errorf("valueOr(\"3.4.1\") = %q", got)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"build": false, "install": false, "doctor": false}
	for _, cmd := range rootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestNewRegistryPresets(t *testing.T) {
	orig := presets
	defer func() { presets = orig }()

	presets = []string{"Zig", "crystal"}
	registry, err := newRegistry(nil, pathext.DefaultConfig())
	if err != nil {
		t.Fatalf("newRegistry() error = %v", err)
	}
	for _, name := range []string{"Zig", "Crystal"} {
		if _, ok := registry.Builder(name); !ok {
			t.Errorf("builder %s not registered", name)
		}
	}
	if b, err := registry.BuilderFor("ext/foo/build.zig"); err != nil || b.Name() != "Zig" {
		t.Errorf("BuilderFor(build.zig) = %v, %v", b, err)
	}

	presets = []string{"cobol"}
	if _, err := newRegistry(nil, pathext.DefaultConfig()); err == nil {
		t.Error("expected error for unknown builder")
	}
}
