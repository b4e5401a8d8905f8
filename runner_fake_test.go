package pathext

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeRunner records every command and delegates to handle, which may write
// files the way the real toolchain would.
type fakeRunner struct {
	mu       sync.Mutex
	commands []Command
	handle   func(cmd Command, onLine func(string)) error
}

func (f *fakeRunner) Run(_ context.Context, cmd Command, onLine func(string)) error {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()
	if f.handle == nil {
		return nil
	}
	return f.handle(cmd, onLine)
}

func (f *fakeRunner) recorded() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Command(nil), f.commands...)
}

// commandsFor returns the recorded commands whose program is name.
func (f *fakeRunner) commandsFor(name string) []Command {
	var out []Command
	for _, cmd := range f.recorded() {
		if len(cmd.Args) > 0 && filepath.Base(cmd.Args[0]) == name {
			out = append(out, cmd)
		}
	}
	return out
}

// toolchainSim mimics extconf.rb and make for a single extension named ext.
type toolchainSim struct {
	ext     string
	payload string

	noMakefile bool
	writeMkmf  bool
	failOn     func(cmd Command) bool
	cleans     int
}

func (s *toolchainSim) handle(cmd Command, onLine func(string)) error {
	program := filepath.Base(cmd.Args[0])
	if program == "ruby" && s.writeMkmf {
		if err := os.WriteFile(filepath.Join(cmd.Dir, mkmfLogName), []byte("checking for stdio.h... yes\n"), 0o644); err != nil {
			return err
		}
	}
	if s.failOn != nil && s.failOn(cmd) {
		onLine("simulated failure")
		return &ExitError{Command: cmd.String(), Code: 1}
	}

	switch program {
	case "ruby":
		onLine("creating Makefile")
		if s.noMakefile {
			return nil
		}
		return os.WriteFile(filepath.Join(cmd.Dir, "Makefile"), []byte("all:\n"), 0o644)
	case "make":
		switch lastArg(cmd) {
		case "clean":
			s.cleans++
		case "install":
			dest := argValue(cmd, "sitearchdir=")
			if dest == "" {
				return &ExitError{Command: cmd.String(), Code: 2}
			}
			onLine("installing " + s.ext + ".so")
			dir := filepath.Join(cmd.Dir, dest)
			if err := os.WriteFile(filepath.Join(dir, s.ext+".so"), []byte(s.payload), 0o755); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Join(dir, s.ext), 0o755); err != nil {
				return err
			}
			return os.WriteFile(filepath.Join(dir, s.ext, "version.rb"), []byte("VERSION = '1.0'\n"), 0o644)
		default:
			onLine("compiling " + s.ext + ".c")
		}
	}
	return nil
}

func lastArg(cmd Command) string {
	if len(cmd.Args) == 0 {
		return ""
	}
	return cmd.Args[len(cmd.Args)-1]
}

func argValue(cmd Command, prefix string) string {
	for _, arg := range cmd.Args {
		if strings.HasPrefix(arg, prefix) {
			return strings.TrimPrefix(arg, prefix)
		}
	}
	return ""
}

func hasArg(cmd Command, want string) bool {
	for _, arg := range cmd.Args {
		if arg == want {
			return true
		}
	}
	return false
}

func testConfig() *Config {
	return &Config{
		RubyPath:     "ruby",
		MakeProgram:  "make",
		RubyVersion:  "3.4.1",
		RubyPlatform: "x86_64-linux",
		Capabilities: ToolchainCapabilities{InstallInLib: true},
	}
}

// gemFixture is a checkout with one extconf.rb extension.
type gemFixture struct {
	root   string
	extDir string
	libDir string
	target string
}

func newGemFixture(t *testing.T, name string) *gemFixture {
	t.Helper()
	root := t.TempDir()
	f := &gemFixture{
		root:   root,
		extDir: filepath.Join(root, "ext", name),
		libDir: filepath.Join(root, "lib"),
		target: filepath.Join(root, "tmp", "x86_64-linux", name, "3.4.1"),
	}
	require.NoError(t, os.MkdirAll(f.extDir, 0o755))
	require.NoError(t, os.MkdirAll(f.libDir, 0o755))
	writeFile(t, filepath.Join(f.extDir, "extconf.rb"), "require 'mkmf'\ncreate_makefile('"+name+"')\n")
	writeFile(t, filepath.Join(f.extDir, name+".c"), "void Init_"+name+"(void) {}\n")
	writeFile(t, filepath.Join(root, name+".gemspec"), "Gem::Specification.new\n")
	return f
}

func (f *gemFixture) request() *BuildRequest {
	return &BuildRequest{
		SourceDir:       f.extDir,
		DescriptionFile: "extconf.rb",
		TargetDir:       f.target,
		LibDir:          f.libDir,
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// workspaces lists leftover workspace directories in dir.
func workspaces(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var out []string
	for _, entry := range entries {
		if IsWorkspaceName(entry.Name()) {
			out = append(out, entry.Name())
		}
	}
	return out
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}
