package pathext

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenericBuilderCanBuild(t *testing.T) {
	cfg := testConfig()
	crystal := NewCrystalBuilder(&fakeRunner{}, cfg)
	zig := NewZigBuilder(&fakeRunner{}, cfg)

	assert.True(t, crystal.CanBuild("ext/foo/foo.cr"))
	assert.False(t, crystal.CanBuild("shard.yml"))
	assert.True(t, zig.CanBuild("ext/foo/build.zig"))
	assert.True(t, zig.CanBuild("BUILD.ZIG"))
	assert.False(t, zig.CanBuild("main.zig"))
}

func TestGenericBuilderExpandsTemplate(t *testing.T) {
	srcDir := filepath.Join(t.TempDir(), "foo")
	libDir := filepath.Join(t.TempDir(), "lib")
	writeFile(t, filepath.Join(srcDir, "foo.cr"), "fun init_foo\n")

	runner := &fakeRunner{handle: func(cmd Command, _ func(string)) error {
		output := cmd.Args[len(cmd.Args)-3]
		return os.WriteFile(output, []byte("crystal"), 0o755)
	}}
	builder := NewCrystalBuilder(runner, testConfig())

	result, err := builder.Build(context.Background(), &BuildRequest{
		SourceDir:       srcDir,
		DescriptionFile: "foo.cr",
		LibDir:          libDir,
		ExtraArgs:       []string{"--release"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"foo.so"}, result.Outputs)
	assert.Equal(t, "crystal", readFile(t, filepath.Join(libDir, "foo.so")))

	cmd := runner.recorded()[0]
	assert.Equal(t, srcDir, cmd.Dir)
	assert.Equal(t, "foo.cr", cmd.Args[len(cmd.Args)-2])
	assert.Equal(t, "--release", lastArg(cmd))
	assert.Empty(t, workspaces(t, srcDir))
}

func TestGenericBuilderCollectsFromSourceTree(t *testing.T) {
	srcDir := filepath.Join(t.TempDir(), "bar")
	libDir := filepath.Join(t.TempDir(), "lib")
	writeFile(t, filepath.Join(srcDir, "build.zig"), "")

	runner := &fakeRunner{handle: func(cmd Command, _ func(string)) error {
		out := filepath.Join(cmd.Dir, "zig-out", "lib")
		if err := os.MkdirAll(out, 0o755); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(out, "bar.so"), []byte("zig"), 0o755)
	}}
	builder := NewZigBuilder(runner, testConfig())

	result, err := builder.Build(context.Background(), &BuildRequest{
		SourceDir:       srcDir,
		DescriptionFile: "build.zig",
		LibDir:          libDir,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"bar.so"}, result.Outputs)
	assert.Equal(t, "zig", readFile(t, filepath.Join(libDir, "bar.so")))
	assert.NoFileExists(t, filepath.Join(srcDir, "zig-out", "lib", "bar.so"))
}

func TestGenericBuilderWithoutCommand(t *testing.T) {
	srcDir := t.TempDir()
	writeFile(t, filepath.Join(srcDir, "x.nim"), "")
	builder := NewGenericBuilder(&fakeRunner{}, testConfig(), GenericBuilderConfig{Name: "Nim", Patterns: []string{"*.nim"}})

	_, err := builder.Build(context.Background(), &BuildRequest{SourceDir: srcDir, DescriptionFile: "x.nim"})
	assert.True(t, errors.Is(err, ErrCompilationFailed))
}

func TestGenericBuilderClean(t *testing.T) {
	runner := &fakeRunner{handle: func(cmd Command, _ func(string)) error {
		return &ExitError{Command: cmd.String(), Code: 1}
	}}
	zig := NewZigBuilder(runner, testConfig())
	assert.NoError(t, zig.Clean(context.Background(), &BuildRequest{SourceDir: t.TempDir()}))
	assert.Len(t, runner.recorded(), 1)

	swift := NewSwiftBuilder(runner, testConfig())
	assert.NoError(t, swift.Clean(context.Background(), &BuildRequest{SourceDir: t.TempDir()}))
	assert.Len(t, runner.recorded(), 1)
}

func TestDlext(t *testing.T) {
	assert.Equal(t, "so", dlext("x86_64-linux"))
	assert.Equal(t, "bundle", dlext("arm64-darwin24"))
	assert.Equal(t, "dll", dlext("x64-mingw-ucrt"))
	assert.Equal(t, "so", dlext(""))
}
