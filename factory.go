package pathext

import (
	"fmt"
	"path/filepath"
)

// Registry selects the builder for a build description.
//
// Configure scripts and prebuilt Makefiles always go to the ArtifactBuilder;
// every other description is offered to the remaining builders in
// registration order and the first whose CanBuild returns true wins.
//
// # Usage
//
//	registry := pathext.NewRegistry(nil, cfg)
//	builder, err := registry.BuilderFor("ext/myext/CMakeLists.txt")
//
// # Thread Safety
//
// Registry is NOT thread-safe for registration.
// Register all builders before concurrent use.
type Registry struct {
	artifact *ArtifactBuilder
	builders []Builder
}

// NewRegistry creates a registry with all standard builders sharing one
// runner and config:
//  1. ArtifactBuilder - extconf.rb and Makefile
//  2. RakeBuilder - Rakefile and mkrf_conf.rb
//  3. CmakeBuilder - CMakeLists.txt
//  4. CargoBuilder - Cargo.toml
func NewRegistry(runner Runner, config *Config) *Registry {
	tc := newToolchain(runner, config)
	r := &Registry{artifact: NewArtifactBuilder(tc.runner, tc.config)}
	r.Register(NewRakeBuilder(tc.runner, tc.config))
	r.Register(NewCmakeBuilder(tc.runner, tc.config))
	r.Register(NewCargoBuilder(tc.runner, tc.config))
	return r
}

// Register adds a builder for KindOther descriptions.
//
// Builders are checked in the order they are registered.
func (r *Registry) Register(builder Builder) {
	r.builders = append(r.builders, builder)
}

// Artifact returns the builder used for configure scripts and Makefiles.
func (r *Registry) Artifact() *ArtifactBuilder {
	return r.artifact
}

// BuilderFor returns the builder for a description file. Only the base
// filename is used for matching.
func (r *Registry) BuilderFor(descriptionFile string) (Builder, error) {
	filename := filepath.Base(descriptionFile)

	switch KindOf(filename) {
	case KindConfigureScript, KindPrebuilt:
		return r.artifact, nil
	}

	for _, builder := range r.builders {
		if builder.CanBuild(filename) {
			return builder, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedDescription, filename)
}

// Builder returns a registered builder by name.
func (r *Registry) Builder(name string) (Builder, bool) {
	if r.artifact.Name() == name {
		return r.artifact, true
	}
	for _, builder := range r.builders {
		if builder.Name() == name {
			return builder, true
		}
	}
	return nil, false
}

// ListBuilders returns a copy of all registered builders, the
// ArtifactBuilder first.
func (r *Registry) ListBuilders() []Builder {
	return append([]Builder{r.artifact}, r.builders...)
}
