package pathext

import "context"

// Builder defines the interface that all extension builders must implement.
//
// Each builder is responsible for one build system (extconf.rb, CMake,
// Cargo, Rake) and is selected by the Registry from the description file.
//
// # Builder Lifecycle
//
//  1. CanBuild() - Registry calls this to find the right builder for a description
//  2. Build() - compiles the extension described by a BuildRequest
//  3. Clean() - optional cleanup of build artifacts left in the source tree
//
// # Thread Safety
//
// Builder implementations hold no per-build state. Builds of different
// source trees may run concurrently; builds of the same source tree must be
// serialized by the caller (see LockSource).
type Builder interface {
	// Name returns the human-readable name of this builder.
	//
	// This name is used in error messages and logs.
	// Examples: "ExtConf", "CMake", "Cargo"
	Name() string

	// CanBuild checks if this builder can handle the given description file.
	//
	// The descriptionFile parameter is typically just the filename
	// (e.g., "extconf.rb") or a relative path (e.g., "ext/myext/extconf.rb").
	CanBuild(descriptionFile string) bool

	// Build compiles the extension and returns the result.
	//
	// Returns:
	//   - BuildResult with Success=true on success or on a soft skip
	//   - BuildResult with Success=false and the same error on failure
	Build(ctx context.Context, req *BuildRequest) (*BuildResult, error)

	// Clean removes build artifacts from the source tree.
	//
	// Returns nil if cleaning is not supported or completes successfully.
	Clean(ctx context.Context, req *BuildRequest) error
}
