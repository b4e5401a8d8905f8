package pathext

import (
	"fmt"
	"strings"
)

// ToolChecker is implemented by builders that depend on external binaries.
//
// Check tools before building to fail fast with a readable message:
//
//	if checker, ok := builder.(ToolChecker); ok {
//	    if err := checker.CheckTools(); err != nil {
//	        return fmt.Errorf("build tools missing: %w", err)
//	    }
//	}
type ToolChecker interface {
	// RequiredTools returns the list of tools this builder needs.
	RequiredTools() []ToolRequirement

	// CheckTools returns nil if all required tools are found. Optional
	// tools never cause an error.
	CheckTools() error
}

// ToolRequirement describes a build tool dependency.
//
// Alternatives cover platform differences: gmake on FreeBSD, nmake and cl
// with MSVC, clang on macOS.
type ToolRequirement struct {
	// Name is the primary tool binary name (e.g., "make", "cargo").
	Name string

	// Alternatives can satisfy the requirement in place of Name.
	Alternatives []string

	// Optional tools are reported but never fail a check.
	Optional bool

	// Purpose is a human-readable description of why this tool is needed.
	Purpose string
}

// ToolStatus is the outcome of checking one requirement.
type ToolStatus struct {
	Requirement ToolRequirement
	// Found is the binary that satisfied the requirement, empty if none did.
	Found string
}

// CheckToolAvailable checks if a tool is available in the system PATH.
func CheckToolAvailable(tool string) error {
	if _, err := execLookPath(tool); err != nil {
		return fmt.Errorf("%s not found in PATH", tool)
	}
	return nil
}

// ResolveTools checks each requirement, primary name first and then the
// alternatives in order.
func ResolveTools(requirements []ToolRequirement) []ToolStatus {
	statuses := make([]ToolStatus, 0, len(requirements))
	for _, req := range requirements {
		status := ToolStatus{Requirement: req}
		for _, candidate := range append([]string{req.Name}, req.Alternatives...) {
			if CheckToolAvailable(candidate) == nil {
				status.Found = candidate
				break
			}
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// CheckRequiredTools verifies all required tools are available.
//
// A single missing tool reads:
//
//	cmake (CMake build system) not found in PATH
//
// several:
//
//	missing required tools: cmake (CMake build system), cargo (Rust compiler)
func CheckRequiredTools(requirements []ToolRequirement) error {
	var missingTools []string

	for _, status := range ResolveTools(requirements) {
		req := status.Requirement
		if status.Found != "" || req.Optional {
			continue
		}
		if req.Purpose != "" {
			missingTools = append(missingTools, fmt.Sprintf("%s (%s)", req.Name, req.Purpose))
		} else {
			missingTools = append(missingTools, req.Name)
		}
	}

	switch len(missingTools) {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("%s not found in PATH", missingTools[0])
	default:
		return fmt.Errorf("missing required tools: %s", strings.Join(missingTools, ", "))
	}
}
