package pathext

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// MatchesPattern checks if a filename matches any of the given regex patterns.
//
// Invalid patterns are skipped.
//
//	if MatchesPattern(filename, `^configure$`, `^configure\.sh$`) {
//	    // Handle configure scripts
//	}
func MatchesPattern(filename string, patterns ...string) bool {
	for _, pattern := range patterns {
		if matched, _ := regexp.MatchString(pattern, filename); matched {
			return true
		}
	}
	return false
}

// MatchesExtension checks if a filename has any of the given extensions.
//
// This is a case-insensitive check; extensions may be given with or
// without the leading dot.
func MatchesExtension(filename string, extensions ...string) bool {
	for _, ext := range extensions {
		if strings.HasSuffix(strings.ToLower(filename), strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// RelativePath rewrites path to a dot-relative path when it is rooted under
// base and returns it unchanged otherwise.
//
// Generated Makefiles break on absolute paths containing spaces, so the
// workspace is always handed to make through this helper:
//
//	RelativePath("/a/b/c", "/a/b") // "./c"
//	RelativePath("/x/y", "/a/b")   // "/x/y"
func RelativePath(path, base string) string {
	if base == "" {
		return path
	}
	cleanBase := filepath.Clean(base)
	cleanPath := filepath.Clean(path)
	if cleanPath == cleanBase {
		return "."
	}
	prefix := cleanBase
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	if !strings.HasPrefix(cleanPath, prefix) {
		return path
	}
	return "." + string(filepath.Separator) + strings.TrimPrefix(cleanPath, prefix)
}

// BuildError creates a standardized build error with output context.
//
// With error and output:
//
//	ExtConf build failed: exit status 1
//
//	Build output:
//	gcc -o extension.o -c extension.c
//	gcc: error: invalid option
//
// The underlying error stays reachable through errors.Is / errors.As.
func BuildError(builder string, output []string, err error) error {
	outputStr := strings.Join(output, "\n")

	var prefix string
	if err != nil {
		prefix = fmt.Sprintf("%s build failed: %v", builder, err)
	} else {
		prefix = fmt.Sprintf("%s build failed", builder)
	}

	if outputStr != "" {
		prefix = fmt.Sprintf("%s\n\nBuild output:\n%s", prefix, outputStr)
	}

	if err == nil {
		return fmt.Errorf("%s", prefix)
	}
	return &outputError{msg: prefix, err: err}
}

type outputError struct {
	msg string
	err error
}

func (e *outputError) Error() string { return e.msg }
func (e *outputError) Unwrap() error { return e.err }
