//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Default target to run when none is specified.
var Default = Test

// Test runs the unit tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Vet runs go vet.
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Lint runs golangci-lint when it is installed.
func Lint() error {
	mg.Deps(Vet)
	if _, err := sh.Output("golangci-lint", "version"); err != nil {
		return nil
	}
	return sh.RunV("golangci-lint", "run", "./...")
}

// Build compiles the pathext command into bin/.
func Build() error {
	mg.Deps(Test)
	return sh.RunV("go", "build", "-o", "bin/pathext", "./cmd/pathext")
}

// Clean removes build output.
func Clean() error {
	return sh.Rm("bin")
}
