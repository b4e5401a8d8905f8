// Package pathext builds the native extensions of gems that are used
// straight from a local checkout.
//
// Installers normally skip extension compilation for path-sourced gems and
// expect a versioned extension cache to be valid. Local checkouts change
// without version bumps, so this package always compiles, keeps its
// bookkeeping in a project-local tmp/ directory, and copies the compiled
// artifacts into the gem's lib directory.
//
// # Basic Usage
//
// Build one extension:
//
//	builder := pathext.NewArtifactBuilder(nil, pathext.DefaultConfig())
//	result, err := builder.Build(ctx, &pathext.BuildRequest{
//	    SourceDir:       "/src/mygem/ext/mygem",
//	    DescriptionFile: "extconf.rb",
//	    TargetDir:       "/src/mygem/tmp/x86_64-linux/mygem/3.4.1",
//	    LibDir:          "/src/mygem/lib",
//	})
//
// Or every extension of a checkout:
//
//	pkg, err := pathext.Discover("/src/mygem")
//	installer := pathext.NewInstaller(pathext.NewRegistry(nil, cfg), os.Stdout)
//	report, err := installer.Install(ctx, pkg)
//
// # Architecture
//
// Build descriptions are classified by filename (see KindOf):
//
//	Registry
//	├── ArtifactBuilder (extconf.rb, Makefile)
//	├── RakeBuilder (Rakefile, mkrf_conf.rb)
//	├── CmakeBuilder (CMakeLists.txt)
//	└── CargoBuilder (Cargo.toml)
//
// Every build runs in a TempWorkspace inside the source tree that is
// removed when the build returns, and artifacts reach the lib directory only
// after the toolchain reported success.
//
// # Concurrency
//
// Builds of different source trees are independent. Builds of the same
// tree must be serialized; Installer does this with LockSource. Child
// process environments are assembled per command and the process
// environment is never modified.
package pathext
