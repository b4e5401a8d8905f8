package pathext

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// descriptionGlob finds build descriptions below ext/.
const descriptionGlob = "ext/**/{extconf.rb,CMakeLists.txt,Cargo.toml,mkrf_conf.rb,Rakefile,Makefile}"

// descriptionPriority orders competing descriptions in one directory. A
// Makefile next to an extconf.rb was generated by it and is not a
// description of its own.
var descriptionPriority = map[string]int{
	"extconf.rb":     0,
	"CMakeLists.txt": 1,
	"Cargo.toml":     2,
	"mkrf_conf.rb":   3,
	"Rakefile":       4,
	"Makefile":       5,
}

// Discover builds a Package for the gem checked out at dir. The name comes
// from the gemspec filename (or the directory name when there is none) and
// the extensions from the build descriptions found under ext/.
func Discover(dir string) (*Package, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", abs)
	}

	fsys := os.DirFS(abs)

	name := filepath.Base(abs)
	specs, err := doublestar.Glob(fsys, "*.gemspec")
	if err != nil {
		return nil, err
	}
	if len(specs) > 0 {
		sort.Strings(specs)
		name = strings.TrimSuffix(specs[0], ".gemspec")
	}

	matches, err := doublestar.Glob(fsys, descriptionGlob)
	if err != nil {
		return nil, err
	}

	best := make(map[string]string)
	for _, match := range matches {
		if skipDiscovered(match) {
			continue
		}
		dir := path.Dir(match)
		current, ok := best[dir]
		if !ok || descriptionPriority[path.Base(match)] < descriptionPriority[path.Base(current)] {
			best[dir] = match
		}
	}

	extensions := make([]string, 0, len(best))
	for _, match := range best {
		extensions = append(extensions, match)
	}
	sort.Strings(extensions)

	return &Package{
		Name:         name,
		Dir:          abs,
		Extensions:   extensions,
		RequirePaths: []string{"lib"},
	}, nil
}

// skipDiscovered drops descriptions inside build output directories.
func skipDiscovered(match string) bool {
	for _, part := range strings.Split(path.Dir(match), "/") {
		if part == "tmp" || part == "target" || IsWorkspaceName(part) {
			return true
		}
	}
	return false
}
