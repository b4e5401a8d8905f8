package pathext

import (
	"path/filepath"
	"strings"
)

// DescriptionKind classifies a build description by its filename.
type DescriptionKind int

const (
	// KindOther is handled by one of the registered secondary builders.
	KindOther DescriptionKind = iota
	// KindConfigureScript is an extconf.rb that generates a Makefile.
	KindConfigureScript
	// KindPrebuilt is a Makefile shipped with the source; configure is skipped.
	KindPrebuilt
)

func (k DescriptionKind) String() string {
	switch k {
	case KindConfigureScript:
		return "configure-script"
	case KindPrebuilt:
		return "prebuilt"
	default:
		return "other"
	}
}

// descriptionKinds maps lowercased base names to their kind.
var descriptionKinds = map[string]DescriptionKind{
	"extconf.rb":  KindConfigureScript,
	"makefile":    KindPrebuilt,
	"gnumakefile": KindPrebuilt,
}

// KindOf returns the kind of a build description path.
func KindOf(descriptionFile string) DescriptionKind {
	name := strings.ToLower(filepath.Base(descriptionFile))
	if kind, ok := descriptionKinds[name]; ok {
		return kind
	}
	// Gems occasionally ship extconf variants such as "extconf_java.rb".
	if MatchesPattern(name, `^extconf[\w-]*\.rb$`) {
		return KindConfigureScript
	}
	return KindOther
}
