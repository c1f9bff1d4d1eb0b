package builder

import (
	"path/filepath"
	"strings"

	"github.com/bip-build/bip/internal/plat"
)

// RunInfo carries the per-invocation environment threaded through every
// build call: never ambient globals.
type RunInfo struct {
	Platform plat.ID
	Release  bool
	Verbose  bool
	// Max concurrent object compiles. 1 keeps the sequential reference
	// behavior.
	Jobs int
	// Compiler name override from the command line, applied when a
	// component does not pick its own.
	Compiler string
}

type Kind int

const (
	KindExe Kind = iota + 1
	KindLib
	KindPlug
)

// Language of a component or a single source file.
type Language string

const (
	LangC   Language = "c"
	LangCPP Language = "cpp"
	LangGo  Language = "go"
)

var (
	cExts   = []string{".c"}
	cppExts = []string{".cpp", ".cxx", ".cc"}
	goExts  = []string{".go"}
)

// LangState tracks a component's running language during discovery. A
// component declared cpp starts downgraded to c and is promoted back the
// first time a C++ source shows up, so a cpp component with only .c files
// links as plain C.
type LangState struct {
	declared Language
	current  Language
}

func newLangState(declared Language) LangState {
	current := declared
	if declared == LangCPP {
		current = LangC
	}
	return LangState{declared: declared, current: current}
}

func (s LangState) Current() Language { return s.current }

// Observe classifies one source extension against the running language.
// It returns the possibly promoted state, the language tag for the file,
// and whether the file belongs to this component at all.
func (s LangState) Observe(ext string) (LangState, Language, bool) {
	ext = strings.ToLower(ext)
	switch s.current {
	case LangC:
		if contains(cppExts, ext) {
			s.current = LangCPP
			return s, LangCPP, true
		}
		if contains(cExts, ext) {
			return s, LangC, true
		}
	case LangCPP:
		if contains(cExts, ext) {
			return s, LangC, true
		}
		if contains(cppExts, ext) {
			return s, LangCPP, true
		}
	case LangGo:
		if contains(goExts, ext) {
			return s, LangGo, true
		}
	}
	return s, "", false
}

func contains(exts []string, ext string) bool {
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}

// CodeObject is one discovered compilation unit. Immutable once created.
type CodeObject struct {
	Lang Language
	Src  string
	Obj  string
}

// BuildStats are per-component counters, reset by each discovery pass and
// used purely for reporting.
type BuildStats struct {
	Total    int // candidate objects
	Reused   int // up to date, reused from a previous build
	Compiled int // scheduled for (re)compilation
	OK       int // compiled successfully
	Err      int // failed to compile
}

// Paths is the source/object/output directory triple shared by the
// components of a recipe. Release and debug builds get separate object
// and output trees.
type Paths struct {
	Src string
	Obj string
	Out string
}

func NewPaths(root string, build BuildSection, release bool) Paths {
	mode := "debug"
	if release {
		mode = "release"
	}
	return Paths{
		Src: filepath.Join(root, build.Src),
		Obj: filepath.Join(root, build.Obj, mode),
		Out: filepath.Join(root, build.Out, mode),
	}
}

// Component is the smallest buildable unit of a recipe.
type Component interface {
	Name() string
	// WantRun performs discovery and reports whether the component has
	// work to do. Idempotent: safe to call repeatedly.
	WantRun() (bool, error)
	// Run executes the component: compiling and linking, or plugin code.
	Run(info RunInfo) error
	// Clean removes all run artifacts. Missing files are not errors.
	Clean() error
}

// newComponent builds a Component from its validated recipe entry.
func newComponent(entry ComponentEntry, rcp *Recipe, paths Paths, info RunInfo, oracle *Oracle) (Component, error) {
	kind, outName, err := entry.Spec.Kind()
	if err != nil {
		return nil, err
	}

	if kind == KindPlug {
		return newPlugComponent(entry.Name, outName, paths, entry.Spec.Settings, info), nil
	}

	return newExeOrLibComponent(entry, rcp, paths, kind == KindLib, outName, info, oracle)
}
