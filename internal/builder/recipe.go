package builder

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pelletier/go-toml/v2/unstable"

	"github.com/bip-build/bip/internal/plat"
	"github.com/bip-build/bip/internal/version"
)

const (
	DefaultCStd   = "c17"
	DefaultCPPStd = "c++20"
)

// LangConfig is one override layer of per-language compiler settings.
// Resolved configs are produced by merging builtin defaults, the recipe's
// [build.c]/[build.cpp] tables and the component's own c/cpp tables, in
// that order of increasing precedence.
type LangConfig struct {
	// Which compiler to use. If empty, a default is determined from the
	// current platform.
	Compiler string `toml:"compiler"`
	// Linker override for compilers that support -fuse-ld.
	Linker string `toml:"linker"`
	// Language standard. Empty means c17 / c++20.
	Std string `toml:"std"`
	// Additional include directories.
	Include []string `toml:"include"`
	// Preprocessor definitions. An empty value means the compiler defines
	// the default, usually 1.
	Define map[string]string `toml:"define"`
	// C++: disable exceptions.
	Noexcept bool `toml:"noexcept"`
	// Default symbols to hidden visibility (GNU-like compilers on
	// non-Windows platforms).
	HideSymbols bool `toml:"hide-symbols"`
}

// Merge layers over on top of c, returning a new value. Scalars are
// overridden when set, include dirs are concatenated (duplicates allowed),
// defines are unioned with over winning, toggles are sticky.
func (c LangConfig) Merge(over LangConfig) LangConfig {
	out := c
	if over.Compiler != "" {
		out.Compiler = over.Compiler
	}
	if over.Linker != "" {
		out.Linker = over.Linker
	}
	if over.Std != "" {
		out.Std = over.Std
	}
	out.Include = append(slices.Clone(c.Include), over.Include...)
	if c.Define != nil || over.Define != nil {
		out.Define = make(map[string]string, len(c.Define)+len(over.Define))
		maps.Copy(out.Define, c.Define)
		maps.Copy(out.Define, over.Define)
	}
	out.Noexcept = c.Noexcept || over.Noexcept
	out.HideSymbols = c.HideSymbols || over.HideSymbols
	return out
}

// BuildSection is the required [build] table of a recipe.
type BuildSection struct {
	Src      string     `toml:"src"`
	Out      string     `toml:"out"`
	Obj      string     `toml:"obj"`
	Incl     []string   `toml:"incl"`
	Requires string     `toml:"requires"`
	C        LangConfig `toml:"c"`
	CPP      LangConfig `toml:"cpp"`
}

// stringList accepts either a single string or a list of strings.
type stringList []string

func (l *stringList) UnmarshalTOML(value *unstable.Node) error {
	switch value.Kind {
	case unstable.String:
		*l = stringList{string(value.Data)}
	case unstable.Array:
		out := stringList{}
		for it := value.Children(); it.Next(); {
			item := it.Node()
			if item.Kind != unstable.String {
				return fmt.Errorf("expected string, got %s", item.Kind)
			}
			out = append(out, string(item.Data))
		}
		*l = out
	default:
		return fmt.Errorf("unexpected type: %s", value.Kind)
	}
	return nil
}

// ComponentSpec is a raw component table from a recipe. Exactly one of
// Exe, Lib or Plug must be set; its value is the output basename (or the
// plugin directory name).
type ComponentSpec struct {
	Exe        string         `toml:"exe"`
	Lib        string         `toml:"lib"`
	Plug       string         `toml:"plug"`
	Lang       string         `toml:"lang"`
	Src        stringList     `toml:"src"`
	Platform   string         `toml:"platform"`
	Libs       []string       `toml:"libs"` // deprecated alias for dyn-libs
	DynLibs    []string       `toml:"dyn-libs"`
	StaticLibs []string       `toml:"static-libs"`
	Link       []string       `toml:"link"`
	Recursive  *bool          `toml:"recursive"`
	Fetch      string         `toml:"fetch"`
	C          LangConfig     `toml:"c"`
	CPP        LangConfig     `toml:"cpp"`
	Settings   map[string]any `toml:"settings"`
}

// Kind reports which of the exe/lib/plug keys is set.
func (s *ComponentSpec) Kind() (Kind, string, error) {
	var kind Kind
	var outName string
	n := 0
	if s.Exe != "" {
		kind, outName, n = KindExe, s.Exe, n+1
	}
	if s.Lib != "" {
		kind, outName, n = KindLib, s.Lib, n+1
	}
	if s.Plug != "" {
		kind, outName, n = KindPlug, s.Plug, n+1
	}
	if n != 1 {
		return 0, "", errors.New("must set exactly one of `exe`, `lib` or `plug`")
	}
	return kind, outName, nil
}

type ComponentEntry struct {
	Name string
	Spec ComponentSpec
}

// Recipe is a parsed and validated recipe file.
type Recipe struct {
	Path       string
	Root       string
	Build      BuildSection
	Components []ComponentEntry
}

var tableHeaderRegex = regexp.MustCompile(`(?m)^\s*\[([A-Za-z0-9_-]+)\]\s*(?:#.*)?$`)

// componentOrder recovers the declaration order of top-level tables from
// the raw recipe text; TOML decodes into an unordered map, but components
// must run in recipe declaration order.
func componentOrder(data []byte) []string {
	var order []string
	seen := make(map[string]bool)
	for _, m := range tableHeaderRegex.FindAllSubmatch(data, -1) {
		name := string(m[1])
		if name == "build" || seen[name] {
			continue
		}
		seen[name] = true
		order = append(order, name)
	}
	return order
}

// ParseRecipe parses, expression-evaluates and validates recipe data.
func ParseRecipe(data []byte, path string, env RecipeEnv) (*Recipe, error) {
	var rawRecipe map[string]any
	if err := toml.Unmarshal(data, &rawRecipe); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			return nil, errors.New(derr.String())
		}
		return nil, err
	}

	processed, err := processExpressions(rawRecipe, env)
	if err != nil {
		return nil, fmt.Errorf("error processing expressions in recipe: %w", err)
	}
	rawRecipe = processed.(map[string]any)

	rcp := &Recipe{
		Path: path,
		Root: filepath.Dir(path),
	}

	buildData, ok := rawRecipe["build"]
	if !ok {
		return nil, errors.New("recipe must define a [build] table")
	}
	buildTable, ok := buildData.(map[string]any)
	if !ok {
		return nil, errors.New("invalid [build] section: expected a table")
	}
	if err := unmarshalConditionalTable(buildTable, "build", &rcp.Build, env); err != nil {
		return nil, err
	}

	if rcp.Build.Requires != "" {
		reqr, err := version.ParseReqr(rcp.Build.Requires)
		if err != nil {
			return nil, err
		}
		if !reqr.Satisfied() {
			return nil, fmt.Errorf("recipe requires bip %s, this is bip %s",
				rcp.Build.Requires, version.String())
		}
	}

	for _, name := range componentOrder(data) {
		cmpntData, ok := rawRecipe[name]
		if !ok {
			continue
		}
		cmpntTable, ok := cmpntData.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("component %q: expected a table", name)
		}

		var spec ComponentSpec
		if err := unmarshalConditionalTable(cmpntTable, name, &spec, env); err != nil {
			return nil, err
		}
		if err := validateSpec(name, &spec); err != nil {
			return nil, err
		}
		rcp.Components = append(rcp.Components, ComponentEntry{Name: name, Spec: spec})
	}

	return rcp, nil
}

func validateSpec(name string, spec *ComponentSpec) error {
	kind, _, err := spec.Kind()
	if err != nil {
		return fmt.Errorf("component %q: %w", name, err)
	}

	if kind == KindExe || kind == KindLib {
		if spec.Lang == "" {
			return fmt.Errorf("component %q: executable and library components must specify a language with the `lang` key", name)
		}
		switch Language(strings.ToLower(spec.Lang)) {
		case LangC, LangCPP, LangGo:
		default:
			return fmt.Errorf("component %q: unknown language %q (supported: c, cpp, go)", name, spec.Lang)
		}
	}

	if spec.Platform != "" {
		if _, ok := plat.Find(strings.ToLower(spec.Platform)); !ok {
			return fmt.Errorf("component %q: unknown platform %q (supported: %s)",
				name, spec.Platform, strings.Join(plat.KnownNames(), ", "))
		}
	}

	return nil
}

// LoadRecipe reads and parses a recipe file.
func LoadRecipe(path string, env RecipeEnv) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRecipe(data, path, env)
}
