package builder

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/bip-build/bip/internal/plat"
	"github.com/bip-build/bip/internal/version"
)

// FlagStyle is the command-line convention family used to invoke a
// toolchain. It also decides how outputs and libraries are spelled.
type FlagStyle int

const (
	// GNU-like: gcc, g++, clang
	StyleGNU FlagStyle = iota + 1
	// MSVC-like: cl.exe
	StyleMSC
)

// Compiler is a registry entry for a C/C++ toolchain. A nil-equivalent
// (empty) frontend means the compiler does not support that language.
type Compiler struct {
	// Display name.
	Name string
	// C frontend executable.
	CC string
	// C++ frontend executable.
	CXX string
	// See FlagStyle.
	Style FlagStyle
}

var knownCompilers = map[string]Compiler{
	"clang":    {Name: "Clang", CC: "clang", CXX: "clang++", Style: StyleGNU},
	"gnu":      {Name: "GCC", CC: "gcc", CXX: "g++", Style: StyleGNU},
	"clang-cl": {Name: "clang-cl", CC: "clang-cl", CXX: "clang-cl", Style: StyleMSC},
	"msc":      {Name: "MSC", CC: "cl", CXX: "cl", Style: StyleMSC},
}

var compilerAliases = map[string]string{
	"gcc":  "gnu",
	"msvc": "msc",
}

// exe basename -> registry key, for honoring CC/CXX environment overrides
var exeToCompiler = map[string]string{
	"clang":    "clang",
	"clang++":  "clang",
	"gcc":      "gnu",
	"g++":      "gnu",
	"cl":       "msc",
	"clang-cl": "clang-cl",
}

// FindCompiler resolves a compiler name or alias to its registry entry
// without probing the environment.
func FindCompiler(name string) (Compiler, bool) {
	name = strings.ToLower(name)
	if alias, ok := compilerAliases[name]; ok {
		name = alias
	}
	c, ok := knownCompilers[name]
	return c, ok
}

// KnownCompilerNames returns every accepted compiler name, for error
// messages and flag completion.
func KnownCompilerNames() []string {
	names := make([]string, 0, len(knownCompilers)+len(compilerAliases))
	for k := range knownCompilers {
		names = append(names, k)
	}
	for k := range compilerAliases {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// HasCompiler resolves a compiler name and checks that its frontends are
// present on the search path.
func HasCompiler(name string) (Compiler, bool) {
	c, ok := FindCompiler(name)
	if !ok {
		return Compiler{}, false
	}
	if c.CC != "" {
		if _, err := exec.LookPath(c.CC); err != nil {
			if found, ok := findBundledCompiler(c.CC); ok {
				c.CC = found
			} else {
				return Compiler{}, false
			}
		}
	}
	if c.CXX != "" {
		if _, err := exec.LookPath(c.CXX); err != nil {
			if found, ok := findBundledCompiler(c.CXX); ok {
				c.CXX = found
			} else {
				return Compiler{}, false
			}
		}
	}
	return c, true
}

// DefaultCompiler picks a compiler when the recipe names none: CC/CXX
// environment overrides win if they map to a known toolchain, then clang
// if present, then the platform default.
func DefaultCompiler(platform plat.ID) (Compiler, bool) {
	for _, env := range []string{"CC", "CXX"} {
		exe := os.Getenv(env)
		if exe == "" {
			continue
		}
		base := strings.TrimSuffix(filepath.Base(exe), filepath.Ext(exe))
		if name, ok := exeToCompiler[base]; ok {
			if c, ok := HasCompiler(name); ok {
				return c, true
			}
		}
	}

	if c, ok := HasCompiler("clang"); ok {
		return c, true
	}

	switch platform {
	case plat.Windows:
		return HasCompiler("msc")
	default:
		return HasCompiler("gnu")
	}
}

// CompileUnitInfo is the resolved, merged configuration for one compiler
// invocation.
type CompileUnitInfo struct {
	Src string
	Obj string
	// Component-local then recipe-global include dirs, duplicates allowed.
	Include []string
	// name -> value; empty value emits a bare define.
	Defines map[string]string
	Std     string
	Release bool
	// Position independent code (libraries, GNU style only).
	PIC         bool
	HideSymbols bool
	Noexcept    bool
	IsCPP       bool
	Platform    plat.ID
}

func versionDefine(style FlagStyle) string {
	prefix := "-D"
	if style == StyleMSC {
		prefix = "/D"
	}
	return prefix + "_BIP=" + strconv.Itoa(version.Num())
}

// ObjArgs builds the compiler argument list for one object.
func ObjArgs(style FlagStyle, info CompileUnitInfo) []string {
	if style == StyleMSC {
		return mscObjArgs(info)
	}
	return gnuObjArgs(info)
}

func gnuObjArgs(info CompileUnitInfo) []string {
	flags := []string{"-c", info.Src, "-o", info.Obj}

	for _, inc := range info.Include {
		flags = append(flags, "-I"+inc)
	}

	if info.Platform != plat.Windows {
		if info.PIC {
			flags = append(flags, "-fPIC")
		}
		if info.HideSymbols {
			flags = append(flags, "-fvisibility=hidden")
		}
	}

	flags = append(flags, "-m64")

	if info.Release {
		flags = append(flags, "-O3", "-flto", "-ffast-math", "-msse4.2", "-DNDEBUG")
	} else {
		flags = append(flags, "-O0", "-g", "-Wall", "-Wpedantic", "-Wextra", "-DDEBUG")
	}

	flags = append(flags, defineFlags("-D", info.Defines)...)
	flags = append(flags, versionDefine(StyleGNU))

	flags = append(flags, "--std="+info.Std)

	if info.Noexcept {
		flags = append(flags, "-fno-exceptions")
	}

	return flags
}

func mscObjArgs(info CompileUnitInfo) []string {
	flags := []string{"/c", info.Src, "/Fo" + info.Obj}

	for _, inc := range info.Include {
		flags = append(flags, "/I"+inc)
	}

	if info.Release {
		flags = append(flags, "/O2", "/fp:fast", "/GL", "/DNDEBUG")
	} else {
		flags = append(flags, "/Od", "/DEBUG", "/W3", "/DDEBUG")
	}

	flags = append(flags, defineFlags("/D", info.Defines)...)
	flags = append(flags, versionDefine(StyleMSC))

	if info.IsCPP {
		flags = append(flags, "/TP")
	} else {
		flags = append(flags, "/TC")
	}

	flags = append(flags, "/std:"+info.Std, "/permissive-")

	if !info.Noexcept {
		flags = append(flags, "/EHsc")
	}

	// bring msvc to the modern day
	flags = append(flags, "/nologo", "/diagnostics:caret", "/utf-8")

	if info.Release {
		flags = append(flags, "/link", "/LTCG")
	}

	return flags
}

func defineFlags(prefix string, defines map[string]string) []string {
	names := make([]string, 0, len(defines))
	for name := range defines {
		names = append(names, name)
	}
	// deterministic flag lines regardless of map order
	slices.Sort(names)

	flags := make([]string, 0, len(names))
	for _, name := range names {
		if val := defines[name]; val != "" {
			flags = append(flags, prefix+name+"="+val)
		} else {
			flags = append(flags, prefix+name)
		}
	}
	return flags
}

// LinkUnitInfo is the resolved configuration for a final link step.
type LinkUnitInfo struct {
	// Full object list, newly compiled objects first, then reused
	// objects, each in discovery order.
	Objects []string
	Out     string
	// Library search directories.
	LibDirs    []string
	DynLibs    []string
	StaticLibs []string
	// Raw extra linker arguments from the recipe.
	ExtraArgs []string
	Release   bool
	// Any C++ objects present: picks the C++ frontend for the link.
	IsCPP       bool
	Linker      string
	HideSymbols bool
	Noexcept    bool
	Platform    plat.ID
}

// LinkArgs builds the linker argument list. Libraries request a shared
// object output mode, executables do not.
func LinkArgs(style FlagStyle, isLib bool, info LinkUnitInfo) []string {
	if style == StyleMSC {
		return mscLinkArgs(isLib, info)
	}
	return gnuLinkArgs(isLib, info)
}

func gnuLinkArgs(isLib bool, info LinkUnitInfo) []string {
	var flags []string
	if isLib {
		flags = append(flags, "-shared")
	}
	flags = append(flags, "-o", info.Out)
	flags = append(flags, info.Objects...)

	for _, d := range info.LibDirs {
		flags = append(flags, "-L"+d)
	}

	if info.Platform != plat.Windows {
		// artifacts find their sibling libraries at runtime
		flags = append(flags, `-Wl,-rpath,$ORIGIN`)
		if isLib && info.HideSymbols {
			flags = append(flags, "-fvisibility=hidden")
		}
	}

	if info.Release {
		flags = append(flags, "-flto")
	} else {
		flags = append(flags, "-g")
	}

	if info.Linker != "" {
		flags = append(flags, "-fuse-ld="+info.Linker)
	} else if info.Platform == plat.Windows {
		flags = append(flags, "-fuse-ld=lld-link")
	}

	if info.Noexcept {
		flags = append(flags, "-fno-exceptions")
	}

	for _, lib := range info.DynLibs {
		flags = append(flags, "-l"+lib)
	}
	for _, lib := range info.StaticLibs {
		flags = append(flags, "-l"+lib)
	}

	flags = append(flags, info.ExtraArgs...)

	return flags
}

func mscLinkArgs(isLib bool, info LinkUnitInfo) []string {
	flags := []string{"-Fe" + info.Out}
	flags = append(flags, info.Objects...)

	if info.Release {
		flags = append(flags, "/MD")
		if isLib {
			flags = append(flags, "/LD")
		}
		flags = append(flags, "/GL")
	} else {
		if isLib {
			flags = append(flags, "/MDd", "/LDd")
		} else {
			flags = append(flags, "/MDd")
		}
	}

	flags = append(flags, "/nologo")

	for _, lib := range info.DynLibs {
		flags = append(flags, lib+".lib")
	}
	for _, lib := range info.StaticLibs {
		flags = append(flags, lib+".lib")
	}

	flags = append(flags, "/link")

	if info.Release {
		flags = append(flags, "/LTCG")
	}

	for _, d := range info.LibDirs {
		flags = append(flags, "/LIBPATH:"+d)
	}

	flags = append(flags, info.ExtraArgs...)

	return flags
}

// Diagnostics is captured toolchain output, surfaced verbatim and never
// parsed for meaning.
type Diagnostics struct {
	Stdout string
	Stderr string
}

func (d Diagnostics) String() string {
	out := strings.TrimSpace(d.Stdout)
	errout := strings.TrimSpace(d.Stderr)
	switch {
	case out == "":
		return errout
	case errout == "":
		return out
	default:
		return out + "\n" + errout
	}
}

// RunTool executes one synchronous toolchain subprocess. A non-zero exit
// is reported as an error alongside whatever the tool printed.
func RunTool(exe string, args []string) (Diagnostics, error) {
	cmd := exec.Command(exe, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	diag := Diagnostics{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		return diag, fmt.Errorf("%s: %w", exe, err)
	}
	return diag, nil
}
