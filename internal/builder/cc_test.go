package builder

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bip-build/bip/internal/plat"
	"github.com/bip-build/bip/internal/version"
)

func TestFindCompilerAndAliases(t *testing.T) {
	for name, wantName := range map[string]string{
		"clang":    "Clang",
		"gnu":      "GCC",
		"gcc":      "GCC",
		"msc":      "MSC",
		"msvc":     "MSC",
		"clang-cl": "clang-cl",
		"CLANG":    "Clang",
	} {
		c, ok := FindCompiler(name)
		require.True(t, ok, name)
		assert.Equal(t, wantName, c.Name, name)
	}

	_, ok := FindCompiler("tcc")
	assert.False(t, ok)
}

func TestKnownCompilerNames(t *testing.T) {
	assert.Equal(t, []string{"clang", "clang-cl", "gcc", "gnu", "msc", "msvc"}, KnownCompilerNames())
}

func TestGNUObjArgsDebug(t *testing.T) {
	args := ObjArgs(StyleGNU, CompileUnitInfo{
		Src:      "src/a.c",
		Obj:      "obj/a.o",
		Include:  []string{"include"},
		Std:      "c17",
		Platform: plat.Linux,
	})

	assert.Equal(t, []string{"-c", "src/a.c", "-o", "obj/a.o"}, args[:4])
	assert.Contains(t, args, "-Iinclude")
	assert.Contains(t, args, "-m64")
	assert.Contains(t, args, "-O0")
	assert.Contains(t, args, "-g")
	assert.Contains(t, args, "-DDEBUG")
	assert.Contains(t, args, "--std=c17")
	assert.NotContains(t, args, "-O3")
	assert.NotContains(t, args, "-fPIC")
	assert.NotContains(t, args, "-fno-exceptions")
}

func TestGNUObjArgsRelease(t *testing.T) {
	args := ObjArgs(StyleGNU, CompileUnitInfo{
		Src:         "a.cpp",
		Obj:         "a.o",
		Std:         "c++20",
		Release:     true,
		PIC:         true,
		HideSymbols: true,
		Noexcept:    true,
		IsCPP:       true,
		Platform:    plat.Linux,
	})

	for _, want := range []string{"-O3", "-flto", "-ffast-math", "-msse4.2", "-DNDEBUG",
		"-fPIC", "-fvisibility=hidden", "-fno-exceptions", "--std=c++20"} {
		assert.Contains(t, args, want)
	}
	assert.NotContains(t, args, "-DDEBUG")
}

func TestGNUObjArgsWindowsSkipsPIC(t *testing.T) {
	args := ObjArgs(StyleGNU, CompileUnitInfo{
		Src: "a.c", Obj: "a.obj", Std: "c17",
		PIC: true, HideSymbols: true,
		Platform: plat.Windows,
	})
	assert.NotContains(t, args, "-fPIC")
	assert.NotContains(t, args, "-fvisibility=hidden")
}

func TestMSCObjArgs(t *testing.T) {
	args := ObjArgs(StyleMSC, CompileUnitInfo{
		Src:      "a.cpp",
		Obj:      "a.obj",
		Include:  []string{"inc"},
		Std:      "c++20",
		Release:  true,
		IsCPP:    true,
		Platform: plat.Windows,
	})

	assert.Equal(t, []string{"/c", "a.cpp", "/Foa.obj"}, args[:3])
	for _, want := range []string{"/Iinc", "/O2", "/fp:fast", "/GL", "/DNDEBUG",
		"/TP", "/std:c++20", "/permissive-", "/EHsc", "/nologo", "/diagnostics:caret", "/utf-8"} {
		assert.Contains(t, args, want)
	}
	// /link /LTCG must come last so cl forwards them to the linker
	assert.Equal(t, []string{"/link", "/LTCG"}, args[len(args)-2:])
}

func TestMSCObjArgsCAndNoexcept(t *testing.T) {
	args := ObjArgs(StyleMSC, CompileUnitInfo{
		Src: "a.c", Obj: "a.obj", Std: "c17",
		Noexcept: true, Platform: plat.Windows,
	})
	assert.Contains(t, args, "/TC")
	assert.NotContains(t, args, "/TP")
	assert.NotContains(t, args, "/EHsc")
	assert.Contains(t, args, "/Od")
	assert.Contains(t, args, "/DDEBUG")
}

func TestVersionDefine(t *testing.T) {
	num := strconv.Itoa(version.Num())

	gnu := ObjArgs(StyleGNU, CompileUnitInfo{Src: "a.c", Obj: "a.o", Std: "c17", Platform: plat.Linux})
	assert.Contains(t, gnu, "-D_BIP="+num)

	msc := ObjArgs(StyleMSC, CompileUnitInfo{Src: "a.c", Obj: "a.obj", Std: "c17", Platform: plat.Windows})
	assert.Contains(t, msc, "/D_BIP="+num)
}

func TestDefineFlagsAreSortedAndValued(t *testing.T) {
	args := ObjArgs(StyleGNU, CompileUnitInfo{
		Src: "a.c", Obj: "a.o", Std: "c17", Platform: plat.Linux,
		Defines: map[string]string{"ZED": "", "ALPHA": "2", "MID": "x"},
	})

	var defs []string
	for _, a := range args {
		switch a {
		case "-DALPHA=2", "-DMID=x", "-DZED":
			defs = append(defs, a)
		}
	}
	assert.Equal(t, []string{"-DALPHA=2", "-DMID=x", "-DZED"}, defs)
}

func TestGNULinkArgs(t *testing.T) {
	args := LinkArgs(StyleGNU, false, LinkUnitInfo{
		Objects:  []string{"a.o", "b.o"},
		Out:      "out/app",
		LibDirs:  []string{"out"},
		DynLibs:  []string{"m"},
		Platform: plat.Linux,
	})

	assert.Equal(t, []string{"-o", "out/app", "a.o", "b.o"}, args[:4])
	assert.Contains(t, args, "-Lout")
	assert.Contains(t, args, "-Wl,-rpath,$ORIGIN")
	assert.Contains(t, args, "-lm")
	assert.Contains(t, args, "-g")
	assert.NotContains(t, args, "-shared")
	assert.NotContains(t, args, "-flto")
}

func TestGNULinkArgsSharedLibRelease(t *testing.T) {
	args := LinkArgs(StyleGNU, true, LinkUnitInfo{
		Objects:     []string{"a.o"},
		Out:         "out/libx.so",
		Release:     true,
		HideSymbols: true,
		Linker:      "mold",
		Platform:    plat.Linux,
	})

	assert.Equal(t, "-shared", args[0])
	assert.Contains(t, args, "-flto")
	assert.Contains(t, args, "-fvisibility=hidden")
	assert.Contains(t, args, "-fuse-ld=mold")
	assert.NotContains(t, args, "-g")
}

func TestGNULinkArgsWindowsDefaultsToLLDLink(t *testing.T) {
	args := LinkArgs(StyleGNU, false, LinkUnitInfo{
		Objects:  []string{"a.obj"},
		Out:      "out/app.exe",
		Platform: plat.Windows,
	})
	assert.Contains(t, args, "-fuse-ld=lld-link")
	assert.NotContains(t, args, "-Wl,-rpath,$ORIGIN")
}

func TestMSCLinkArgs(t *testing.T) {
	args := LinkArgs(StyleMSC, true, LinkUnitInfo{
		Objects:    []string{"a.obj"},
		Out:        "out/x.dll",
		LibDirs:    []string{"out"},
		DynLibs:    []string{"user32"},
		StaticLibs: []string{"zlib"},
		Release:    true,
		Platform:   plat.Windows,
	})

	assert.Equal(t, "-Feout/x.dll", args[0])
	assert.Contains(t, args, "/MD")
	assert.Contains(t, args, "/LD")
	assert.Contains(t, args, "user32.lib")
	assert.Contains(t, args, "zlib.lib")

	linkIdx := -1
	for i, a := range args {
		if a == "/link" {
			linkIdx = i
		}
	}
	require.GreaterOrEqual(t, linkIdx, 0)
	assert.Contains(t, args[linkIdx:], "/LTCG")
	assert.Contains(t, args[linkIdx:], "/LIBPATH:out")
}

func TestDiagnosticsString(t *testing.T) {
	assert.Equal(t, "", Diagnostics{}.String())
	assert.Equal(t, "err", Diagnostics{Stderr: "err\n"}.String())
	assert.Equal(t, "out", Diagnostics{Stdout: "out\n"}.String())
	assert.Equal(t, "out\nerr", Diagnostics{Stdout: "out", Stderr: "err"}.String())
}
