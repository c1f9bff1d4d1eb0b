//go:build windows

package builder

import (
	"path/filepath"

	"github.com/heaths/go-vssetup"
)

// findBundledCompiler locates a toolchain frontend that is installed but
// not on PATH. On Windows that means asking the Visual Studio Setup API
// where cl.exe (or the bundled clang-cl.exe) lives.
func findBundledCompiler(exe string) (string, bool) {
	switch exe {
	case "cl", "clang-cl":
	default:
		return "", false
	}

	instances, err := vssetup.Instances(false)
	if err != nil {
		return "", false
	}

	for _, instance := range instances {
		root, err := instance.InstallationPath()
		if err != nil {
			continue
		}

		var pattern string
		if exe == "cl" {
			pattern = filepath.Join(root, "VC", "Tools", "MSVC", "*", "bin", "Hostx64", "x64", "cl.exe")
		} else {
			pattern = filepath.Join(root, "VC", "Tools", "Llvm", "x64", "bin", "clang-cl.exe")
		}

		matches, err := filepath.Glob(pattern)
		if err != nil || len(matches) == 0 {
			continue
		}
		// the glob sorts lexically, the last match is the newest toolset
		return matches[len(matches)-1], true
	}

	return "", false
}
