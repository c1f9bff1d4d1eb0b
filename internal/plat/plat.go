// Package plat identifies the platforms bip can build for.
package plat

import "runtime"

type ID int

const (
	Linux ID = iota + 1
	Windows
	Darwin
)

// Names that recipes may use to refer to the supported platforms.
var names = map[string]ID{
	"linux":   Linux,
	"windows": Windows,
	"win":     Windows,
	"win32":   Windows,
	"darwin":  Darwin,
	"macosx":  Darwin,
	"macos":   Darwin,
	"mac":     Darwin,
}

func (id ID) String() string {
	switch id {
	case Linux:
		return "linux"
	case Windows:
		return "windows"
	case Darwin:
		return "darwin"
	}
	return "unknown"
}

// Find resolves a platform name from a recipe to an ID.
func Find(name string) (ID, bool) {
	id, ok := names[name]
	return id, ok
}

// KnownNames returns every accepted platform name, for error messages.
func KnownNames() []string {
	keys := make([]string, 0, len(names))
	for k := range names {
		keys = append(keys, k)
	}
	return keys
}

// Native determines the platform we are running on. If we cannot reliably
// determine it, Linux is close enough.
func Native() ID {
	switch runtime.GOOS {
	case "windows":
		return Windows
	case "darwin":
		return Darwin
	default:
		return Linux
	}
}

// ObjExt returns the object file extension used on this platform.
func (id ID) ObjExt() string {
	if id == Windows {
		return ".obj"
	}
	return ".o"
}

// ExeName decorates an output basename for an executable.
func (id ID) ExeName(base string) string {
	if id == Windows {
		return base + ".exe"
	}
	return base
}

// LibName decorates an output basename for a shared library.
func (id ID) LibName(base string) string {
	if id == Windows {
		return base + ".dll"
	}
	return "lib" + base + ".so"
}
