package plat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFind(t *testing.T) {
	for name, want := range map[string]ID{
		"linux":   Linux,
		"windows": Windows,
		"win":     Windows,
		"win32":   Windows,
		"darwin":  Darwin,
		"macosx":  Darwin,
		"macos":   Darwin,
		"mac":     Darwin,
	} {
		id, ok := Find(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, id, name)
	}

	_, ok := Find("beos")
	assert.False(t, ok)
}

func TestArtifactNames(t *testing.T) {
	assert.Equal(t, "app", Linux.ExeName("app"))
	assert.Equal(t, "app.exe", Windows.ExeName("app"))
	assert.Equal(t, "libhello.so", Linux.LibName("hello"))
	assert.Equal(t, "hello.dll", Windows.LibName("hello"))
	assert.Equal(t, ".o", Linux.ObjExt())
	assert.Equal(t, ".obj", Windows.ObjExt())
}
