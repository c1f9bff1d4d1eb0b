package builder

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touchAt(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestOracleMissingObjectIsStale(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.c")
	touchAt(t, src, time.Now())

	o := NewOracle()
	assert.True(t, o.IsStale(src, filepath.Join(dir, "a.o")))
}

func TestOracleMissingSourceIsNotStale(t *testing.T) {
	dir := t.TempDir()
	o := NewOracle()
	assert.False(t, o.IsStale(filepath.Join(dir, "gone.c"), filepath.Join(dir, "gone.o")))
}

func TestOracleMtimeOrdering(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.c")
	obj := filepath.Join(dir, "a.o")
	base := time.Now().Add(-time.Hour)

	touchAt(t, src, base.Add(time.Minute))
	touchAt(t, obj, base)
	assert.True(t, NewOracle().IsStale(src, obj), "newer source must be stale")

	touchAt(t, src, base)
	touchAt(t, obj, base.Add(time.Minute))
	assert.False(t, NewOracle().IsStale(src, obj), "older source must be reused")
}

func TestOracleEqualMtimesReuse(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.c")
	obj := filepath.Join(dir, "a.o")
	at := time.Now().Add(-time.Hour)
	touchAt(t, src, at)
	touchAt(t, obj, at)

	assert.False(t, NewOracle().IsStale(src, obj))
}

func TestOracleKeysVerdictsPerObject(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "main.go")
	objA := filepath.Join(dir, "app-a")
	objB := filepath.Join(dir, "app-b")
	base := time.Now().Add(-time.Hour)

	// one shared source backing two artifacts, only one of them current
	touchAt(t, src, base)
	touchAt(t, objA, base.Add(time.Minute))
	touchAt(t, objB, base.Add(-time.Minute))

	o := NewOracle()
	assert.False(t, o.IsStale(src, objA))
	assert.True(t, o.IsStale(src, objB), "objB is older than its source and must be rebuilt")
	assert.False(t, o.IsStale(src, objA), "objB's verdict must not leak into objA's")
}

func TestOracleMemoHitSkipsObjectStat(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.c")
	obj := filepath.Join(dir, "a.o")
	base := time.Now().Add(-time.Hour)
	touchAt(t, src, base)
	touchAt(t, obj, base.Add(time.Minute))

	o := NewOracle()
	require.False(t, o.IsStale(src, obj))

	// a memoized pair is answered from the memo, not the filesystem
	require.NoError(t, os.Remove(obj))
	assert.False(t, o.IsStale(src, obj))

	o.Forget()
	assert.True(t, o.IsStale(src, obj))
}

func TestOracleMemoizesVerdict(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.c")
	obj := filepath.Join(dir, "a.o")
	base := time.Now().Add(-time.Hour)
	touchAt(t, src, base.Add(time.Minute))
	touchAt(t, obj, base)

	o := NewOracle()
	require.True(t, o.IsStale(src, obj))

	// even if the object catches up, the memoized verdict holds for the
	// rest of the session
	touchAt(t, obj, base.Add(2*time.Minute))
	assert.True(t, o.IsStale(src, obj))

	o.Forget()
	assert.False(t, o.IsStale(src, obj))
}
