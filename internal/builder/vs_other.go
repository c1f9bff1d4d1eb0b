//go:build !windows

package builder

// findBundledCompiler has nothing to probe beyond PATH on non-Windows
// platforms.
func findBundledCompiler(exe string) (string, bool) {
	return "", false
}
