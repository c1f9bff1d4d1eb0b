package builder

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/bip-build/bip/internal/msg"
	"github.com/bip-build/bip/internal/plat"
)

// ExeOrLibComponent compiles and links an executable or a shared library.
type ExeOrLibComponent struct {
	name    string
	outName string
	isLib   bool
	// raw src entries relative to the source root; may be glob patterns
	srcSpecs  []string
	paths     Paths
	recursive bool
	fetch     string

	dynLibs    []string
	staticLibs []string
	linkArgs   []string
	// recipe-global merged with component-local; builtin defaults are
	// applied at use
	cConfig    LangConfig
	cppConfig  LangConfig
	globalIncl []string

	declared   Language
	platform   plat.ID
	ccOverride string
	oracle     *Oracle

	// discovery state, reset by every discovery pass
	lang       LangState
	compileObj []CodeObject
	reuseObj   []CodeObject
	outFile    string
	stats      BuildStats
}

func newExeOrLibComponent(entry ComponentEntry, rcp *Recipe, paths Paths, isLib bool, outName string, info RunInfo, oracle *Oracle) (*ExeOrLibComponent, error) {
	spec := entry.Spec
	lang := Language(strings.ToLower(spec.Lang))

	srcSpecs := []string(spec.Src)
	if len(srcSpecs) == 0 {
		srcSpecs = []string{entry.Name}
	}

	dynLibs := make([]string, 0, len(spec.Libs)+len(spec.DynLibs))
	if len(spec.Libs) > 0 {
		msg.Warn("component %s: the `libs` key is deprecated, use `dyn-libs` or `static-libs`", entry.Name)
		dynLibs = append(dynLibs, spec.Libs...)
	}
	dynLibs = append(dynLibs, spec.DynLibs...)

	recursive := true
	if spec.Recursive != nil {
		recursive = *spec.Recursive
	}

	c := &ExeOrLibComponent{
		name:       entry.Name,
		outName:    outName,
		isLib:      isLib,
		srcSpecs:   srcSpecs,
		paths:      paths,
		recursive:  recursive,
		fetch:      spec.Fetch,
		dynLibs:    dynLibs,
		staticLibs: spec.StaticLibs,
		linkArgs:   spec.Link,
		cConfig:    rebaseIncludes(rcp.Build.C.Merge(spec.C), rcp.Root),
		cppConfig:  rebaseIncludes(rcp.Build.CPP.Merge(spec.CPP), rcp.Root),
		declared:   lang,
		platform:   info.Platform,
		ccOverride: info.Compiler,
		oracle:     oracle,
		lang:       newLangState(lang),
	}

	for _, inc := range rcp.Build.Incl {
		c.globalIncl = append(c.globalIncl, filepath.Join(rcp.Root, inc))
	}

	if isLib {
		c.outFile = filepath.Join(paths.Out, info.Platform.LibName(outName))
	} else {
		c.outFile = filepath.Join(paths.Out, info.Platform.ExeName(outName))
	}

	return c, nil
}

func rebaseIncludes(cfg LangConfig, root string) LangConfig {
	for i, inc := range cfg.Include {
		if !filepath.IsAbs(inc) {
			cfg.Include[i] = filepath.Join(root, inc)
		}
	}
	return cfg
}

func (c *ExeOrLibComponent) Name() string { return c.name }

// OutFile is the final artifact path for this component.
func (c *ExeOrLibComponent) OutFile() string { return c.outFile }

// IsLib reports whether the component links a shared library rather than
// an executable.
func (c *ExeOrLibComponent) IsLib() bool { return c.isLib }

// Stats returns the counters of the last discovery/build pass.
func (c *ExeOrLibComponent) Stats() BuildStats { return c.stats }

// CurrentLanguage is the running language after discovery: cpp components
// without any C++ sources stay c.
func (c *ExeOrLibComponent) CurrentLanguage() Language { return c.lang.Current() }

// ToCompile returns the objects scheduled for (re)compilation.
func (c *ExeOrLibComponent) ToCompile() []CodeObject { return c.compileObj }

// ToReuse returns the objects reused from a previous build.
func (c *ExeOrLibComponent) ToReuse() []CodeObject { return c.reuseObj }

// discover resets and repopulates the to-compile and to-reuse sets.
func (c *ExeOrLibComponent) discover() error {
	c.stats = BuildStats{}
	c.compileObj = nil
	c.reuseObj = nil
	c.lang = newLangState(c.declared)

	for i, spec := range c.srcSpecs {
		if strings.ContainsAny(spec, "*?[{") {
			if err := c.discoverGlob(spec); err != nil {
				return err
			}
			continue
		}

		root := filepath.Join(c.paths.Src, spec)
		fi, err := os.Stat(root)
		if err != nil {
			if i == 0 && c.fetch != "" {
				if err := FetchSources(c.fetch, root); err != nil {
					return fmt.Errorf("component %s: fetching sources: %w", c.name, err)
				}
			} else if i == 0 {
				// the primary source directory must exist
				return fmt.Errorf("component %s: source directory %s does not exist", c.name, root)
			} else {
				msg.Warn("source %s does not exist", root)
				continue
			}
		} else if !fi.IsDir() {
			// a src entry may name a single file directly
			c.addObj(root)
			continue
		}
		c.walk(root, c.recursive)
	}

	return nil
}

func (c *ExeOrLibComponent) discoverGlob(pattern string) error {
	matches, err := doublestar.Glob(os.DirFS(c.paths.Src), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return fmt.Errorf("component %s: bad source pattern %q: %w", c.name, pattern, err)
	}
	for _, match := range matches {
		c.addObj(filepath.Join(c.paths.Src, filepath.FromSlash(match)))
	}
	return nil
}

func (c *ExeOrLibComponent) walk(dir string, recurse bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		msg.Warn("source %s could not be read: %v", dir, err)
		return
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			if recurse {
				c.walk(path, true)
			}
			continue
		}
		c.addObj(path)
	}
}

// addObj classifies one source file, derives its object path, and bins it
// as to-reuse or to-compile.
func (c *ExeOrLibComponent) addObj(src string) {
	next, lang, ok := c.lang.Observe(filepath.Ext(src))
	c.lang = next
	if !ok {
		return
	}

	obj := c.objPath(src, lang)
	// compilation needs the object's parent directory later
	os.MkdirAll(filepath.Dir(obj), 0o755)

	c.stats.Total++
	co := CodeObject{Lang: lang, Src: src, Obj: obj}
	if c.oracle.IsStale(src, obj) {
		c.compileObj = append(c.compileObj, co)
		c.stats.Compiled++
	} else {
		c.reuseObj = append(c.reuseObj, co)
		c.stats.Reused++
	}
}

// objPath rebases a source path under the object directory, preserving its
// path relative to the source root, and swaps the extension for the
// platform's object extension. Go sources have no per-file objects; their
// staleness is measured against the final artifact.
func (c *ExeOrLibComponent) objPath(src string, lang Language) string {
	if lang == LangGo {
		return c.outFile
	}

	rel, err := filepath.Rel(c.paths.Src, src)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(src)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel)) + c.platform.ObjExt()
	return filepath.Join(c.paths.Obj, rel)
}

// WantRun discovers candidate objects and reports whether anything needs
// to be compiled or the final artifact is missing.
func (c *ExeOrLibComponent) WantRun() (bool, error) {
	if err := c.discover(); err != nil {
		return false, err
	}
	if len(c.compileObj) > 0 {
		return true, nil
	}
	if _, err := os.Stat(c.outFile); err != nil {
		return true, nil
	}
	return false, nil
}

func (c *ExeOrLibComponent) Run(info RunInfo) error {
	switch c.lang.Current() {
	case LangC, LangCPP:
		return c.buildC(info)
	case LangGo:
		return c.buildGo(info)
	}
	return fmt.Errorf("component %s: no build method for language %q", c.name, c.lang.Current())
}

// resolveCompiler picks the toolchain for this component: the component's
// own compiler key, then the command-line override, then the default
// policy.
func (c *ExeOrLibComponent) resolveCompiler(activeCfg LangConfig) (Compiler, error) {
	name := activeCfg.Compiler
	if name == "" {
		name = c.ccOverride
	}
	if name != "" {
		comp, ok := HasCompiler(name)
		if !ok {
			return Compiler{}, fmt.Errorf("component %s: compiler %q is unknown or not present in the current environment (supported: %s)",
				c.name, name, strings.Join(KnownCompilerNames(), ", "))
		}
		return comp, nil
	}
	comp, ok := DefaultCompiler(c.platform)
	if !ok {
		return Compiler{}, fmt.Errorf("component %s: could not find a viable C/C++ compiler", c.name)
	}
	return comp, nil
}

func resolveStd(std, fallback string) string {
	if std != "" {
		return std
	}
	return fallback
}

func (c *ExeOrLibComponent) buildC(info RunInfo) error {
	msg.Progress("%s", c.name)

	if err := os.MkdirAll(filepath.Dir(c.outFile), 0o755); err != nil {
		return fmt.Errorf("component %s: %w", c.name, err)
	}

	activeCfg := c.cConfig
	if c.lang.Current() == LangCPP {
		activeCfg = c.cppConfig
	}

	comp, err := c.resolveCompiler(activeCfg)
	if err != nil {
		return err
	}

	linkExe := comp.CC
	if c.lang.Current() == LangCPP {
		linkExe = comp.CXX
	}
	if linkExe == "" {
		return fmt.Errorf("component %s: chosen compiler (%s) does not support %s", c.name, comp.Name, c.lang.Current())
	}

	cStd := resolveStd(c.cConfig.Std, DefaultCStd)
	cppStd := resolveStd(c.cppConfig.Std, DefaultCPPStd)

	// Compile every stale object. Failures never abort sibling objects;
	// the component fails after all attempts complete if any did.
	var mu sync.Mutex
	eg := &errgroup.Group{}
	eg.SetLimit(max(1, info.Jobs))

	for _, obj := range c.compileObj {
		eg.Go(func() error {
			cfg, std, objExe := c.cConfig, cStd, comp.CC
			if obj.Lang == LangCPP {
				cfg, std, objExe = c.cppConfig, cppStd, comp.CXX
			}

			var diag Diagnostics
			var cerr error
			if objExe == "" {
				cerr = fmt.Errorf("compiler %s does not support %s", comp.Name, obj.Lang)
			} else {
				unit := CompileUnitInfo{
					Src:         obj.Src,
					Obj:         obj.Obj,
					Include:     append(append([]string{}, cfg.Include...), c.globalIncl...),
					Defines:     cfg.Define,
					Std:         std,
					Release:     info.Release,
					PIC:         c.isLib,
					HideSymbols: cfg.HideSymbols,
					Noexcept:    cfg.Noexcept,
					IsCPP:       obj.Lang == LangCPP,
					Platform:    c.platform,
				}
				diag, cerr = RunTool(objExe, ObjArgs(comp.Style, unit))
			}

			mu.Lock()
			msg.Progress("  %s", filepath.Base(obj.Obj))
			if cerr != nil {
				c.stats.Err++
			} else {
				c.stats.OK++
			}
			msg.Diagnostics(diag.String())
			mu.Unlock()
			return nil
		})
	}
	eg.Wait()

	if c.stats.Err > 0 {
		msg.Failure(" Fail. %d/%d objects compiled", c.stats.OK, c.stats.Compiled)
		return fmt.Errorf("component %s: %d of %d objects failed to compile", c.name, c.stats.Err, c.stats.Compiled)
	}

	// newly compiled objects first, then reused ones, in discovery order
	objects := make([]string, 0, len(c.compileObj)+len(c.reuseObj))
	for _, obj := range c.compileObj {
		objects = append(objects, obj.Obj)
	}
	for _, obj := range c.reuseObj {
		objects = append(objects, obj.Obj)
	}

	link := LinkUnitInfo{
		Objects:     objects,
		Out:         c.outFile,
		LibDirs:     []string{c.paths.Out},
		DynLibs:     c.dynLibs,
		StaticLibs:  c.staticLibs,
		ExtraArgs:   c.linkArgs,
		Release:     info.Release,
		IsCPP:       c.lang.Current() == LangCPP,
		Linker:      activeCfg.Linker,
		HideSymbols: activeCfg.HideSymbols,
		Noexcept:    activeCfg.Noexcept,
		Platform:    c.platform,
	}

	msg.Progress("  %s", filepath.Base(c.outFile))
	diag, err := RunTool(linkExe, LinkArgs(comp.Style, c.isLib, link))
	msg.Diagnostics(diag.String())
	if err != nil {
		msg.Failure(" Fail. Could not link.")
		return fmt.Errorf("component %s: link failed: %w", c.name, err)
	}

	msg.Success(" OK. %d objects compiled, %d objects reused", c.stats.OK, c.stats.Reused)
	return nil
}

// buildGo shells out to the Go toolchain: it has its own object cache, so
// the whole main package builds in one invocation.
func (c *ExeOrLibComponent) buildGo(info RunInfo) error {
	msg.Progress("%s", c.name)

	if err := os.MkdirAll(filepath.Dir(c.outFile), 0o755); err != nil {
		return fmt.Errorf("component %s: %w", c.name, err)
	}

	goTool, err := exec.LookPath("go")
	if err != nil {
		return fmt.Errorf("component %s: go toolchain not found: %w", c.name, err)
	}

	args := []string{"build", "-o", c.outFile}
	if c.isLib {
		args = append(args, "-buildmode=c-shared")
	}
	if info.Release {
		args = append(args, "-ldflags", "-s -w")
	}
	args = append(args, filepath.Join(c.paths.Src, c.srcSpecs[0]))

	msg.Progress("  %s", filepath.Base(c.outFile))
	diag, err := RunTool(goTool, args)
	msg.Diagnostics(diag.String())
	if err != nil {
		c.stats.Err = c.stats.Compiled
		msg.Failure(" Fail. Could not build.")
		return fmt.Errorf("component %s: go build failed: %w", c.name, err)
	}

	c.stats.OK = c.stats.Compiled
	msg.Success(" OK. %d sources built, %d up to date", c.stats.OK, c.stats.Reused)
	return nil
}

// Clean re-discovers and removes every object plus the final artifact.
func (c *ExeOrLibComponent) Clean() error {
	if err := c.discover(); err != nil {
		return err
	}
	for _, obj := range c.compileObj {
		removeIfPresent(obj.Obj)
	}
	for _, obj := range c.reuseObj {
		removeIfPresent(obj.Obj)
	}
	removeIfPresent(c.outFile)
	// deleted objects invalidate memoized verdicts
	c.oracle.Forget()
	return nil
}

func removeIfPresent(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		msg.Warn("could not remove %s: %v", path, err)
	}
}
