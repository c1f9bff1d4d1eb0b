package builder

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/bip-build/bip/internal/msg"
)

// plugManifest is the plug.toml of a plugin component. The four hooks are
// expression scripts evaluated against a pluginEnv; configure and run are
// required, want_run and clean are optional.
type plugManifest struct {
	Configure string `toml:"configure"`
	Run       string `toml:"run"`
	WantRun   string `toml:"want_run"`
	Clean     string `toml:"clean"`
}

// pluginEnv is the environment a plugin script runs in: its settings table
// from the recipe plus filesystem and process helpers rooted at the plugin
// directory.
type pluginEnv struct {
	Settings map[string]any `expr:"settings"`
	Release  bool           `expr:"release"`
	TargetOS string         `expr:"target_os"`
	basedir  string
}

// Exec runs a command in the plugin directory and reports success.
func (env pluginEnv) Exec(name string, args ...string) bool {
	cmd := exec.Command(name, args...)
	cmd.Dir = env.basedir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run() == nil
}

func (env pluginEnv) Exists(path string) bool {
	_, err := os.Stat(filepath.Join(env.basedir, path))
	return err == nil
}

func (env pluginEnv) ReadFile(path string) string {
	data, err := os.ReadFile(filepath.Join(env.basedir, path))
	if err != nil {
		panic(err)
	}
	return string(data)
}

func (env pluginEnv) WriteFile(path, text string) bool {
	fullPath := filepath.Join(env.basedir, path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return false
	}
	return os.WriteFile(fullPath, []byte(text), 0o644) == nil
}

func (env pluginEnv) Remove(path string) bool {
	err := os.Remove(filepath.Join(env.basedir, path))
	return err == nil || os.IsNotExist(err)
}

func (env pluginEnv) Glob(pattern string) []string {
	matches, err := doublestar.Glob(os.DirFS(env.basedir), pattern)
	if err != nil {
		panic(err)
	}
	return matches
}

// Patch applies a diff-match-patch text patch to a file, returning whether
// any hunk applied.
func (env pluginEnv) Patch(path, patchText string) bool {
	fullPath := filepath.Join(env.basedir, path)
	data, err := os.ReadFile(fullPath)
	if err != nil {
		panic(err)
	}

	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(patchText)
	if err != nil {
		panic(err)
	}
	patchedText, results := dmp.PatchApply(patches, string(data))
	applied := false
	for _, ok := range results {
		if ok {
			applied = true
			break
		}
	}
	if !applied {
		return false // nothing was applied, nothing to write
	}

	if err := os.WriteFile(fullPath, []byte(patchedText), 0o644); err != nil {
		panic(err)
	}
	return true
}

func (env pluginEnv) UUID() string {
	return uuid.New().String()
}

type pluginHooks struct {
	env     pluginEnv
	run     *vm.Program
	wantRun *vm.Program
	clean   *vm.Program
}

// PlugComponent delegates its entire lifecycle to externally supplied hook
// code instead of a compile/link pipeline.
type PlugComponent struct {
	name     string
	dirName  string
	paths    Paths
	settings map[string]any
	info     RunInfo
	hooks    *pluginHooks
}

func newPlugComponent(name, dirName string, paths Paths, settings map[string]any, info RunInfo) *PlugComponent {
	if settings == nil {
		settings = make(map[string]any)
	}
	return &PlugComponent{
		name:     name,
		dirName:  dirName,
		paths:    paths,
		settings: settings,
		info:     info,
	}
}

func (p *PlugComponent) Name() string { return p.name }

// ensureHooks loads and configures the plugin once per session.
func (p *PlugComponent) ensureHooks() error {
	if p.hooks != nil {
		return nil
	}

	dir := filepath.Join(p.paths.Src, p.dirName)
	manifestPath := filepath.Join(dir, "plug.toml")
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("plugin %s: could not load %s: %w", p.name, manifestPath, err)
	}

	var manifest plugManifest
	if err := toml.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("plugin %s: invalid %s: %w", p.name, manifestPath, err)
	}
	if manifest.Configure == "" {
		return fmt.Errorf("plugin %s: %s does not define `configure`", p.name, manifestPath)
	}
	if manifest.Run == "" {
		return fmt.Errorf("plugin %s: %s does not define `run`", p.name, manifestPath)
	}

	env := pluginEnv{
		Settings: p.settings,
		Release:  p.info.Release,
		TargetOS: p.info.Platform.String(),
		basedir:  dir,
	}

	hooks := &pluginHooks{env: env}
	configure, err := compileHook(manifest.Configure, "configure", env)
	if err != nil {
		return fmt.Errorf("plugin %s: %w", p.name, err)
	}
	if hooks.run, err = compileHook(manifest.Run, "run", env); err != nil {
		return fmt.Errorf("plugin %s: %w", p.name, err)
	}
	if manifest.WantRun != "" {
		if hooks.wantRun, err = compileHook(manifest.WantRun, "want_run", env); err != nil {
			return fmt.Errorf("plugin %s: %w", p.name, err)
		}
	}
	if manifest.Clean != "" {
		if hooks.clean, err = compileHook(manifest.Clean, "clean", env); err != nil {
			return fmt.Errorf("plugin %s: %w", p.name, err)
		}
	}

	ok, err := runHook(configure, env)
	if err != nil {
		return fmt.Errorf("plugin %s: configure: %w", p.name, err)
	}
	if !ok {
		return fmt.Errorf("plugin %s: configure returned false", p.name)
	}

	p.hooks = hooks
	return nil
}

func compileHook(src, name string, env pluginEnv) (*vm.Program, error) {
	program, err := expr.Compile(src, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s hook: %w", name, err)
	}
	return program, nil
}

func runHook(program *vm.Program, env pluginEnv) (bool, error) {
	result, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	ok, isBool := result.(bool)
	return isBool && ok, nil
}

// WantRun asks the plugin's want_run hook; a plugin without one always
// wants to run.
func (p *PlugComponent) WantRun() (bool, error) {
	if err := p.ensureHooks(); err != nil {
		return false, err
	}
	if p.hooks.wantRun == nil {
		return true, nil
	}
	ok, err := runHook(p.hooks.wantRun, p.hooks.env)
	if err != nil {
		return false, fmt.Errorf("plugin %s: want_run: %w", p.name, err)
	}
	return ok, nil
}

func (p *PlugComponent) Run(info RunInfo) error {
	if err := p.ensureHooks(); err != nil {
		return err
	}
	msg.Progress("%s", p.name)
	ok, err := runHook(p.hooks.run, p.hooks.env)
	if err != nil {
		return fmt.Errorf("plugin %s: run: %w", p.name, err)
	}
	if !ok {
		return fmt.Errorf("plugin %s: run hook returned false", p.name)
	}
	return nil
}

// Clean runs the plugin's clean hook; without one there is nothing to do.
func (p *PlugComponent) Clean() error {
	if err := p.ensureHooks(); err != nil {
		return err
	}
	if p.hooks.clean == nil {
		return nil
	}
	ok, err := runHook(p.hooks.clean, p.hooks.env)
	if err != nil {
		return fmt.Errorf("plugin %s: clean: %w", p.name, err)
	}
	if !ok {
		return fmt.Errorf("plugin %s: clean hook returned false", p.name)
	}
	return nil
}
