// bip, bip build, bip check, bip clean, bip version
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bip-build/bip/internal/builder"
	"github.com/bip-build/bip/internal/msg"
	"github.com/bip-build/bip/internal/plat"
	"github.com/bip-build/bip/internal/version"
)

const (
	exitUsage       = 1
	exitBadRecipe   = 2
	exitBuildFailed = 3
)

// recipeSearchDepth is how many parent directories are searched for a
// recipe file before giving up.
const recipeSearchDepth = 7

const recipeFileName = "recipe.toml"

var errNoRecipe = errors.New("no recipe found")

var (
	flagRecipe   string
	flagRelease  bool
	flagVerbose  bool
	flagJobs     int
	flagCompiler EnumValue = NewEnumValue("auto", map[string]string{
		"auto":     "Pick clang, falling back to the platform default",
		"clang":    "LLVM clang / clang++",
		"gnu":      "GNU gcc / g++",
		"gcc":      "Alias for gnu",
		"clang-cl": "clang with MSVC-compatible flags",
		"msc":      "Microsoft cl.exe",
		"msvc":     "Alias for msc",
	})
)

// exitError carries a process exit code alongside an already reported
// failure.
type exitError struct {
	code int
}

func (e exitError) Error() string { return fmt.Sprintf("exit code %d", e.code) }

func fail(code int, format string, a ...any) error {
	msg.Error(format, a...)
	return exitError{code: code}
}

func runInfo() builder.RunInfo {
	compiler := flagCompiler.Value()
	if compiler == "auto" {
		compiler = ""
	}
	return builder.RunInfo{
		Platform: plat.Native(),
		Release:  flagRelease,
		Verbose:  flagVerbose,
		Jobs:     flagJobs,
		Compiler: compiler,
	}
}

// findRecipe locates the recipe file, honoring --recipe and otherwise
// walking up from the working directory.
func findRecipe() (string, error) {
	if flagRecipe != "" {
		if _, err := os.Stat(flagRecipe); err != nil {
			return "", fmt.Errorf("%w: %s", errNoRecipe, flagRecipe)
		}
		return flagRecipe, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i <= recipeSearchDepth; i++ {
		candidate := filepath.Join(dir, recipeFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("%w: no %s here or in any of the %d parent directories",
		errNoRecipe, recipeFileName, recipeSearchDepth)
}

// loadSession locates and parses the recipe, then resolves it into a
// session for the current invocation.
func loadSession() (*builder.Session, error) {
	info := runInfo()

	path, err := findRecipe()
	if err != nil {
		return nil, fail(exitUsage, "%v", err)
	}

	rcp, err := builder.LoadRecipe(path, builder.NewRecipeEnv(info))
	if err != nil {
		return nil, fail(exitBadRecipe, "%s: %v", path, err)
	}

	return builder.NewSession(rcp, info)
}

func doBuild(cmd *cobra.Command, args []string) error {
	s, err := loadSession()
	if err != nil {
		return err
	}
	if err := s.Build(); err != nil {
		return exitError{code: exitBuildFailed}
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:           "bip",
	Short:         "An incremental build tool for C, C++ and Go",
	Long:          `An incremental build tool for C, C++ and Go`,
	Args:          cobra.NoArgs,
	RunE:          doBuild,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build every out-of-date component of the recipe",
	Args:  cobra.NoArgs,
	RunE:  doBuild,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Parse and validate the recipe without building",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := runInfo()
		path, err := findRecipe()
		if err != nil {
			return fail(exitUsage, "%v", err)
		}
		rcp, err := builder.LoadRecipe(path, builder.NewRecipeEnv(info))
		if err != nil {
			return fail(exitBadRecipe, "%s: %v", path, err)
		}
		msg.Success("%s: ok, %d components", path, len(rcp.Components))
		return nil
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the build artifacts of every component",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession()
		if err != nil {
			return err
		}
		if err := s.Clean(); err != nil {
			return exitError{code: exitBuildFailed}
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the bip version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("bip %s\n", version.String())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRecipe, "recipe", "", "Path to the recipe file")
	rootCmd.PersistentFlags().BoolVarP(&flagRelease, "release", "r", false, "Build in release mode")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().IntVarP(&flagJobs, "jobs", "j", 1, "Number of concurrent compile jobs")
	rootCmd.PersistentFlags().VarP(&flagCompiler, "compiler", "c", "Compiler to build with, one of "+flagCompiler.HelpString())
	rootCmd.RegisterFlagCompletionFunc("compiler", flagCompiler.CompletionFunc())

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(versionCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var exit exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}
}
