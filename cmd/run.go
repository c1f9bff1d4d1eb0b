// bip run [args...]
package cmd

import (
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/bip-build/bip/internal/builder"
)

// firstExecutable picks the component whose artifact `bip run` launches.
func firstExecutable(s *builder.Session) (*builder.ExeOrLibComponent, bool) {
	for _, cmpnt := range s.Components {
		if exe, ok := cmpnt.(*builder.ExeOrLibComponent); ok && !exe.IsLib() {
			return exe, true
		}
	}
	return nil, false
}

var runCmd = &cobra.Command{
	Use:   "run [args...]",
	Short: "Build the recipe, then run its first executable component",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession()
		if err != nil {
			return err
		}
		if err := s.Build(); err != nil {
			return exitError{code: exitBuildFailed}
		}

		exe, ok := firstExecutable(s)
		if !ok {
			return fail(exitBadRecipe, "recipe has no executable component to run")
		}

		proc := exec.Command(exe.OutFile(), args...)
		proc.Stdin = os.Stdin
		proc.Stdout = os.Stdout
		proc.Stderr = os.Stderr
		if err := proc.Run(); err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				os.Exit(exitErr.ExitCode())
			}
			return fail(exitBuildFailed, "%s: %v", exe.Name(), err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
