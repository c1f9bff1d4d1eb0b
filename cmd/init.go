// bip init [name]
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bip-build/bip/internal/msg"
	"github.com/bip-build/bip/internal/version"
)

func writefile(content string, elem ...string) {
	path := filepath.Join(elem...)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err = os.WriteFile(path, []byte(content), 0o644); err != nil {
			msg.Fatal("create file %s: %v", path, err)
		}
		fmt.Printf("%s file: %s\n", color.HiGreenString("Created"), filepath.ToSlash(path))
	}
}

func mkdir(elem ...string) {
	path := filepath.Join(elem...)
	if err := os.MkdirAll(path, 0o755); err != nil {
		msg.Fatal("mkdir %s: %v", path, err)
	}
}

// initIn writes a starter recipe and a hello-world component into dir.
func initIn(dir, name string, lib bool) {
	kindKey := "exe"
	if lib {
		kindKey = "lib"
	}

	writefile(`[build]
requires = "`+fmt.Sprintf("%d.%d+", version.Major, version.Minor)+`"
src = "source"
obj = "objects"
out = "output"

[`+name+`]
`+kindKey+` = "`+name+`"
lang = "c"
`, dir, "recipe.toml")

	mkdir(dir, "source", name)

	if lib {
		writefile(`#include <stdio.h>

void hello(void) {
    puts("Hello, World!");
}
`, dir, "source", name, "hello.c")
	} else {
		writefile(`#include <stdio.h>

int main(void) {
    puts("Hello, World!");
    return 0;
}
`, dir, "source", name, "main.c")
	}

	writefile(`objects/
output/
`, dir, ".gitignore")

	fmt.Printf("You can now do %s to build, or %s to build and run.\n",
		color.HiCyanString("bip"), color.HiCyanString("bip run"))
}

var library bool

var initCmd = &cobra.Command{
	Use:   "init [name]",
	Short: "Create a new recipe in the current directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		initIn(".", args[0], library)
	},
}

var newCmd = &cobra.Command{
	Use:   "new [path]",
	Short: "Create a new recipe in a new directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mkdir(args[0])
		initIn(args[0], filepath.Base(args[0]), library)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&library, "lib", "l", false, "Create a library component")

	rootCmd.AddCommand(newCmd)
	newCmd.Flags().BoolVarP(&library, "lib", "l", false, "Create a library component")
}
