package main

import "github.com/bip-build/bip/cmd"

func main() {
	cmd.Execute()
}
