// Package main provides the entry point for the recipechat CLI.
package main

import (
	"fmt"
	"os"

	"github.com/opencode-ai/recipechat/cmd/recipechat/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
