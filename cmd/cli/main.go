package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/myrjola/noir/cmd/cli/game"
	"github.com/myrjola/noir/cmd/cli/img"
	"github.com/spf13/cobra"
)

func init() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	rootCmd.AddGroup(img.Group)
	rootCmd.AddCommand(img.Generate)
	rootCmd.AddCommand(img.URL)
	rootCmd.AddGroup(game.Group)
	rootCmd.AddCommand(game.Scenarios)
	rootCmd.AddCommand(game.Play)
}

var rootCmd = &cobra.Command{
	Use:  "noir-cli",
	Long: `Command line utilities for Noir, the hard-boiled detective game`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
