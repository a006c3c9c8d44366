package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "courtside",
	Short: "Courtside — youth basketball program backend",
	Long:  "Courtside is the administration and coaching backend for youth basketball programs: one identity per person, role grants across the organization and basketball domains, capability-gated APIs, and team roster management.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: configs/courtside.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
