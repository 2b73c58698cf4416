// Package main provides the entry point for the policy harvester CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "policy_harvester",
	Short: "Policy announcement harvester",
	Long:  "Harvests regulatory and policy announcements from government sources, normalizes them into canonical records, and publishes them idempotently to the dashboard's store.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
