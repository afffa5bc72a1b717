// Package handlers wires pharmawatch's cobra commands to the pipeline.
package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pharmawatch/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "pharmawatch",
	Short: "pharmawatch collects, filters, and scores pharmaceutical news for a keyword watch",
	Long: `pharmawatch runs a research alert end to end: it collects candidate
articles from PubMed, Exa, Tavily, and NewsAPI, removes near-duplicates,
resolves publication dates, scores relevance with Gemini, and prints a
JSON report plus a per-run record.`,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .pharmawatch.yaml)")
	rootCmd.AddCommand(newResearchCmd())
}

func initConfig() {
	if _, err := config.Load(cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to load config: %v\n", err)
	}
}
