package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "taxledger",
	Short: "Inspect the account ledger, carryforward lots and risk peaks",
	Long: `Taxledger is the bookkeeping core of the trading stack: an append-only
account ledger with weighted-average cost basis, capital-gains tax with
loss carryforward, and a stop-loss/trailing-stop peak tracker.

This CLI is read-only inspection tooling over the shared SQLite file;
all mutations go through the engine inside a run.`,
}

var dbPath string

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// .env can override TAXLEDGER_DB; missing file is fine.
	_ = godotenv.Load()

	defaultDB := os.Getenv("TAXLEDGER_DB")
	if defaultDB == "" {
		defaultDB = "./taxledger.db"
	}
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", defaultDB, "path to the SQLite database")
}
