package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/taxledger/ledger"
)

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "List open positions with weighted-average cost",
	Args:  cobra.NoArgs,
	RunE:  runPositions,
}

var cashCmd = &cobra.Command{
	Use:   "cash",
	Short: "Print the derived cash balance",
	Args:  cobra.NoArgs,
	RunE:  runCash,
}

func init() {
	rootCmd.AddCommand(positionsCmd)
	rootCmd.AddCommand(cashCmd)
}

func runPositions(cmd *cobra.Command, args []string) error {
	store, err := ledger.Open(dbPath, nil)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()

	for _, symbol := range store.Symbols() {
		qty, avg := store.Position(symbol)
		if qty.IsZero() {
			continue
		}
		fmt.Printf("%-10s qty %-12s avg cost %s\n", symbol, qty.String(), avg.StringFixed(4))
	}
	return nil
}

func runCash(cmd *cobra.Command, args []string) error {
	store, err := ledger.Open(dbPath, nil)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()

	fmt.Println(store.CashBalance().StringFixed(2))
	return nil
}
