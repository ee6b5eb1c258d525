package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/taxledger/tax"
)

var lotsCmd = &cobra.Command{
	Use:   "lots <category>",
	Short: "List loss-carryforward lots for a tax category",
	Long: `List every loss lot recorded for a tax category, oldest expiry first,
including expired and fully consumed ones.

Categories: SHARE, ETC, ETF, FUND. Note that ETF/FUND lots are recorded
for audit continuity but can never offset gains.`,
	Args: cobra.ExactArgs(1),
	RunE: runLots,
}

func init() {
	rootCmd.AddCommand(lotsCmd)
}

func runLots(cmd *cobra.Command, args []string) error {
	lotStore, err := tax.OpenLots(dbPath)
	if err != nil {
		return fmt.Errorf("open lots: %w", err)
	}
	defer lotStore.Close()

	lots, err := lotStore.Lots(tax.Category(args[0]))
	if err != nil {
		return fmt.Errorf("list lots: %w", err)
	}

	for _, l := range lots {
		fmt.Printf("%s %-10s realized %s loss %-12s used %-12s expires %s\n",
			l.ID, l.Symbol,
			l.RealizedAt.Format("2006-01-02"),
			l.Loss.StringFixed(2), l.Used.StringFixed(2),
			l.ExpiresAt.Format("2006-01-02"))
	}
	return nil
}
