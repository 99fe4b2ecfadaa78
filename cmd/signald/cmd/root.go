package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "signald",
	Short: "Confluence-based signal and auto-trading daemon",
	Long: `signald watches a set of perpetual futures symbols, runs three
independent indicator engines (EMA market structure, smart-money
breakouts, supertrend trend targets), and trades only when at least two
of them agree and the higher timeframe does not contradict them.

Positions are always protected: SL/TP must be confirmed on the exchange
or the entry is closed immediately. A session drawdown breaker pauses
new entries when equity falls too far from its peak.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
