package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	simulateChain string
	simulatePct   float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Send a synthetic trend alert through the email transport",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateChain == "" {
			return errors.New("--chain is required")
		}
		if simulatePct <= 0 {
			return errors.New("--pct must be greater than zero")
		}

		return getApp().SimulateAlert(cmd.Context(), simulateChain, simulatePct)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateChain, "chain", "", "Chain name to report in the alert")
	simulateCmd.Flags().Float64Var(&simulatePct, "pct", 0, "Percentage change to report")
}
