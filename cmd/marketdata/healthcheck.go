package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func healthcheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "healthcheck",
		Short: "Print every configured provider's circuit-breaker state and exit non-zero if any is open",
		RunE:  runHealthcheck,
	}
}

func runHealthcheck(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(log.Logger)
	if err != nil {
		return err
	}

	open := 0
	for name, ph := range a.mgr.Health() {
		status := "closed"
		if ph.CircuitOpen {
			status = "OPEN"
			open++
		}
		fmt.Printf("%-12s circuit=%-6s failures=%d\n", name, status, ph.Failures)
	}
	if open > 0 {
		return fmt.Errorf("healthcheck: %d provider(s) have an open circuit", open)
	}
	return nil
}
