// Command gatectl is the operator CLI for the screening gate: schema
// migrations, seeding, on-demand sweeps and offline gate checks.
package main

import (
	"errors"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, errGateFailed) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
