// Command markopsctl runs uptime probes, dry-run checks and KPI evaluations
// from the command line without a database.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
