package main

import (
	"fmt"
	"io"

	"github.com/virtual-factory/paperline/internal/config"
)

// gatePasses checks a RUN_* control variable and prints the legacy
// operator messages when the job is gated off. Cron and compose setups
// key off these exact lines, so the wording stays as it always was.
func gatePasses(g config.RunGate, envVar, job string, out io.Writer) bool {
	if !g.IsSet() {
		fmt.Fprintf(out, "Environment variable '%s' is not set.\n", envVar)
		return false
	}
	if !g.Enabled() {
		fmt.Fprintf(out, "Not running %s.\n", job)
		fmt.Fprintf(out, "Set the environment variable %q to run the %s.\n", envVar+"=true", job)
		return false
	}
	return true
}
