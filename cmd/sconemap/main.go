// Command sconemap drives the scone memory-mapping subsystem from
// TOML scenarios.
package main

import (
	"os"

	"scone/src/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Stderr.WriteString("sconemap: " + err.Error() + "\n")
		os.Exit(1)
	}
}
