// Command lexmerge merges and splits dictionary entries.
package main

import (
	"os"

	"github.com/kilupskalvis/lexmerge/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
