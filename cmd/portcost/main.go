// Command portcost is the CLI client for the estimation API.
package main

import (
	"fmt"
	"os"

	"github.com/harborintel/portcost/internal/interfaces/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
