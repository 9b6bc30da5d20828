// Command st2 is the entry point for the SnailTrail analyzer.
package main

import (
	"fmt"
	"os"

	"snailtrail.dev/st2/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
