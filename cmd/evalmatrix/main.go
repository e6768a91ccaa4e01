// Command evalmatrix runs tender evaluation scenarios from the command
// line: it validates rubric definitions and drives a full evaluation
// matrix lifecycle from a scenario file, exporting the sealed results.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
