// Command gridcalc evaluates spreadsheet formulas from the command line and
// serves tables over HTTP.
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, "gridcalc:", err)
		os.Exit(1)
	}
}
