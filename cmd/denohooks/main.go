package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/denohooks/denohooks/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		// Hook failures were already sent through the host protocol
		if !errors.Is(err, cmd.ErrReported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
