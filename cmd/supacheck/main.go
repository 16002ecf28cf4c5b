package main

import (
	"errors"
	"fmt"
	"os"

	"supacheck/internal/supacheck"
)

func main() {
	if err := supacheck.Run(); err != nil {
		var exitErr supacheck.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
