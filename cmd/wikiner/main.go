package main

import (
	"fmt"
	"os"

	"github.com/ppiankov/wikiner/internal/cli"
	"github.com/ppiankov/wikiner/internal/errors"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		os.Exit(1)
	}
}
