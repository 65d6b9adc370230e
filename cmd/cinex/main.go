package main

import (
	"fmt"
	"os"

	"github.com/metinatakli/cinex-booking/internal/app"
)

func main() {
	if err := app.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "cinex: %v\n", err)
		os.Exit(1)
	}
}
