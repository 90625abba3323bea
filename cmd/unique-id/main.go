package main

import (
	"fmt"
	"os"

	"github.com/ryandielhenn/glomers/internal/app"
	"github.com/ryandielhenn/glomers/pkg/uniqueid"
)

func main() {
	if err := app.Run("unique-id", os.Args[1:], os.Stdin, os.Stdout, uniqueid.Codec, uniqueid.Factory); err != nil {
		fmt.Fprintln(os.Stderr, "unique-id:", err)
		os.Exit(1)
	}
}
