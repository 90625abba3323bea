package main

import (
	"fmt"
	"os"

	"github.com/ryandielhenn/glomers/internal/app"
	"github.com/ryandielhenn/glomers/pkg/echo"
)

func main() {
	if err := app.Run("echo", os.Args[1:], os.Stdin, os.Stdout, echo.Codec, echo.New); err != nil {
		fmt.Fprintln(os.Stderr, "echo:", err)
		os.Exit(1)
	}
}
