package main

import (
	"fmt"
	"os"

	"github.com/dproject-io/dproject/internal/cli"
	"github.com/dproject-io/dproject/internal/console"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
		os.Exit(cli.ExitCode(err))
	}
}
