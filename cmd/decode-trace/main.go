// Command decode-trace renders a binary mutation trace as text.
package main

import (
	"os"

	"github.com/roach88/hypetrace/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
