// Command stowage is the cargo stowage CLI.
package main

import (
	"os"

	"github.com/mesh-intelligence/stowage/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
