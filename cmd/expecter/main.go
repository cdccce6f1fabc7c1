// Command expecter runs console tests against interactive programs such as
// an embedded node's "make term" console.
package main

import (
	"os"

	"github.com/cboone/expecter/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr, os.LookupEnv))
}
