// nettoriactl is the operator CLI: schema migrations, bootstrap admin accounts
// and audit trail inspection. It reads the same environment as the server.
package main

import (
	"os"

	"github.com/fatih/color"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}
