// Command syncmld runs an OMA DS (SyncML) client or server session.
package main

import (
	"fmt"
	"os"

	"github.com/marmos91/syncmld/cmd/syncmld/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
