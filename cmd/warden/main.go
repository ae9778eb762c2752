// Command warden is the hook entry point and operator CLI for activity
// governance.
package main

import (
	"os"

	"github.com/jvs-project/warden/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
