// protongraph is the operator CLI: local dataset preparation, exclusion-set
// seeding, and schema migrations.
package main

import (
	"os"

	"github.com/turtacn/ProtonGraph/internal/interfaces/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
