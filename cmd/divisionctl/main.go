// Command divisionctl checks rule tables and dry-runs classification and
// bracket building against a roster file, without a database.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
