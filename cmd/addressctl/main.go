// Command addressctl is the operator CLI for the address book API:
// schema migrations, token minting for local testing, password hashing and
// idempotency housekeeping.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
