// Command reconciled runs the order payment reconciliation engine: the
// payment webhook server, schema migrations and manual verification.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
