// Command protorecon reconstructs .proto files from client module bundles.
package main

import (
	"errors"
	"os"

	protorecon "github.com/albertocavalcante/go-protorecon"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, protorecon.ErrDrift) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
