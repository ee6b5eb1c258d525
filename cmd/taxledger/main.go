package main

import (
	"os"

	"github.com/rustyeddy/taxledger/cmd/taxledger/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
