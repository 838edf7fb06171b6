// Command textsearch searches local text files from the command line.
package main

import (
	"os"

	"github.com/Adithya-Monish-Kumar-K/text-search-engine/cmd/textsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
