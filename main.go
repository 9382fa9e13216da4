// file: main.go
// version: 1.2.0
// guid: 5f6a7b8c-9d0e-1f2a-3b4c-5d6e7f8a9b0c

package main

import (
	"fmt"
	"os"

	"github.com/jdfalk/ipodsync/cmd"
)

// executeCmd is swapped out in tests.
var executeCmd = cmd.Execute

func run() int {
	if err := executeCmd(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run())
}
