// Command shuttle simulates riders and vehicles meeting at a shared stop.
package main

import (
	"os"
)

const (
	ExitSuccess         = 0
	ExitThresholdFailed = 1
	ExitError           = 2
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}
