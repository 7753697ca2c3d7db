// The main package for the monitor executable.
package main

import (
	"github.com/JakeFAU/eu-innovation-monitor/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
