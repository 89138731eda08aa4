// The main package for the portal-scraper executable.
package main

import (
	"github.com/calcourts/portal-scraper/cmd"
)

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
