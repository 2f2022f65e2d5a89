// Command sherlock enforces incident governance gates for an investigation
// pipeline: lifecycle state, coordination scope and service review policy.
package main

import "github.com/ppiankov/sherlock/internal/cli"

func main() {
	cli.Execute()
}
