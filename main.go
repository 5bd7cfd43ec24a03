// ./main.go
package main

import (
	"github.com/michaelkaye/trafficlight-agent/cmd"
)

// main is the entry point for the trafficlight agent.
func main() {
	// Command-line parsing, configuration and the agent loop all live in the
	// cmd package.
	cmd.Execute()
}
