// File: cmd/version.go
package cmd

// Version is the application version.
// Set at build time via ldflags:
// go build -ldflags "-X github.com/michaelkaye/trafficlight-agent/cmd.Version=1.0.0"
var Version = "0.1"
