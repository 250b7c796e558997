// -- cmd/version.go --
package cmd

// Version is the application version, set at build time via ldflags.
// Example: go build -ldflags "-X github.com/nlavaggi/retex/cmd.Version=1.0.0"
var Version = "0.1"
