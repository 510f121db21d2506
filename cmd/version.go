package cmd

import "fmt"

// buildVersion is overridden at link time via -ldflags.
var buildVersion = "dev"

// VersionCmd prints the build version.
type VersionCmd struct{}

// Run executes the version command.
func (c *VersionCmd) Run() error {
	fmt.Println(buildVersion)

	return nil
}
