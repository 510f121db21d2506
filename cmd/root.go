package cmd

import (
	kongcompletion "github.com/jotaen/kong-completion"
)

// CLI is the root command structure for Kong.
type CLI struct {
	Orchestrate OrchestrateCmd            `cmd:"" help:"Run tasks through the per-task pipeline"`
	Verify      VerifyCmd                 `cmd:"" help:"Run the verification pipeline standalone"`
	Finalize    FinalizeCmd               `cmd:"" help:"Merge completed change requests in stacking order"`
	Version     VersionCmd                `cmd:"" help:"Show version info"`
	Completion  kongcompletion.Completion `cmd:"" help:"Generate shell completions"`
}
