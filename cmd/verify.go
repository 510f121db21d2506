package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/SaintPepsi/pai-tools-sub000/internal/config"
	"github.com/SaintPepsi/pai-tools-sub000/internal/verify"
)

// VerifyCmd runs the verification pipeline standalone, outside any
// task's worktree.
type VerifyCmd struct {
	SkipE2E bool   `help:"Skip the end-to-end verification step" name:"skip-e2e"`
	Name    string `help:"Run only the step with this name"       name:"name"`
	JSON    bool   `help:"Print the result as JSON"               name:"json"`
}

// Run executes the verify command.
func (c *VerifyCmd) Run() error {
	repoRoot, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve repo root: %w", err)
	}

	cfg, err := config.Load(repoRoot)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if len(cfg.Verify) == 0 {
		fmt.Fprintln(os.Stderr, "no verification commands configured")
		os.Exit(1)
	}

	result := verify.Run(verify.Options{
		Verify:     cfg.Verify,
		E2E:        cfg.E2E,
		Cwd:        repoRoot,
		SkipE2E:    c.SkipE2E,
		FilterName: c.Name,
	})

	if c.JSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		fmt.Println(string(data))
	} else {
		for _, step := range result.Steps {
			status := "ok"
			if !step.OK {
				status = "FAIL"
			}
			fmt.Printf("[%s] %s (%dms)\n", status, step.Name, step.DurationMs)
		}
		if !result.OK {
			fmt.Printf("failed at %s: %s\n", result.FailedStep, result.Error)
		}
	}

	if !result.OK {
		os.Exit(1)
	}

	return nil
}
