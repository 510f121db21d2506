package main

import (
	"github.com/alecthomas/kong"

	"github.com/SaintPepsi/pai-tools-sub000/cmd"
)

func main() {
	cli := &cmd.CLI{}
	ctx := kong.Parse(cli,
		kong.Name("pai"),
		kong.Description("Orchestrates batch change tasks through isolated worktrees and a stacked merge sequencer"),
		kong.UsageOnError(),
	)

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
