package main

import (
	"github.com/alecthomas/kong"

	"github.com/wavesbyte/cibtron-tool/internal/cli"
)

func main() {
	var c cli.CLI
	ctx := kong.Parse(&c,
		kong.Name("cibtron"),
		kong.Description("Cibtron taximeter programming console"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)
	err := ctx.Run(&c)
	ctx.FatalIfErrorf(err)
}
