// Command vtdump inspects data files and key/value settings files.
package main

import (
	"github.com/alecthomas/kong"
	"go.uber.org/zap"
)

// CLI defines the command-line interface for vtdump.
var CLI struct {
	Debug bool `help:"Log open failures and stream details"`

	Info   InfoCmd   `cmd:"" help:"Show header, version and compression of data files"`
	Show   ShowCmd   `cmd:"" help:"Print the next lines of a data file without decoding"`
	Values ValuesCmd `cmd:"" help:"Decode numerals following the header"`
	Tokens TokensCmd `cmd:"" help:"Print raw tokens following the header"`
	KV     KVCmd     `cmd:"" name:"kv" help:"Print the pairs of a key/value file"`
}

func newLogger(debug bool) *zap.Logger {
	if !debug {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("vtdump"),
		kong.Description("Inspect point-of-sale data files"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	logger := newLogger(CLI.Debug)
	defer func() { _ = logger.Sync() }()

	err := ctx.Run(logger)
	ctx.FatalIfErrorf(err)
}
