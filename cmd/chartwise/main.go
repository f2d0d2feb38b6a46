package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

// version is set by goreleaser at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &App{Stdout: os.Stdout, Stderr: os.Stderr}
	if err := run(ctx, os.Args[1:], app); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, app *App) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("chartwise"),
		kong.Description("Ask a database questions and get charts back."),
		kong.UsageOnError(),
		kong.Writers(app.Stdout, app.Stderr),
		kongVars(),
	)
	if err != nil {
		return err
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	if err := app.init(ctx, &cli.Globals); err != nil {
		return err
	}
	defer app.Close()

	return kctx.Run(app)
}
