package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/iudanet/canvassync/internal/client/cli"
	"github.com/iudanet/canvassync/internal/client/iocli"
	"github.com/iudanet/canvassync/internal/config"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("canvassync", pflag.ContinueOnError)
	// флаги только до команды: "move id -5 10" не должен разбираться как флаг
	fs.SetInterspersed(false)
	flags := config.ClientFlags(fs)
	showVersion := fs.Bool("version", false, "Show version information")
	allowDuplicate := fs.Bool("allow-duplicate", false, "Create even if a similar object was just created")
	fs.Usage = func() { cli.PrintUsage(iocli.NewStdio()) }
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		printVersion()
		return nil
	}

	rest := fs.Args()
	if len(rest) == 0 {
		cli.PrintUsage(iocli.NewStdio())
		return errors.New("no command given")
	}

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return err
	}
	flags.Apply(&cfg)
	if err := cfg.ValidateClient(); err != nil {
		return err
	}

	logger := config.NewLogger(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := cli.New(iocli.NewStdio(), cfg, logger, cli.Options{
		AllowDuplicate: *allowDuplicate,
		Debug:          cfg.LogLevel == "debug",
	})
	return c.Run(ctx, rest[0], rest[1:])
}

func printVersion() {
	fmt.Printf("CanvasSync Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
