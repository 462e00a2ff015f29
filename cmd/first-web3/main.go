package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:  "first-web3",
		Usage: "Solana wallet dashboard CLI",
		Description: `A command-line tool for driving and debugging the first-web3 dashboard service.

Use this CLI to switch clusters, bind a wallet to the server session, inspect
balances and token accounts, send transfers, and watch the event stream.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			// Cluster selection commands
			{
				Name:  "network",
				Usage: "Cluster selection commands",
				Subcommands: []*cli.Command{
					networkGetCommand(),
					networkSetCommand(),
				},
			},
			// Wallet session commands
			{
				Name:  "session",
				Usage: "Wallet session commands",
				Subcommands: []*cli.Command{
					sessionConnectCommand(),
					sessionDisconnectCommand(),
				},
			},
			// Account view and token listing commands
			accountCommand(),
			tokensCommand(),
			// Transfer commands
			{
				Name:  "transfer",
				Usage: "Token transfer commands",
				Subcommands: []*cli.Command{
					transferSendCommand(),
					transferListCommand(),
				},
			},
			airdropCommand(),
			// SSE event streaming
			streamCommand(),
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server-url",
				Aliases: []string{"s"},
				Usage:   "Dashboard server URL",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
