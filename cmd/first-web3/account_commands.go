package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

func accountCommand() *cli.Command {
	return &cli.Command{
		Name:  "account",
		Usage: "Show the current account view",
		Action: func(c *cli.Context) error {
			view, err := newAPIClient(c).GetAccount(c.Context)
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return printJSON(view)
			}

			fmt.Printf("State: %s\n", view.State)
			if view.Wallet == "" {
				return nil
			}
			fmt.Printf("Wallet:  %s\n", view.Wallet)
			fmt.Printf("Name:    %s\n", view.DisplayName)
			fmt.Printf("Cluster: %s\n", view.Cluster)
			if view.Balance != nil {
				fmt.Printf("Balance: %.9f SOL\n", *view.Balance)
			} else {
				fmt.Printf("Balance: (unavailable)\n")
			}
			return nil
		},
	}
}

func tokensCommand() *cli.Command {
	return &cli.Command{
		Name:  "tokens",
		Usage: "List the session wallet's token accounts",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "wait",
				Aliases: []string{"w"},
				Usage:   "How long the server may wait for token metadata",
				Value:   2 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			list, err := newAPIClient(c).ListTokens(c.Context, c.Duration("wait"))
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return printJSON(list)
			}

			if len(list.Tokens) == 0 {
				fmt.Printf("No token accounts for %s on %s\n", list.Owner, list.Cluster)
				return nil
			}

			fmt.Printf("Token accounts for %s on %s:\n\n", list.Owner, list.Cluster)
			for _, token := range list.Tokens {
				program := "token"
				if token.Token2022 {
					program = "token-2022"
				}
				fmt.Printf("  %-24s %16.6f  (%s, %s)\n", token.Display, token.Amount, token.Mint, program)
			}
			return nil
		},
	}
}
