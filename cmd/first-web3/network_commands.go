package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/mirror520/first-web3/client"
)

// newAPIClient builds the dashboard API client from the global flags.
func newAPIClient(c *cli.Context) *client.Client {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only errors to stderr
	}))
	return client.NewClient(c.String("server-url"), nil, logger)
}

// printJSON renders v as indented JSON on stdout.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func networkGetCommand() *cli.Command {
	return &cli.Command{
		Name:  "get",
		Usage: "Show the active cluster connection",
		Action: func(c *cli.Context) error {
			network, err := newAPIClient(c).GetNetwork(c.Context)
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return printJSON(network)
			}

			if !network.Connected {
				fmt.Println("Not connected to a cluster")
				return nil
			}
			fmt.Printf("Cluster:  %s\n", network.Cluster)
			fmt.Printf("Endpoint: %s\n", network.Endpoint)
			return nil
		},
	}
}

func networkSetCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Switch the active cluster",
		ArgsUsage: "CLUSTER (mainnet-beta, testnet, devnet)",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("cluster name is required")
			}

			network, err := newAPIClient(c).SetNetwork(c.Context, c.Args().Get(0))
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return printJSON(network)
			}

			fmt.Printf("✓ Connected to %s\n", network.Cluster)
			fmt.Printf("  Endpoint: %s\n", network.Endpoint)
			return nil
		},
	}
}
