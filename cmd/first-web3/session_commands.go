package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
)

func sessionConnectCommand() *cli.Command {
	return &cli.Command{
		Name:  "connect",
		Usage: "Bind a wallet to the server session",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "keypair-file",
				Aliases: []string{"k"},
				Usage:   "Path to a solana-keygen keypair file",
			},
			&cli.StringFlag{
				Name:    "private-key",
				Usage:   "Private key (base58 or JSON byte array)",
				EnvVars: []string{"WALLET_PRIVATE_KEY"},
			},
			&cli.StringFlag{
				Name:  "signer-url",
				Usage: "Base URL of a remote signer service",
			},
		},
		Action: func(c *cli.Context) error {
			api := newAPIClient(c)

			privateKey := c.String("private-key")
			if path := c.String("keypair-file"); path != "" {
				raw, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read keypair file: %w", err)
				}
				privateKey = strings.TrimSpace(string(raw))
			}

			var info *clientSessionInfo
			switch {
			case privateKey != "":
				out, err := api.ConnectKeypair(c.Context, privateKey)
				if err != nil {
					return err
				}
				info = &clientSessionInfo{out.Adapter, out.PublicKey}
			case c.String("signer-url") != "":
				out, err := api.ConnectRemote(c.Context, c.String("signer-url"))
				if err != nil {
					return err
				}
				info = &clientSessionInfo{out.Adapter, out.PublicKey}
			default:
				return fmt.Errorf("one of --keypair-file, --private-key or --signer-url is required")
			}

			if c.Bool("json") {
				return printJSON(info)
			}

			fmt.Printf("✓ Wallet connected\n")
			fmt.Printf("  Adapter:    %s\n", info.Adapter)
			fmt.Printf("  Public key: %s\n", info.PublicKey)
			return nil
		},
	}
}

type clientSessionInfo struct {
	Adapter   string `json:"adapter"`
	PublicKey string `json:"public_key"`
}

func sessionDisconnectCommand() *cli.Command {
	return &cli.Command{
		Name:  "disconnect",
		Usage: "Clear the server's wallet session",
		Action: func(c *cli.Context) error {
			if err := newAPIClient(c).Disconnect(c.Context); err != nil {
				return err
			}
			if !c.Bool("json") {
				fmt.Println("✓ Wallet disconnected")
			}
			return nil
		},
	}
}
