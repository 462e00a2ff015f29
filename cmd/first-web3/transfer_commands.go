package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mirror520/first-web3/client"
)

func transferSendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Submit a token transfer from the session wallet",
		ArgsUsage: "DESTINATION_WALLET MINT AMOUNT_RAW",
		Action: func(c *cli.Context) error {
			if c.NArg() < 3 {
				return fmt.Errorf("destination wallet, mint and raw amount are required")
			}

			amountRaw, err := strconv.ParseUint(c.Args().Get(2), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid raw amount %q: %w", c.Args().Get(2), err)
			}

			receipt, err := newAPIClient(c).CreateTransfer(c.Context, c.Args().Get(0), c.Args().Get(1), amountRaw)
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return printJSON(receipt)
			}

			fmt.Printf("✓ Transfer submitted\n")
			fmt.Printf("  Signature: %s\n", receipt.Signature)
			fmt.Printf("  Slot pin:  %d\n", receipt.MinContextSlot)
			fmt.Printf("  Status:    %s\n", receipt.Status)
			fmt.Printf("\nWatch the event stream or the transfer list for the confirmation outcome.\n")
			return nil
		},
	}
}

func transferListCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "List recorded transfers for a wallet",
		ArgsUsage: "WALLET_ADDRESS",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "cluster",
				Usage: "Cluster to list (defaults to the server's active cluster)",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Value:   20,
				Usage:   "Maximum number of transfers to retrieve",
			},
			&cli.IntFlag{
				Name:    "offset",
				Aliases: []string{"o"},
				Value:   0,
				Usage:   "Number of transfers to skip",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("wallet address is required")
			}

			transfers, err := newAPIClient(c).ListTransfers(c.Context,
				c.Args().Get(0), c.String("cluster"), c.Int("limit"), c.Int("offset"))
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return printJSON(transfers)
			}

			if len(transfers) == 0 {
				fmt.Println("No transfers recorded")
				return nil
			}

			for _, t := range transfers {
				printTransfer(t)
			}
			return nil
		},
	}
}

func printTransfer(t client.Transfer) {
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("Signature:   %s\n", t.Signature)
	fmt.Printf("Destination: %s\n", t.Destination)
	if t.Mint != nil {
		fmt.Printf("Mint:        %s\n", *t.Mint)
	}
	fmt.Printf("Amount:      %d raw units\n", t.AmountRaw)
	fmt.Printf("Cluster:     %s\n", t.Cluster)
	fmt.Printf("Status:      %s\n", t.Status)
	fmt.Printf("Created:     %s\n", t.CreatedAt.Format(time.RFC3339))
}

func airdropCommand() *cli.Command {
	return &cli.Command{
		Name:  "airdrop",
		Usage: "Request an airdrop for the session wallet (devnet/testnet only)",
		Flags: []cli.Flag{
			&cli.Float64Flag{
				Name:  "sol",
				Value: 1,
				Usage: "Amount in SOL (server caps at 2)",
			},
		},
		Action: func(c *cli.Context) error {
			receipt, err := newAPIClient(c).RequestAirdrop(c.Context, c.Float64("sol"))
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return printJSON(receipt)
			}

			fmt.Printf("✓ Airdrop requested\n")
			fmt.Printf("  Signature: %s\n", receipt.Signature)
			fmt.Printf("  Amount:    %.9f SOL\n", float64(receipt.Lamports)/1e9)
			return nil
		},
	}
}
