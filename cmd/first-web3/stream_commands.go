package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"

	"github.com/mirror520/first-web3/client"
)

func streamCommand() *cli.Command {
	return &cli.Command{
		Name:      "stream",
		Usage:     "Stream dashboard events via SSE",
		ArgsUsage: "[wallet_address]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "type",
				Usage: "Only show events of this type (account, transfer)",
			},
			&cli.StringSliceFlag{
				Name:  "jq",
				Usage: "jq filter applied to the event payload; all filters must be truthy (repeatable)",
			},
		},
		Action: func(c *cli.Context) error {
			walletAddress := c.Args().First()
			typeFilter := c.String("type")
			jsonOutput := c.Bool("json")

			// Compile jq filters
			jqFilters := c.StringSlice("jq")
			compiledJQFilters := make([]*gojq.Code, len(jqFilters))
			for i, filter := range jqFilters {
				query, err := gojq.Parse(filter)
				if err != nil {
					return fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
				}
				compiledJQFilters[i], err = gojq.Compile(query)
				if err != nil {
					return fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
				}
			}

			// Create context that cancels on interrupt
			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigChan
				cancel()
			}()

			events, err := newAPIClient(c).StreamEvents(ctx, walletAddress)
			if err != nil {
				return fmt.Errorf("failed to connect to event stream: %w", err)
			}

			if !jsonOutput {
				if walletAddress != "" {
					fmt.Fprintf(os.Stderr, "Streaming events for wallet %s... (Ctrl+C to stop)\n\n", walletAddress)
				} else {
					fmt.Fprintf(os.Stderr, "Streaming all events... (Ctrl+C to stop)\n\n")
				}
			}

			for event := range events {
				if typeFilter != "" && event.Type != typeFilter {
					continue
				}
				if !matchesJQFilters(event.Data, compiledJQFilters) {
					continue
				}

				if jsonOutput {
					out, err := json.Marshal(map[string]any{
						"type": event.Type,
						"data": event.Data,
					})
					if err != nil {
						return fmt.Errorf("failed to marshal event: %w", err)
					}
					fmt.Println(string(out))
					continue
				}

				printEvent(event)
			}

			if !jsonOutput && ctx.Err() != nil {
				fmt.Fprintf(os.Stderr, "\nDisconnected\n")
			}
			return nil
		},
	}
}

// matchesJQFilters reports whether the payload satisfies every compiled
// filter. A filter that errors or yields no result is a non-match.
func matchesJQFilters(data json.RawMessage, filters []*gojq.Code) bool {
	if len(filters) == 0 {
		return true
	}

	var payload interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return false
	}

	for _, code := range filters {
		iter := code.Run(payload)
		v, ok := iter.Next()
		if !ok {
			return false
		}
		if _, isErr := v.(error); isErr {
			return false
		}
		if !isTruthy(v) {
			return false
		}
	}
	return true
}

// isTruthy checks if a jq result value is truthy.
// In jq, false and null are falsy, everything else is truthy.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	// Everything else (numbers, strings, objects, arrays) is truthy
	return true
}

func printEvent(event client.Event) {
	switch event.Type {
	case "account":
		var view struct {
			WalletAddress string    `json:"wallet_address"`
			Cluster       string    `json:"cluster"`
			DisplayName   string    `json:"display_name"`
			Balance       *float64  `json:"balance,omitempty"`
			State         string    `json:"state"`
			PublishedAt   time.Time `json:"published_at"`
		}
		if err := json.Unmarshal(event.Data, &view); err != nil {
			fmt.Fprintf(os.Stderr, "Error decoding account event: %v\n", err)
			return
		}

		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		fmt.Println("Account Update")
		fmt.Printf("Wallet:    %s\n", view.WalletAddress)
		fmt.Printf("Name:      %s\n", view.DisplayName)
		fmt.Printf("Cluster:   %s\n", view.Cluster)
		if view.Balance != nil {
			fmt.Printf("Balance:   %.9f SOL\n", *view.Balance)
		}
		fmt.Printf("Published: %s\n", view.PublishedAt.Format(time.RFC3339))
		fmt.Println()

	case "transfer":
		var transfer struct {
			Signature     string    `json:"signature"`
			WalletAddress string    `json:"wallet_address"`
			Destination   string    `json:"destination"`
			Mint          string    `json:"mint,omitempty"`
			AmountRaw     uint64    `json:"amount_raw"`
			Cluster       string    `json:"cluster"`
			Status        string    `json:"status"`
			PublishedAt   time.Time `json:"published_at"`
		}
		if err := json.Unmarshal(event.Data, &transfer); err != nil {
			fmt.Fprintf(os.Stderr, "Error decoding transfer event: %v\n", err)
			return
		}

		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		fmt.Printf("Transfer %s\n", transfer.Status)
		fmt.Printf("Signature:   %s\n", transfer.Signature)
		fmt.Printf("From:        %s\n", transfer.WalletAddress)
		fmt.Printf("To:          %s\n", transfer.Destination)
		if transfer.Mint != "" {
			fmt.Printf("Mint:        %s\n", transfer.Mint)
		}
		fmt.Printf("Amount:      %d raw units\n", transfer.AmountRaw)
		fmt.Printf("Cluster:     %s\n", transfer.Cluster)
		fmt.Printf("Published:   %s\n", transfer.PublishedAt.Format(time.RFC3339))
		fmt.Println()

	default:
		fmt.Printf("[%s] %s\n", event.Type, string(event.Data))
	}
}
