package nats

import (
	"time"

	"github.com/mirror520/first-web3/service/account"
)

// AccountEvent represents a completed account view resolution, published
// to the subject "dashboard.account.{wallet_address}" in JetStream.
type AccountEvent struct {
	WalletAddress string   `json:"wallet_address"`
	Cluster       string   `json:"cluster"`
	DisplayName   string   `json:"display_name"`
	Balance       *float64 `json:"balance,omitempty"`
	State         string   `json:"state"`

	// Metadata
	PublishedAt time.Time `json:"published_at"`
}

// FromAccountView converts a sync core view to an AccountEvent for publishing.
func FromAccountView(view account.View) *AccountEvent {
	return &AccountEvent{
		WalletAddress: view.Wallet,
		Cluster:       view.Cluster,
		DisplayName:   view.DisplayName,
		Balance:       view.Balance,
		State:         view.State.String(),
		PublishedAt:   time.Now().UTC(),
	}
}

// TransferEvent represents a submitted transfer, published to the subject
// "dashboard.transfers.{wallet_address}" in JetStream.
type TransferEvent struct {
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`

	WalletAddress string `json:"wallet_address"` // Owner/sender wallet
	Destination   string `json:"destination"`
	Mint          string `json:"mint"`
	AmountRaw     uint64 `json:"amount_raw"`
	Cluster       string `json:"cluster"`
	Status        string `json:"status"` // submitted, confirmed, failed

	// Metadata
	PublishedAt time.Time `json:"published_at"`
}
