package domain

import (
	"strings"
	"time"
)

// Transaction represents a single scored transaction.
type Transaction struct {
	ID        string  `json:"id"`
	Amount    float64 `json:"amount"`
	Recipient string  `json:"recipient"`

	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"createdAt"`

	// Caller-supplied feature overrides, merged into the derived
	// feature record by key.
	Features map[string]float64 `json:"features,omitempty"`
}

// PredictRequest is the API request payload for risk scoring.
type PredictRequest struct {
	Amount           float64            `json:"amount"`
	RecipientAddress string             `json:"recipientAddress"`
	Features         map[string]float64 `json:"features,omitempty"`
}

// Validate checks the request against the ingress contract.
func (r *PredictRequest) Validate() error {
	if r.Amount <= 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(r.RecipientAddress) == "" {
		return ErrMissingRecipient
	}
	return nil
}

// ToTransaction converts a request to a Transaction domain object.
func (r *PredictRequest) ToTransaction(now time.Time) *Transaction {
	return &Transaction{
		Amount:    r.Amount,
		Recipient: r.RecipientAddress,
		Timestamp: now,
		CreatedAt: now,
		Features:  r.Features,
	}
}
