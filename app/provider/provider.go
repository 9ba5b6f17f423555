package provider

import (
	"context"

	"github.com/shopspring/decimal"
)

// Provider-side order lifecycle values. Transitions come exclusively from
// provider responses, never guessed locally.
const (
	OrderStatusCreated   = "CREATED"
	OrderStatusApproved  = "APPROVED"
	OrderStatusCompleted = "COMPLETED"
)

type OrderRequest struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
	CustomID    string

	ReturnURL string
	CancelURL string
}

type Order struct {
	ID          string
	Status      string
	ApprovalURL string
}

type CaptureResult struct {
	PaymentID string
	Status    string

	// Amount confirmed by the provider. Zero when the capture response did
	// not carry one.
	Amount   decimal.Decimal
	Currency string
}

type PayoutRequest struct {
	Receiver string
	Amount   decimal.Decimal
	Currency string
	Note     string

	// BatchIDSeed must be stable per capture so a retried payout maps to the
	// same provider-side batch instead of a duplicate disbursement.
	BatchIDSeed string
	ItemID      string
}

type PayoutResult struct {
	BatchID string
}

type Gateway interface {
	CreateOrder(ctx context.Context, req *OrderRequest) (*Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*CaptureResult, error)
	Payout(ctx context.Context, req *PayoutRequest) (*PayoutResult, error)
}
