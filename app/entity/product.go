package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal

	IsFree bool

	// PayPal address the seller's share is disbursed to.
	SellerReceiver string

	Sales int64

	CreatedAt time.Time
	UpdatedAt time.Time
}
