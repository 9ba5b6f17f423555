package service

import "errors"

var (
	ErrInvalidRequest          = errors.New("invalid request")
	ErrSettlementNotFound      = errors.New("settlement not found")
	ErrSettlementAlreadyExists = errors.New("settlement already exists")
	ErrSettlementInFlight      = errors.New("a settlement for this product is already in flight")
	ErrInvalidStatus           = errors.New("invalid status")
	ErrSettlementClaimed       = errors.New("settlement claimed by a concurrent run")
	ErrProductNotFound         = errors.New("product not found")
	ErrProductFree             = errors.New("product is free and needs no settlement")
	ErrNoSellerReceiver        = errors.New("product has no seller payout receiver")
)
