package service

import (
	"context"
	"strings"

	"github.com/vibast-solutions/ms-go-settlements/app/entity"
)

// IsEntitled is the single authority for whether a buyer may download a
// product. A closed payment window, an in-flight settlement, or a completed
// status without a capture id never grant entitlement.
func IsEntitled(product *entity.Product, result entity.SettlementResult) bool {
	if product == nil {
		return false
	}
	if product.IsFree {
		return true
	}
	return result.Status == entity.StatusCompleted && result.PaymentID != ""
}

// CheckEntitlement resolves the product and settlement and runs the gate.
// Settlements are normalized to a terminal result first, so the predicate
// never sees a partial or ambiguous state.
func (s *SettlementService) CheckEntitlement(ctx context.Context, productID string, settlementID uint64) (bool, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return false, ErrInvalidRequest
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return false, err
	}
	if product == nil {
		return false, ErrProductNotFound
	}
	if product.IsFree {
		return true, nil
	}
	if settlementID == 0 {
		return false, nil
	}

	item, err := s.settlementRepo.FindByID(ctx, settlementID)
	if err != nil {
		return false, err
	}
	if item == nil || item.ProductID != productID {
		return false, nil
	}

	return IsEntitled(product, item.Result()), nil
}
