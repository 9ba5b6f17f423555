package mapper

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-settlements/app/entity"
	"github.com/vibast-solutions/ms-go-settlements/app/types"
)

func SettlementToResponse(item *entity.Settlement) *types.SettlementResponse {
	if item == nil {
		return nil
	}

	return &types.SettlementResponse{
		ID:             item.ID,
		RequestID:      item.RequestID,
		BuyerRef:       item.BuyerRef,
		ProductID:      item.ProductID,
		ProductName:    item.ProductName,
		Amount:         item.Amount.StringFixed(2),
		Currency:       item.Currency,
		Status:         item.Status.String(),
		Reason:         item.Reason.String(),
		Retriable:      item.Status == entity.StatusFailed && item.Reason.BuyerRetriable(),
		Message:        buyerMessage(item),
		OrderID:        derefString(item.OrderID),
		ApprovalURL:    derefString(item.ApprovalURL),
		PaymentID:      derefString(item.PaymentID),
		CapturedAmount: derefDecimal(item.CapturedAmount),
		PlatformShare:  derefDecimal(item.PlatformShare),
		SellerShare:    derefDecimal(item.SellerShare),
		PayoutBatchID:  derefString(item.PayoutBatchID),
		CreatedAt:      item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// buyerMessage is the buyer-facing wording for each outcome. A failed seller
// payout is deliberately softened: the buyer's money was captured, so they
// are told the purchase is processing rather than shown an error.
func buyerMessage(item *entity.Settlement) string {
	if item.Status == entity.StatusCompleted {
		return "Payment completed."
	}
	if item.Status != entity.StatusFailed {
		return ""
	}

	switch item.Reason {
	case entity.ReasonPayoutFailed:
		return "Payment received. Your purchase is being processed."
	case entity.ReasonCancelled:
		return "Payment was cancelled."
	case entity.ReasonTimeout:
		return "Payment window expired. Please try again."
	default:
		return "Payment failed. Please try again."
	}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefDecimal(v *decimal.Decimal) string {
	if v == nil {
		return ""
	}
	return v.StringFixed(2)
}
