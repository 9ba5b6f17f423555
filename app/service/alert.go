package service

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-settlements/app/entity"
	"github.com/vibast-solutions/ms-go-settlements/app/factory"
)

// Alerter receives the one failure that must never be swallowed: the buyer
// was charged but the seller payout did not go through.
type Alerter interface {
	PayoutFailed(ctx context.Context, item *entity.Settlement, cause error)
}

type LogAlerter struct {
	logger logrus.FieldLogger
}

func NewLogAlerter() *LogAlerter {
	return &LogAlerter{logger: factory.NewModuleLogger("settlements-alerts")}
}

func (a *LogAlerter) PayoutFailed(_ context.Context, item *entity.Settlement, cause error) {
	fields := logrus.Fields{
		"settlement_id":   item.ID,
		"product_id":      item.ProductID,
		"seller_receiver": item.SellerReceiver,
		"payout_attempts": item.PayoutAttempts,
	}
	if item.OrderID != nil {
		fields["order_id"] = *item.OrderID
	}
	if item.PaymentID != nil {
		fields["payment_id"] = *item.PaymentID
	}
	if item.SellerShare != nil {
		fields["seller_share"] = item.SellerShare.StringFixed(2)
	}
	a.logger.WithError(cause).WithFields(fields).Error("seller payout failed after capture, manual reconciliation required")
}
