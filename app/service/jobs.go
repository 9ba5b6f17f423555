package service

import (
	"context"
	"time"

	"github.com/vibast-solutions/ms-go-settlements/app/entity"
)

// RunPayoutRetryBatch re-issues seller payouts for settlements that were
// captured but whose disbursement failed. The deterministic payout batch id
// makes a retry map to the same provider-side batch, so a payout that
// actually went through is never duplicated.
func (s *SettlementService) RunPayoutRetryBatch(ctx context.Context) error {
	now := time.Now().UTC()
	items, err := s.settlementRepo.ListPayoutRetry(ctx, now, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, item := range items {
		if item == nil {
			continue
		}
		if item.Status != entity.StatusFailed || item.Reason != entity.ReasonPayoutFailed {
			continue
		}
		if item.PaymentID == nil || *item.PaymentID == "" || item.SellerShare == nil {
			continue
		}

		if err := s.retryPayout(ctx, item, now); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	return firstErr
}

func (s *SettlementService) retryPayout(ctx context.Context, item *entity.Settlement, now time.Time) error {
	payout, err := s.gateway.Payout(ctx, s.payoutRequest(item))
	if err != nil {
		item.PayoutAttempts++
		item.PayoutLastErr = strPtr(truncate(err.Error(), 1024))
		if item.PayoutAttempts >= s.payoutMaxAttempts() {
			item.PayoutNextAt = nil
			if s.alerter != nil {
				s.alerter.PayoutFailed(ctx, item, err)
			}
		} else {
			next := now.Add(s.payoutRetryInterval())
			item.PayoutNextAt = &next
		}
		item.UpdatedAt = now
		if updateErr := s.settlementRepo.Update(ctx, item); updateErr != nil {
			return updateErr
		}
		s.recordEvent(ctx, item, nil, "payout_retry_failed", item.PayoutLastErr)
		return err
	}

	oldStatus := int32(item.Status)
	item.PayoutBatchID = &payout.BatchID
	item.Status = entity.StatusCompleted
	item.Reason = entity.ReasonNone
	item.PayoutNextAt = nil
	item.PayoutLastErr = nil
	item.UpdatedAt = now
	if err := s.settlementRepo.Update(ctx, item); err != nil {
		return err
	}
	s.recordEvent(ctx, item, &oldStatus, "payout_recovered", strPtr(payout.BatchID))

	if err := s.productRepo.IncrementSales(ctx, item.ProductID); err != nil {
		s.logger.WithError(err).WithField("product_id", item.ProductID).Warn("sales counter increment failed")
	}

	return nil
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
