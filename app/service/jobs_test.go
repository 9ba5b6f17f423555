package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-settlements/app/entity"
	"github.com/vibast-solutions/ms-go-settlements/app/provider"
)

func seedPayoutFailure(t *testing.T, repo *serviceSettlementRepo, attempts int32) *entity.Settlement {
	t.Helper()

	now := time.Now().UTC()
	next := now.Add(-time.Minute)
	orderID := "ORDER-1"
	paymentID := "CAPTURE-1"
	sellerShare := decimal.RequireFromString("39.99")
	platformShare := decimal.RequireFromString("10.00")
	lastErr := "payout rejected"

	item := &entity.Settlement{
		RequestID:      "req-1",
		BuyerRef:       "buyer-1",
		ProductID:      "prod-1",
		ProductName:    "Neural Art Pack",
		SellerReceiver: "seller@example.com",
		Amount:         decimal.RequireFromString("49.99"),
		Currency:       "USD",
		Status:         entity.StatusFailed,
		Reason:         entity.ReasonPayoutFailed,
		OrderID:        &orderID,
		PaymentID:      &paymentID,
		SellerShare:    &sellerShare,
		PlatformShare:  &platformShare,
		PayoutAttempts: attempts,
		PayoutNextAt:   &next,
		PayoutLastErr:  &lastErr,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := repo.Create(context.Background(), item); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return item
}

func TestPayoutRetryRecoversSettlement(t *testing.T) {
	repo := newServiceSettlementRepo()
	events := &serviceEventRepo{}
	products := newServiceProductRepo(paidProduct())
	gateway := &serviceGateway{}
	s := newServiceForTest(repo, events, products, gateway, &recordingAlerter{}, testSettlementsConfig())

	item := seedPayoutFailure(t, repo, 1)

	if err := s.RunPayoutRetryBatch(context.Background()); err != nil {
		t.Fatalf("retry batch failed: %v", err)
	}

	recovered, _ := repo.FindByID(context.Background(), item.ID)
	if recovered.Status != entity.StatusCompleted || recovered.Reason != entity.ReasonNone {
		t.Fatalf("expected recovered settlement, got %s/%s", recovered.Status, recovered.Reason)
	}
	if recovered.PayoutBatchID == nil || *recovered.PayoutBatchID != "payout_batch_ORDER-1" {
		t.Fatalf("expected deterministic payout batch, got %+v", recovered.PayoutBatchID)
	}
	if recovered.PayoutNextAt != nil || recovered.PayoutLastErr != nil {
		t.Fatalf("expected cleared retry bookkeeping, got %+v", recovered)
	}
	if products.salesOf("prod-1") != 1 {
		t.Fatalf("expected sales counter 1, got %d", products.salesOf("prod-1"))
	}

	if len(gateway.payouts) != 1 {
		t.Fatalf("expected one payout, got %d", len(gateway.payouts))
	}
	if gateway.payouts[0].BatchIDSeed != "ORDER-1" {
		t.Fatalf("retry must reuse the original batch seed, got %q", gateway.payouts[0].BatchIDSeed)
	}

	names := events.eventTypes()
	if len(names) != 1 || names[0] != "payout_recovered" {
		t.Fatalf("expected payout_recovered event, got %v", names)
	}
}

func TestPayoutRetrySchedulesNextAttempt(t *testing.T) {
	repo := newServiceSettlementRepo()
	gateway := &serviceGateway{payoutErr: provider.ErrPayoutFailed}
	alerter := &recordingAlerter{}
	s := newServiceForTest(repo, &serviceEventRepo{}, newServiceProductRepo(paidProduct()), gateway, alerter, testSettlementsConfig())

	item := seedPayoutFailure(t, repo, 1)

	err := s.RunPayoutRetryBatch(context.Background())
	if !errors.Is(err, provider.ErrPayoutFailed) {
		t.Fatalf("expected payout failure to surface, got %v", err)
	}

	stored, _ := repo.FindByID(context.Background(), item.ID)
	if stored.PayoutAttempts != 2 {
		t.Fatalf("expected attempts 2, got %d", stored.PayoutAttempts)
	}
	if stored.PayoutNextAt == nil {
		t.Fatal("expected another retry to be scheduled")
	}
	if alerter.callCount() != 0 {
		t.Fatalf("expected no alert before exhaustion, got %d", alerter.callCount())
	}
}

func TestPayoutRetryExhaustionAlerts(t *testing.T) {
	repo := newServiceSettlementRepo()
	gateway := &serviceGateway{payoutErr: provider.ErrPayoutFailed}
	alerter := &recordingAlerter{}
	s := newServiceForTest(repo, &serviceEventRepo{}, newServiceProductRepo(paidProduct()), gateway, alerter, testSettlementsConfig())

	item := seedPayoutFailure(t, repo, 2)

	_ = s.RunPayoutRetryBatch(context.Background())

	stored, _ := repo.FindByID(context.Background(), item.ID)
	if stored.PayoutAttempts != 3 {
		t.Fatalf("expected attempts 3, got %d", stored.PayoutAttempts)
	}
	if stored.PayoutNextAt != nil {
		t.Fatal("expected no further retries after exhaustion")
	}
	if alerter.callCount() != 1 {
		t.Fatalf("expected exhaustion alert, got %d", alerter.callCount())
	}
}

func TestPayoutRetrySkipsSettlementsWithoutCapture(t *testing.T) {
	repo := newServiceSettlementRepo()
	gateway := &serviceGateway{}
	s := newServiceForTest(repo, &serviceEventRepo{}, newServiceProductRepo(paidProduct()), gateway, &recordingAlerter{}, testSettlementsConfig())

	now := time.Now().UTC()
	next := now.Add(-time.Minute)
	item := &entity.Settlement{
		RequestID:    "req-1",
		BuyerRef:     "buyer-1",
		ProductID:    "prod-1",
		Status:       entity.StatusFailed,
		Reason:       entity.ReasonPayoutFailed,
		PayoutNextAt: &next,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Create(context.Background(), item); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if err := s.RunPayoutRetryBatch(context.Background()); err != nil {
		t.Fatalf("retry batch failed: %v", err)
	}
	if gateway.payoutCount() != 0 {
		t.Fatal("expected no payout for settlement without a capture id")
	}
}
