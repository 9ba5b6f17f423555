package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-settlements/app/commission"
	"github.com/vibast-solutions/ms-go-settlements/app/entity"
	"github.com/vibast-solutions/ms-go-settlements/app/factory"
	"github.com/vibast-solutions/ms-go-settlements/app/provider"
	"github.com/vibast-solutions/ms-go-settlements/app/repository"
	"github.com/vibast-solutions/ms-go-settlements/config"
)

const (
	defaultBatchSize    = int32(100)
	defaultPollInterval = time.Second
	defaultTimeout      = 10 * time.Minute
)

type settlementRepository interface {
	Create(ctx context.Context, item *entity.Settlement) error
	Update(ctx context.Context, item *entity.Settlement) error
	UpdateFromStatus(ctx context.Context, item *entity.Settlement, expected entity.Status) error
	FindByID(ctx context.Context, id uint64) (*entity.Settlement, error)
	FindByRequestID(ctx context.Context, requestID string) (*entity.Settlement, error)
	FindByApprovalHash(ctx context.Context, hash string) (*entity.Settlement, error)
	FindInFlight(ctx context.Context, buyerRef, productID string) (*entity.Settlement, error)
	ListPayoutRetry(ctx context.Context, now time.Time, limit int32) ([]*entity.Settlement, error)
}

type settlementEventRepository interface {
	Create(ctx context.Context, event *entity.SettlementEvent) error
}

type productRepository interface {
	FindByID(ctx context.Context, id string) (*entity.Product, error)
	IncrementSales(ctx context.Context, id string) error
}

type StartSettlementInput struct {
	RequestID string
	BuyerRef  string
	ProductID string
}

type SettlementService struct {
	settlementRepo settlementRepository
	eventRepo      settlementEventRepository
	productRepo    productRepository
	gateway        provider.Gateway
	alerter        Alerter
	cfg            config.SettlementsConfig
	logger         logrus.FieldLogger
}

func NewSettlementService(
	settlementRepo settlementRepository,
	eventRepo settlementEventRepository,
	productRepo productRepository,
	gateway provider.Gateway,
	alerter Alerter,
	cfg config.SettlementsConfig,
) *SettlementService {
	if cfg.ApprovalPollInterval <= 0 {
		cfg.ApprovalPollInterval = defaultPollInterval
	}
	if cfg.ApprovalTimeout <= 0 {
		cfg.ApprovalTimeout = defaultTimeout
	}

	return &SettlementService{
		settlementRepo: settlementRepo,
		eventRepo:      eventRepo,
		productRepo:    productRepo,
		gateway:        gateway,
		alerter:        alerter,
		cfg:            cfg,
		logger:         factory.NewModuleLogger("settlements-service"),
	}
}

// StartSettlement creates the provider order for a purchase attempt and
// parks the settlement in the awaiting-approval state. The buyer must then
// be sent to the returned approval URL; RunSettlement drives the rest.
//
// The second return value reports whether this call created the settlement.
// A replayed request id returns the existing row with false, so the caller
// must not launch another run for it.
func (s *SettlementService) StartSettlement(ctx context.Context, input StartSettlementInput) (*entity.Settlement, bool, error) {
	requestID := strings.TrimSpace(input.RequestID)
	buyerRef := strings.TrimSpace(input.BuyerRef)
	productID := strings.TrimSpace(input.ProductID)
	if requestID == "" || buyerRef == "" || productID == "" {
		return nil, false, ErrInvalidRequest
	}

	existing, err := s.settlementRepo.FindByRequestID(ctx, requestID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	inFlight, err := s.settlementRepo.FindInFlight(ctx, buyerRef, productID)
	if err != nil {
		return nil, false, err
	}
	if inFlight != nil {
		return nil, false, ErrSettlementInFlight
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, false, err
	}
	if product == nil {
		return nil, false, ErrProductNotFound
	}
	if product.IsFree {
		return nil, false, ErrProductFree
	}
	receiver := strings.TrimSpace(product.SellerReceiver)
	if receiver == "" {
		return nil, false, ErrNoSellerReceiver
	}

	now := time.Now().UTC()
	item := &entity.Settlement{
		RequestID:      requestID,
		BuyerRef:       buyerRef,
		ProductID:      product.ID,
		ProductName:    product.Name,
		SellerReceiver: receiver,
		Amount:         product.Price,
		Currency:       s.cfg.Currency,
		Status:         entity.StatusCreating,
		ApprovalHash:   uuid.NewString(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.settlementRepo.Create(ctx, item); err != nil {
		if errors.Is(err, repository.ErrSettlementAlreadyExists) {
			return nil, false, ErrSettlementAlreadyExists
		}
		return nil, false, err
	}
	s.recordEvent(ctx, item, nil, "settlement_created", nil)

	order, err := s.gateway.CreateOrder(ctx, &provider.OrderRequest{
		Amount:      item.Amount,
		Currency:    item.Currency,
		Description: item.ProductName,
		CustomID:    "product_" + item.ProductID,
		ReturnURL:   s.approvalRedirectURL(item.ApprovalHash, "return"),
		CancelURL:   s.approvalRedirectURL(item.ApprovalHash, "cancel"),
	})
	if err != nil {
		s.fail(ctx, item, entity.ReasonOrderCreateFailed, err)
		return nil, false, err
	}

	oldStatus := int32(item.Status)
	item.OrderID = &order.ID
	item.ApprovalURL = &order.ApprovalURL
	item.Status = entity.StatusAwaitingApproval
	item.UpdatedAt = time.Now().UTC()
	if err := s.settlementRepo.Update(ctx, item); err != nil {
		return nil, false, err
	}
	s.recordEvent(ctx, item, &oldStatus, "order_created", strPtr(order.ID))

	return item, true, nil
}

// RunSettlement drives one settlement from awaiting-approval to a terminal
// state. Expected outcomes (cancel, timeout, capture refusal, payout
// failure) are recorded on the settlement and do not surface as errors.
//
// The approval poll is the only place this service waits; its ticker and
// timeout timer are released on every exit path.
func (s *SettlementService) RunSettlement(ctx context.Context, id uint64) (*entity.Settlement, error) {
	item, err := s.settlementRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrSettlementNotFound
	}
	if item.Status != entity.StatusAwaitingApproval {
		return nil, fmt.Errorf("%w: settlement is %s", ErrInvalidStatus, item.Status)
	}
	if item.OrderID == nil || strings.TrimSpace(*item.OrderID) == "" {
		return nil, fmt.Errorf("%w: settlement has no order", ErrInvalidStatus)
	}

	item, timedOut, err := s.awaitApprovalClosure(ctx, item)
	if err != nil {
		return item, err
	}

	// Another run may have moved the settlement on while this one was
	// polling; only a run that still sees it awaiting approval may act.
	if item.Status != entity.StatusAwaitingApproval {
		return item, fmt.Errorf("%w: settlement is %s", ErrSettlementClaimed, item.Status)
	}

	if timedOut {
		s.fail(ctx, item, entity.ReasonTimeout, nil)
		return item, nil
	}

	// An explicit cancel redirect means no capturable order exists; every
	// other closure is only the trigger to attempt capture, with the
	// provider's response as the source of truth.
	if item.ApprovalOutcome == entity.ApprovalCancelled {
		s.fail(ctx, item, entity.ReasonCancelled, nil)
		return item, nil
	}

	// The status-guarded write is the capture claim: of two concurrent runs
	// only one lands it, and the loser backs off before any gateway call.
	if err := s.transition(ctx, item, entity.StatusCapturing, "capture_started", nil); err != nil {
		return item, err
	}

	capture, err := s.gateway.CaptureOrder(ctx, *item.OrderID)
	if err != nil {
		s.fail(ctx, item, entity.ReasonCaptureFailed, err)
		return item, nil
	}

	item.PaymentID = &capture.PaymentID

	// Split from the provider-confirmed amount, not the requested one.
	capturedAmount := capture.Amount
	if capturedAmount.Sign() <= 0 {
		capturedAmount = item.Amount
	}
	item.CapturedAmount = &capturedAmount
	if capture.Currency != "" {
		item.Currency = capture.Currency
	}

	split, err := commission.SplitAmount(capturedAmount, s.cfg.CommissionRate)
	if err != nil {
		s.failPayout(ctx, item, err)
		return item, nil
	}
	item.PlatformShare = &split.PlatformShare
	item.SellerShare = &split.SellerShare

	if err := s.transition(ctx, item, entity.StatusPayingOut, "payout_started", nil); err != nil {
		return item, err
	}

	payout, err := s.gateway.Payout(ctx, s.payoutRequest(item))
	if err != nil {
		s.failPayout(ctx, item, err)
		return item, nil
	}

	item.PayoutBatchID = &payout.BatchID
	if err := s.transition(ctx, item, entity.StatusCompleted, "settlement_completed", strPtr(payout.BatchID)); err != nil {
		return item, err
	}

	// Sales counter update is a separate, uncoordinated call; a miss is
	// logged and never fails the settlement.
	if err := s.productRepo.IncrementSales(ctx, item.ProductID); err != nil {
		s.logger.WithError(err).WithField("product_id", item.ProductID).Warn("sales counter increment failed")
	}

	return item, nil
}

// CloseApproval records that the buyer's approval context was closed, either
// through the provider's return redirect or its cancel redirect. Late
// signals on settlements that already moved on are ignored.
func (s *SettlementService) CloseApproval(ctx context.Context, hash string, outcome entity.ApprovalOutcome) (*entity.Settlement, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" || (outcome != entity.ApprovalReturned && outcome != entity.ApprovalCancelled) {
		return nil, ErrInvalidRequest
	}

	item, err := s.settlementRepo.FindByApprovalHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrSettlementNotFound
	}
	if item.Status != entity.StatusAwaitingApproval || item.ApprovalOutcome != entity.ApprovalPending {
		return item, nil
	}

	now := time.Now().UTC()
	item.ApprovalOutcome = outcome
	item.ApprovalClosedAt = &now
	item.UpdatedAt = now
	if err := s.settlementRepo.UpdateFromStatus(ctx, item, entity.StatusAwaitingApproval); err != nil {
		if errors.Is(err, repository.ErrSettlementStatusConflict) {
			return item, nil
		}
		return nil, err
	}
	s.recordEvent(ctx, item, nil, "approval_closed", strPtr(approvalOutcomeLabel(outcome)))

	return item, nil
}

func (s *SettlementService) GetSettlement(ctx context.Context, id uint64) (*entity.Settlement, error) {
	item, err := s.settlementRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrSettlementNotFound
	}
	return item, nil
}

func (s *SettlementService) awaitApprovalClosure(ctx context.Context, item *entity.Settlement) (*entity.Settlement, bool, error) {
	ticker := time.NewTicker(s.cfg.ApprovalPollInterval)
	defer ticker.Stop()
	timer := time.NewTimer(s.cfg.ApprovalTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return item, false, ctx.Err()
		case <-timer.C:
			return item, true, nil
		case <-ticker.C:
			latest, err := s.settlementRepo.FindByID(ctx, item.ID)
			if err != nil {
				s.logger.WithError(err).WithField("settlement_id", item.ID).Warn("approval poll failed")
				continue
			}
			if latest == nil {
				return item, false, ErrSettlementNotFound
			}
			item = latest
			if item.ApprovalOutcome != entity.ApprovalPending {
				return item, false, nil
			}
		}
	}
}

func (s *SettlementService) payoutRequest(item *entity.Settlement) *provider.PayoutRequest {
	var sellerShare decimal.Decimal
	if item.SellerShare != nil {
		sellerShare = *item.SellerShare
	}
	orderID := ""
	if item.OrderID != nil {
		orderID = *item.OrderID
	}
	note := fmt.Sprintf("Payment for the sale of %q (ID: %s)", item.ProductName, item.ProductID)

	return &provider.PayoutRequest{
		Receiver:    item.SellerReceiver,
		Amount:      sellerShare,
		Currency:    item.Currency,
		Note:        note,
		BatchIDSeed: orderID,
		ItemID:      "seller_payout_" + item.ProductID + "_" + orderID,
	}
}

// transition advances item from its current status, guarded by that status
// in the store. A conflict means another writer got there first; the caller
// must abort its run.
func (s *SettlementService) transition(ctx context.Context, item *entity.Settlement, status entity.Status, eventType string, detail *string) error {
	expected := item.Status
	oldStatus := int32(expected)
	item.Status = status
	item.UpdatedAt = time.Now().UTC()
	if err := s.settlementRepo.UpdateFromStatus(ctx, item, expected); err != nil {
		if errors.Is(err, repository.ErrSettlementStatusConflict) {
			item.Status = expected
			return fmt.Errorf("%w: settlement %d is no longer %s", ErrSettlementClaimed, item.ID, expected)
		}
		return err
	}
	s.recordEvent(ctx, item, &oldStatus, eventType, detail)
	return nil
}

func (s *SettlementService) fail(ctx context.Context, item *entity.Settlement, reason entity.FailureReason, cause error) {
	expected := item.Status
	oldStatus := int32(expected)
	item.Status = entity.StatusFailed
	item.Reason = reason
	item.UpdatedAt = time.Now().UTC()

	var detail *string
	if cause != nil {
		detail = strPtr(truncate(cause.Error(), 1024))
	}
	if err := s.settlementRepo.UpdateFromStatus(ctx, item, expected); err != nil {
		if errors.Is(err, repository.ErrSettlementStatusConflict) {
			s.logger.WithField("settlement_id", item.ID).Warn("terminal write skipped, settlement moved on")
			return
		}
		s.logger.WithError(err).WithField("settlement_id", item.ID).Error("failed to persist terminal state")
		return
	}
	s.recordEvent(ctx, item, &oldStatus, "settlement_failed", detail)

	if cause != nil {
		s.logger.WithError(cause).WithFields(logrus.Fields{
			"settlement_id": item.ID,
			"reason":        reason.String(),
		}).Warn("settlement failed")
	}
}

// failPayout marks the partial-failure state: funds were captured but the
// seller was not paid. It schedules an idempotent retry and raises the
// operator alert.
func (s *SettlementService) failPayout(ctx context.Context, item *entity.Settlement, cause error) {
	now := time.Now().UTC()
	item.PayoutAttempts++
	item.PayoutLastErr = strPtr(truncate(cause.Error(), 1024))
	if item.PayoutAttempts < s.payoutMaxAttempts() {
		next := now.Add(s.payoutRetryInterval())
		item.PayoutNextAt = &next
	} else {
		item.PayoutNextAt = nil
	}

	s.fail(ctx, item, entity.ReasonPayoutFailed, cause)
	if s.alerter != nil {
		s.alerter.PayoutFailed(ctx, item, cause)
	}
}

func (s *SettlementService) recordEvent(ctx context.Context, item *entity.Settlement, oldStatus *int32, eventType string, detail *string) {
	_ = s.eventRepo.Create(ctx, &entity.SettlementEvent{
		SettlementID: item.ID,
		EventType:    eventType,
		OldStatus:    oldStatus,
		NewStatus:    int32(item.Status),
		Detail:       detail,
		CreatedAt:    time.Now().UTC(),
	})
}

func (s *SettlementService) approvalRedirectURL(hash, action string) string {
	base := strings.TrimRight(strings.TrimSpace(s.cfg.ApprovalRedirectBaseURL), "/")
	return base + "/settlements/approval/" + hash + "/" + action
}

func (s *SettlementService) batchSize() int32 {
	if s.cfg.JobBatchSize > 0 {
		return s.cfg.JobBatchSize
	}
	return defaultBatchSize
}

func (s *SettlementService) payoutMaxAttempts() int32 {
	if s.cfg.PayoutMaxAttempts > 0 {
		return s.cfg.PayoutMaxAttempts
	}
	return 1
}

func (s *SettlementService) payoutRetryInterval() time.Duration {
	if s.cfg.PayoutRetryInterval > 0 {
		return s.cfg.PayoutRetryInterval
	}
	return 5 * time.Minute
}

func approvalOutcomeLabel(outcome entity.ApprovalOutcome) string {
	switch outcome {
	case entity.ApprovalReturned:
		return "returned"
	case entity.ApprovalCancelled:
		return "cancelled"
	case entity.ApprovalPending:
		return "pending"
	default:
		return "unknown"
	}
}

func strPtr(v string) *string {
	return &v
}

func truncate(v string, limit int) string {
	if len(v) <= limit {
		return v
	}
	return v[:limit]
}
