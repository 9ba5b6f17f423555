package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-settlements/app/entity"
)

var (
	ErrSettlementNotFound       = errors.New("settlement not found")
	ErrSettlementAlreadyExists  = errors.New("settlement already exists")
	ErrSettlementStatusConflict = errors.New("settlement status conflict")
)

type SettlementRepository struct {
	db DBTX
}

func NewSettlementRepository(db DBTX) *SettlementRepository {
	return &SettlementRepository{db: db}
}

const settlementColumns = `
	id, request_id, buyer_ref, product_id, product_name, seller_receiver,
	amount, currency, status, reason,
	order_id, approval_url, approval_hash, approval_outcome, approval_closed_at,
	payment_id, captured_amount, platform_share, seller_share,
	payout_batch_id, payout_attempts, payout_next_at, payout_last_error,
	created_at, updated_at
`

func (r *SettlementRepository) Create(ctx context.Context, item *entity.Settlement) error {
	query := `
		INSERT INTO settlements (
			request_id, buyer_ref, product_id, product_name, seller_receiver,
			amount, currency, status, reason,
			order_id, approval_url, approval_hash, approval_outcome, approval_closed_at,
			payment_id, captured_amount, platform_share, seller_share,
			payout_batch_id, payout_attempts, payout_next_at, payout_last_error,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		item.RequestID,
		item.BuyerRef,
		item.ProductID,
		item.ProductName,
		item.SellerReceiver,
		item.Amount.StringFixed(2),
		item.Currency,
		int32(item.Status),
		int32(item.Reason),
		nullableStringValue(item.OrderID),
		nullableStringValue(item.ApprovalURL),
		item.ApprovalHash,
		int32(item.ApprovalOutcome),
		nullableTimeValue(item.ApprovalClosedAt),
		nullableStringValue(item.PaymentID),
		nullableDecimalValue(item.CapturedAmount),
		nullableDecimalValue(item.PlatformShare),
		nullableDecimalValue(item.SellerShare),
		nullableStringValue(item.PayoutBatchID),
		item.PayoutAttempts,
		nullableTimeValue(item.PayoutNextAt),
		nullableStringValue(item.PayoutLastErr),
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrSettlementAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	item.ID = uint64(id)
	return nil
}

const settlementUpdateSet = `
	UPDATE settlements SET
		status = ?,
		reason = ?,
		currency = ?,
		order_id = ?,
		approval_url = ?,
		approval_outcome = ?,
		approval_closed_at = ?,
		payment_id = ?,
		captured_amount = ?,
		platform_share = ?,
		seller_share = ?,
		payout_batch_id = ?,
		payout_attempts = ?,
		payout_next_at = ?,
		payout_last_error = ?,
		updated_at = ?
`

func settlementUpdateArgs(item *entity.Settlement) []interface{} {
	return []interface{}{
		int32(item.Status),
		int32(item.Reason),
		item.Currency,
		nullableStringValue(item.OrderID),
		nullableStringValue(item.ApprovalURL),
		int32(item.ApprovalOutcome),
		nullableTimeValue(item.ApprovalClosedAt),
		nullableStringValue(item.PaymentID),
		nullableDecimalValue(item.CapturedAmount),
		nullableDecimalValue(item.PlatformShare),
		nullableDecimalValue(item.SellerShare),
		nullableStringValue(item.PayoutBatchID),
		item.PayoutAttempts,
		nullableTimeValue(item.PayoutNextAt),
		nullableStringValue(item.PayoutLastErr),
		item.UpdatedAt,
	}
}

func (r *SettlementRepository) Update(ctx context.Context, item *entity.Settlement) error {
	query := settlementUpdateSet + ` WHERE id = ?`
	args := append(settlementUpdateArgs(item), item.ID)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSettlementNotFound
	}
	return nil
}

// UpdateFromStatus persists item only while the stored row still carries the
// expected status. A zero-row update means another writer moved the
// settlement on first; the caller must re-read and back off instead of
// clobbering that state.
func (r *SettlementRepository) UpdateFromStatus(ctx context.Context, item *entity.Settlement, expected entity.Status) error {
	query := settlementUpdateSet + ` WHERE id = ? AND status = ?`
	args := append(settlementUpdateArgs(item), item.ID, int32(expected))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSettlementStatusConflict
	}
	return nil
}

func (r *SettlementRepository) FindByID(ctx context.Context, id uint64) (*entity.Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *SettlementRepository) FindByRequestID(ctx context.Context, requestID string) (*entity.Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE request_id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, requestID))
}

func (r *SettlementRepository) FindByApprovalHash(ctx context.Context, hash string) (*entity.Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE approval_hash = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, hash))
}

func (r *SettlementRepository) FindInFlight(ctx context.Context, buyerRef, productID string) (*entity.Settlement, error) {
	query := `
		SELECT ` + settlementColumns + `
		FROM settlements
		WHERE buyer_ref = ? AND product_id = ? AND status NOT IN (?, ?)
		ORDER BY id DESC
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, query, buyerRef, productID,
		int32(entity.StatusCompleted), int32(entity.StatusFailed))
	return r.scanOne(row)
}

func (r *SettlementRepository) ListPayoutRetry(ctx context.Context, now time.Time, limit int32) ([]*entity.Settlement, error) {
	query := `
		SELECT ` + settlementColumns + `
		FROM settlements
		WHERE status = ? AND reason = ? AND payout_next_at IS NOT NULL AND payout_next_at <= ?
		ORDER BY payout_next_at ASC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query,
		int32(entity.StatusFailed), int32(entity.ReasonPayoutFailed), now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.Settlement, 0)
	for rows.Next() {
		item, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *SettlementRepository) scanOne(row *sql.Row) (*entity.Settlement, error) {
	item, err := r.scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *SettlementRepository) scanRow(row rowScanner) (*entity.Settlement, error) {
	var (
		item            entity.Settlement
		amount          string
		status          int32
		reason          int32
		orderID         sql.NullString
		approvalURL     sql.NullString
		approvalOutcome int32
		approvalClosed  sql.NullTime
		paymentID       sql.NullString
		capturedAmount  sql.NullString
		platformShare   sql.NullString
		sellerShare     sql.NullString
		payoutBatchID   sql.NullString
		payoutNextAt    sql.NullTime
		payoutLastErr   sql.NullString
	)

	err := row.Scan(
		&item.ID,
		&item.RequestID,
		&item.BuyerRef,
		&item.ProductID,
		&item.ProductName,
		&item.SellerReceiver,
		&amount,
		&item.Currency,
		&status,
		&reason,
		&orderID,
		&approvalURL,
		&item.ApprovalHash,
		&approvalOutcome,
		&approvalClosed,
		&paymentID,
		&capturedAmount,
		&platformShare,
		&sellerShare,
		&payoutBatchID,
		&item.PayoutAttempts,
		&payoutNextAt,
		&payoutLastErr,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if item.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	item.Status = entity.Status(status)
	item.Reason = entity.FailureReason(reason)
	item.OrderID = stringPtrFromNull(orderID)
	item.ApprovalURL = stringPtrFromNull(approvalURL)
	item.ApprovalOutcome = entity.ApprovalOutcome(approvalOutcome)
	item.ApprovalClosedAt = timePtrFromNull(approvalClosed)
	item.PaymentID = stringPtrFromNull(paymentID)
	if item.CapturedAmount, err = decimalPtrFromNull(capturedAmount); err != nil {
		return nil, err
	}
	if item.PlatformShare, err = decimalPtrFromNull(platformShare); err != nil {
		return nil, err
	}
	if item.SellerShare, err = decimalPtrFromNull(sellerShare); err != nil {
		return nil, err
	}
	item.PayoutBatchID = stringPtrFromNull(payoutBatchID)
	item.PayoutNextAt = timePtrFromNull(payoutNextAt)
	item.PayoutLastErr = stringPtrFromNull(payoutLastErr)

	return &item, nil
}
