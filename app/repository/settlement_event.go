package repository

import (
	"context"

	"github.com/vibast-solutions/ms-go-settlements/app/entity"
)

type SettlementEventRepository struct {
	db DBTX
}

func NewSettlementEventRepository(db DBTX) *SettlementEventRepository {
	return &SettlementEventRepository{db: db}
}

func (r *SettlementEventRepository) Create(ctx context.Context, event *entity.SettlementEvent) error {
	query := `
		INSERT INTO settlement_events (
			settlement_id, event_type, old_status, new_status, detail, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	var oldStatus interface{}
	if event.OldStatus != nil {
		oldStatus = *event.OldStatus
	}

	result, err := r.db.ExecContext(ctx, query,
		event.SettlementID,
		event.EventType,
		oldStatus,
		event.NewStatus,
		nullableStringValue(event.Detail),
		event.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = uint64(id)

	return nil
}
