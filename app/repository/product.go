package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-settlements/app/entity"
)

var ErrProductNotFound = errors.New("product not found")

type ProductRepository struct {
	db DBTX
}

func NewProductRepository(db DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) FindByID(ctx context.Context, id string) (*entity.Product, error) {
	query := `
		SELECT id, name, price, is_free, seller_receiver, sales, created_at, updated_at
		FROM products
		WHERE id = ?
	`

	var (
		item  entity.Product
		price string
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&item.ID,
		&item.Name,
		&price,
		&item.IsFree,
		&item.SellerReceiver,
		&item.Sales,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if item.Price, err = decimal.NewFromString(price); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *ProductRepository) IncrementSales(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE products SET sales = sales + 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}
