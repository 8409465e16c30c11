package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/Arya602/craft-heart-connect/internal/domain"
	"github.com/Arya602/craft-heart-connect/pkg/database"
	apperrors "github.com/Arya602/craft-heart-connect/pkg/errors"
	"github.com/Arya602/craft-heart-connect/pkg/pagination"
)

const uniqueViolation = "23505"

const (
	insertReceiptSQL = `
		INSERT INTO receipts (order_id, session_id, status, payment_method, item_count,
			items_price, tax_price, shipping_price, total_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	listReceiptsSQL = `
		SELECT order_id, session_id, status, payment_method, item_count,
			items_price::text, tax_price::text, shipping_price::text, total_price::text,
			created_at, updated_at, count(*) OVER() AS total_count
		FROM receipts
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	updateReceiptStatusSQL = `
		UPDATE receipts SET status = $2, updated_at = $3
		WHERE order_id = $1 AND updated_at <= $3`
)

// ReceiptRepository implements repository.ReceiptRepository using PostgreSQL.
type ReceiptRepository struct {
	pool database.DBTX
}

// NewReceiptRepository creates a new PostgreSQL-backed receipt repository.
func NewReceiptRepository(pool database.DBTX) *ReceiptRepository {
	return &ReceiptRepository{pool: pool}
}

// Create inserts a receipt. Money columns are passed as exact decimal strings.
func (r *ReceiptRepository) Create(ctx context.Context, rc domain.Receipt) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateReceipt", insertReceiptSQL)
	defer func() { end(err) }()

	_, err = r.pool.Exec(ctx, insertReceiptSQL,
		rc.OrderID,
		rc.SessionID,
		string(rc.Status),
		string(rc.PaymentMethod),
		rc.ItemCount,
		rc.ItemsPrice.StringFixed(2),
		rc.TaxPrice.StringFixed(2),
		rc.ShippingPrice.StringFixed(2),
		rc.TotalPrice.StringFixed(2),
		rc.CreatedAt,
		rc.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperrors.Conflict(fmt.Sprintf("receipt for order %s already exists", rc.OrderID))
		}
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

// ListBySession returns one page of the session's receipts, newest first.
func (r *ReceiptRepository) ListBySession(ctx context.Context, sessionID string, page pagination.Params) (_ []domain.Receipt, _ int, err error) {
	ctx, end := database.TraceQuery(ctx, "ListReceipts", listReceiptsSQL)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, listReceiptsSQL, sessionID, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	receipts := []domain.Receipt{}
	total := 0
	for rows.Next() {
		rc, count, err := scanReceipt(rows)
		if err != nil {
			return nil, 0, err
		}
		total = count
		receipts = append(receipts, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate receipts: %w", err)
	}
	return receipts, total, nil
}

// UpdateStatus sets a receipt's status. A change older than the one already
// stored matches no row, so redelivered or reordered events cannot move a
// receipt backwards.
func (r *ReceiptRepository) UpdateStatus(ctx context.Context, orderID string, status domain.Status, at time.Time) (err error) {
	ctx, end := database.TraceQuery(ctx, "UpdateReceiptStatus", updateReceiptStatusSQL)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, updateReceiptStatusSQL, orderID, string(status), at)
	if err != nil {
		return fmt.Errorf("update receipt status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("receipt", orderID)
	}
	return nil
}

func scanReceipt(row pgx.Row) (domain.Receipt, int, error) {
	var (
		rc                                     domain.Receipt
		status, method                         string
		itemsPrice, taxPrice, shipPrice, total string
		count                                  int
	)
	if err := row.Scan(
		&rc.OrderID,
		&rc.SessionID,
		&status,
		&method,
		&rc.ItemCount,
		&itemsPrice,
		&taxPrice,
		&shipPrice,
		&total,
		&rc.CreatedAt,
		&rc.UpdatedAt,
		&count,
	); err != nil {
		return domain.Receipt{}, 0, fmt.Errorf("scan receipt: %w", err)
	}

	rc.Status = domain.Status(status)
	rc.PaymentMethod = domain.PaymentMethod(method)

	for _, f := range []struct {
		dst *decimal.Decimal
		raw string
	}{
		{&rc.ItemsPrice, itemsPrice},
		{&rc.TaxPrice, taxPrice},
		{&rc.ShippingPrice, shipPrice},
		{&rc.TotalPrice, total},
	} {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return domain.Receipt{}, 0, fmt.Errorf("parse receipt amount %q: %w", f.raw, err)
		}
		*f.dst = d
	}

	return rc, count, nil
}
