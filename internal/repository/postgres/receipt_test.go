package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arya602/craft-heart-connect/internal/domain"
	"github.com/Arya602/craft-heart-connect/pkg/database"
	apperrors "github.com/Arya602/craft-heart-connect/pkg/errors"
	"github.com/Arya602/craft-heart-connect/pkg/pagination"
)

// --- Test Helpers ---

func newTestRepo(t *testing.T) (*ReceiptRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return NewReceiptRepository(mock), mock
}

func sampleReceipt() domain.Receipt {
	now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	return domain.Receipt{
		OrderID:       "ord-001",
		SessionID:     "sess-001",
		Status:        domain.StatusPending,
		PaymentMethod: domain.PaymentCOD,
		ItemCount:     3,
		ItemsPrice:    decimal.RequireFromString("1200"),
		TaxPrice:      decimal.RequireFromString("216"),
		ShippingPrice: decimal.Zero,
		TotalPrice:    decimal.RequireFromString("1416"),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

var receiptColumns = []string{
	"order_id", "session_id", "status", "payment_method", "item_count",
	"items_price", "tax_price", "shipping_price", "total_price",
	"created_at", "updated_at", "total_count",
}

// --- Create Tests ---

func TestReceiptRepository_Create_Success(t *testing.T) {
	repo, mock := newTestRepo(t)
	rc := sampleReceipt()

	mock.ExpectExec("INSERT INTO receipts").
		WithArgs(
			"ord-001", "sess-001", "pending", "COD", 3,
			"1200.00", "216.00", "0.00", "1416.00",
			rc.CreatedAt, rc.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), rc))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReceiptRepository_Create_Duplicate(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec("INSERT INTO receipts").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value"})

	err := repo.Create(context.Background(), sampleReceipt())
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReceiptRepository_Create_ExecError(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec("INSERT INTO receipts").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(errors.New("connection reset"))

	err := repo.Create(context.Background(), sampleReceipt())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert receipt")
	assert.NotErrorIs(t, err, apperrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- ListBySession Tests ---

func TestReceiptRepository_ListBySession_Success(t *testing.T) {
	repo, mock := newTestRepo(t)
	newer := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	older := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows(receiptColumns).
		AddRow("ord-002", "sess-001", "shipped", "COD", 1,
			"999.00", "179.82", "50.00", "1228.82", newer, newer, 5).
		AddRow("ord-001", "sess-001", "pending", "COD", 3,
			"1200.00", "216.00", "0.00", "1416.00", older, older, 5)

	mock.ExpectQuery("FROM receipts").
		WithArgs("sess-001", 2, 2).
		WillReturnRows(rows)

	got, total, err := repo.ListBySession(context.Background(), "sess-001", pagination.Params{Page: 2, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, got, 2)

	assert.Equal(t, "ord-002", got[0].OrderID)
	assert.Equal(t, domain.StatusShipped, got[0].Status)
	assert.True(t, decimal.RequireFromString("1228.82").Equal(got[0].TotalPrice))
	assert.True(t, decimal.RequireFromString("179.82").Equal(got[0].TaxPrice))
	assert.Equal(t, newer, got[0].CreatedAt)

	assert.Equal(t, "ord-001", got[1].OrderID)
	assert.Equal(t, domain.PaymentCOD, got[1].PaymentMethod)
	assert.Equal(t, 3, got[1].ItemCount)
	assert.True(t, got[1].ShippingPrice.IsZero())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReceiptRepository_ListBySession_Empty(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("FROM receipts").
		WithArgs("sess-new", pagination.DefaultPerPage, 0).
		WillReturnRows(pgxmock.NewRows(receiptColumns))

	got, total, err := repo.ListBySession(context.Background(), "sess-new", pagination.DefaultParams())
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReceiptRepository_ListBySession_QueryError(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("FROM receipts").
		WithArgs("sess-001", pagination.DefaultPerPage, 0).
		WillReturnError(errors.New("connection reset"))

	_, _, err := repo.ListBySession(context.Background(), "sess-001", pagination.DefaultParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list receipts")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReceiptRepository_ListBySession_BadAmount(t *testing.T) {
	repo, mock := newTestRepo(t)
	now := time.Now().UTC()

	rows := pgxmock.NewRows(receiptColumns).
		AddRow("ord-009", "sess-001", "pending", "COD", 1,
			"not-a-number", "0.00", "0.00", "0.00", now, now, 1)

	mock.ExpectQuery("FROM receipts").
		WithArgs("sess-001", pagination.DefaultPerPage, 0).
		WillReturnRows(rows)

	_, _, err := repo.ListBySession(context.Background(), "sess-001", pagination.DefaultParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse receipt amount")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- UpdateStatus Tests ---

func TestReceiptRepository_UpdateStatus_Success(t *testing.T) {
	repo, mock := newTestRepo(t)
	at := time.Date(2026, 3, 16, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE receipts SET status").
		WithArgs("ord-001", "delivered", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "ord-001", domain.StatusDelivered, at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReceiptRepository_UpdateStatus_NotFound(t *testing.T) {
	repo, mock := newTestRepo(t)
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE receipts SET status").
		WithArgs("ord-missing", "shipped", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateStatus(context.Background(), "ord-missing", domain.StatusShipped, at)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReceiptRepository_UpdateStatus_IgnoresOlderChange(t *testing.T) {
	repo, mock := newTestRepo(t)
	// The receipt already records "delivered" at 12:00; a late "shipped" from
	// 11:00 must not overwrite it.
	at := time.Date(2026, 3, 16, 11, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE receipts SET status = \$2, updated_at = \$3\s+WHERE order_id = \$1 AND updated_at <= \$3`).
		WithArgs("ord-001", "shipped", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateStatus(context.Background(), "ord-001", domain.StatusShipped, at)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReceiptRepository_UpdateStatus_ExecError(t *testing.T) {
	repo, mock := newTestRepo(t)
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE receipts SET status").
		WithArgs("ord-001", "cancelled", at).
		WillReturnError(errors.New("timeout"))

	err := repo.UpdateStatus(context.Background(), "ord-001", domain.StatusCancelled, at)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update receipt status")
	assert.NoError(t, mock.ExpectationsWereMet())
}
