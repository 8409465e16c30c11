package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Arya602/craft-heart-connect/internal/domain"
	"github.com/Arya602/craft-heart-connect/internal/repository"
	apperrors "github.com/Arya602/craft-heart-connect/pkg/errors"
)

// OrderSyncService keeps local receipts in step with order status changes
// published by the order service.
type OrderSyncService struct {
	receipts repository.ReceiptRepository
	logger   *slog.Logger
}

// NewOrderSyncService creates a new order sync service.
func NewOrderSyncService(receipts repository.ReceiptRepository, logger *slog.Logger) *OrderSyncService {
	return &OrderSyncService{receipts: receipts, logger: logger}
}

// ApplyStatusChange records the new status on the matching receipt. Orders
// placed outside the storefront have no receipt and are skipped, as are
// changes older than the receipt's last update.
func (s *OrderSyncService) ApplyStatusChange(ctx context.Context, orderID, rawStatus string, at time.Time) error {
	status, err := domain.ParseStatus(rawStatus)
	if err != nil {
		return err
	}

	if err := s.receipts.UpdateStatus(ctx, orderID, status, at.UTC()); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.DebugContext(ctx, "no receipt for order or newer status stored, skipping status change",
				slog.String("order_id", orderID),
			)
			return nil
		}
		return fmt.Errorf("update receipt status: %w", err)
	}

	s.logger.InfoContext(ctx, "order status synced",
		slog.String("order_id", orderID),
		slog.String("status", string(status)),
	)
	return nil
}
