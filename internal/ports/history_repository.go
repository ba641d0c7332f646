package ports

import (
	"context"

	"github.com/Gunvolt24/leasepull/internal/domain"
)

type HistoryRepository interface {
	Save(ctx context.Context, rec *domain.DeliveryRecord) error
	ListByMessage(ctx context.Context, messageID string, limit int) ([]domain.DeliveryRecord, error)
	Recent(ctx context.Context, n int) ([]domain.DeliveryRecord, error)
}
