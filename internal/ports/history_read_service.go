package ports

import (
	"context"

	"github.com/Gunvolt24/leasepull/internal/domain"
)

// HistoryReadService — чтение истории доставок для операторов.
type HistoryReadService interface {
	History(ctx context.Context, messageID string, limit int) ([]domain.DeliveryRecord, error)
}
