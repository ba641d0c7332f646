package ports

import (
	"context"

	"github.com/Gunvolt24/leasepull/internal/domain"
)

// DeliveryJournal — приёмник терминальных исходов доставок.
// Ошибка записи не влияет на потребление: вызывающий только логирует её.
type DeliveryJournal interface {
	Record(ctx context.Context, rec domain.DeliveryRecord) error
}
