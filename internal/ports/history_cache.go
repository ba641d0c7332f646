package ports

import (
	"context"

	"github.com/Gunvolt24/leasepull/internal/domain"
)

// HistoryCache — кэш истории доставок по message_id.
// Требования к реализации: потокобезопасность; возврат копий.
type HistoryCache interface {
	// Get — история сообщения; (nil, false) при промахе/истечении.
	Get(ctx context.Context, messageID string) ([]domain.DeliveryRecord, bool)

	// Set — сохранить/заменить историю сообщения.
	Set(ctx context.Context, messageID string, records []domain.DeliveryRecord) error

	// Invalidate — удалить историю сообщения (после новой записи).
	Invalidate(ctx context.Context, messageID string)

	// WarmUp — массовая загрузка последних записей, сгруппированных по message_id.
	WarmUp(ctx context.Context, records []domain.DeliveryRecord) error
}
