package ports

import (
	"context"

	"github.com/Gunvolt24/leasepull/internal/domain"
)

// MessageConsumer — долгоживущий потребитель: Run блокируется до остановки.
type MessageConsumer interface {
	Run(ctx context.Context) error
	Stop()
}

// StatsProvider — источник снимков счётчиков потребителей для HTTP /stats.
type StatsProvider interface {
	Snapshots() []domain.ConsumerStats
}
