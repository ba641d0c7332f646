package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Gunvolt24/leasepull/internal/domain"
	"github.com/Gunvolt24/leasepull/internal/ports"
)

// Проверка, что HistoryRepository удовлетворяет интерфейсу HistoryRepository.
var _ ports.HistoryRepository = (*HistoryRepository)(nil)

const defaultHistoryLimit = 50

// HistoryRepository — журнал доставок в Postgres (pgxpool). Записи только добавляются, дубликаты отбрасываются.
type HistoryRepository struct {
	pool *pgxpool.Pool
}

func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// Save — добавляет запись; нулевое время заменяется текущим.
// Повтор той же записи (повторное чтение журнала) молча игнорируется.
func (r *HistoryRepository) Save(ctx context.Context, rec *domain.DeliveryRecord) error {
	if rec == nil || rec.MessageID == "" {
		return errors.New("delivery record is empty or message_id is required")
	}
	if rec.Status == "" {
		return errors.New("status is required")
	}

	occurred := rec.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}

	if _, err := r.pool.Exec(ctx, `
		INSERT INTO delivery_history (message_id, consumer, topic, status, attempt, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (message_id, consumer, attempt, status, occurred_at) DO NOTHING
	`, rec.MessageID, rec.Consumer, rec.Topic, string(rec.Status), rec.Attempt, rec.Detail, occurred); err != nil {
		return fmt.Errorf("insert delivery record: %w", err)
	}
	return nil
}

// ListByMessage — история сообщения, новые записи первыми.
func (r *HistoryRepository) ListByMessage(ctx context.Context, messageID string, limit int) ([]domain.DeliveryRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	return r.query(ctx, "select message history", `
		SELECT message_id, consumer, topic, status, attempt, detail, occurred_at
		FROM delivery_history
		WHERE message_id = $1
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2
	`, messageID, limit)
}

// Recent — последние n записей по всем сообщениям (прогрев кэша).
func (r *HistoryRepository) Recent(ctx context.Context, n int) ([]domain.DeliveryRecord, error) {
	if n <= 0 {
		return []domain.DeliveryRecord{}, nil
	}

	return r.query(ctx, "select recent history", `
		SELECT message_id, consumer, topic, status, attempt, detail, occurred_at
		FROM delivery_history
		ORDER BY occurred_at DESC, id DESC
		LIMIT $1
	`, n)
}

func (r *HistoryRepository) query(ctx context.Context, op, sql string, args ...any) ([]domain.DeliveryRecord, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]domain.DeliveryRecord, 0)
	for rows.Next() {
		var (
			rec    domain.DeliveryRecord
			status string
		)
		if err := rows.Scan(&rec.MessageID, &rec.Consumer, &rec.Topic, &status, &rec.Attempt, &rec.Detail, &rec.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan delivery record: %w", err)
		}
		rec.Status = domain.DeliveryStatus(status)
		rec.OccurredAt = rec.OccurredAt.UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s rows: %w", op, err)
	}
	return out, nil
}
