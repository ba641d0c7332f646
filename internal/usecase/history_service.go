package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/Gunvolt24/leasepull/internal/domain"
	"github.com/Gunvolt24/leasepull/internal/ports"
)

var (
	_ ports.DeliveryJournal    = (*HistoryService)(nil)
	_ ports.HistoryReadService = (*HistoryService)(nil)
)

// MaxHistory — сколько последних записей одного сообщения хранится в кэше и отдаётся наружу.
const MaxHistory = 100

// HistoryService — журнал доставок: запись исходов и чтение истории сообщения (без знаний о транспорте).
type HistoryService struct {
	repo  ports.HistoryRepository // прямой доступ к хранилищу
	cache ports.HistoryCache      // прямой доступ к кэшу
	log   ports.Logger            // прямой доступ к логгеру
}

// NewHistoryService — DI-конструктор.
func NewHistoryService(repo ports.HistoryRepository, cache ports.HistoryCache, log ports.Logger) *HistoryService {
	return &HistoryService{repo: repo, cache: cache, log: log}
}

// Record — сохранить терминальный исход доставки; кэш истории сообщения сбрасывается.
func (s *HistoryService) Record(ctx context.Context, rec domain.DeliveryRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	if err := s.repo.Save(ctx, &rec); err != nil {
		s.log.Errorf(ctx, "repo.Save failed message_id=%s status=%s err=%v", rec.MessageID, rec.Status, err)
		return fmt.Errorf("failed to save delivery record: %w", err)
	}
	s.cache.Invalidate(ctx, rec.MessageID)
	return nil
}

// History — история сообщения (новые первыми): сначала из кэша, при промахе — из БД с записью в кэш.
// limit <= 0 или больше MaxHistory означает MaxHistory. Неизвестный id — пустой срез без ошибки.
func (s *HistoryService) History(ctx context.Context, messageID string, limit int) ([]domain.DeliveryRecord, error) {
	if limit <= 0 || limit > MaxHistory {
		limit = MaxHistory
	}

	if records, found := s.cache.Get(ctx, messageID); found {
		s.log.Infof(ctx, "cache hit for message=%s", messageID)
		return head(records, limit), nil
	}
	s.log.Infof(ctx, "cache miss for message=%s", messageID)

	start := time.Now()
	records, err := s.repo.ListByMessage(ctx, messageID, MaxHistory)
	if err != nil {
		s.log.Errorf(ctx, "repo.ListByMessage failed message_id=%s err=%v", messageID, err)
		return nil, err
	}

	if len(records) > 0 {
		if setErr := s.cache.Set(ctx, messageID, records); setErr != nil {
			s.log.Warnf(ctx, "cache.Set failed message_id=%s err=%v", messageID, setErr)
		}
	}

	s.log.Infof(ctx, "db fetch message_id=%s records=%d took=%s", messageID, len(records), time.Since(start))
	return head(records, limit), nil
}

// WarmUpCache — прогрев кэша полными историями сообщений из последних n записей.
// Если n <= 0, прогрев не выполняется (но это не ошибка).
func (s *HistoryService) WarmUpCache(ctx context.Context, n int) error {
	if n <= 0 {
		s.log.Warnf(ctx, "cache warm-up skipped: n <= 0 (n=%d)", n)
		return nil
	}

	start := time.Now()
	recent, err := s.repo.Recent(ctx, n)
	if err != nil {
		s.log.Errorf(ctx, "repo.Recent failed n=%d err=%v", n, err)
		return err
	}

	seen := make(map[string]struct{}, len(recent))
	all := make([]domain.DeliveryRecord, 0, len(recent))
	for _, r := range recent {
		if _, dup := seen[r.MessageID]; dup {
			continue
		}
		seen[r.MessageID] = struct{}{}

		history, listErr := s.repo.ListByMessage(ctx, r.MessageID, MaxHistory)
		if listErr != nil {
			s.log.Warnf(ctx, "repo.ListByMessage failed message_id=%s err=%v", r.MessageID, listErr)
			continue
		}
		all = append(all, history...)
	}

	if warmUpErr := s.cache.WarmUp(ctx, all); warmUpErr != nil {
		s.log.Warnf(ctx, "cache.WarmUp failed err=%v", warmUpErr)
	}
	s.log.Infof(ctx, "cache warmed with %d messages in %s", len(seen), time.Since(start))
	return nil
}

func head(records []domain.DeliveryRecord, limit int) []domain.DeliveryRecord {
	if len(records) > limit {
		return records[:limit]
	}
	return records
}
