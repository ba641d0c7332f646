package consumer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/Gunvolt24/leasepull/internal/domain"
	"github.com/Gunvolt24/leasepull/internal/lease"
	"github.com/Gunvolt24/leasepull/internal/ports"
	"github.com/Gunvolt24/leasepull/pkg/ctxmeta"
)

// Проверка, что Loop удовлетворяет интерфейсу верхнего уровня (порт приложения).
var _ ports.MessageConsumer = (*Loop)(nil)

// State — состояние цикла потребления.
type State int32

const (
	StateIdle State = iota
	StateFetching
	StateProcessing
	StateBackoff
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateProcessing:
		return "processing"
	case StateBackoff:
		return "backoff"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// cycleRunner — один цикл fetch/process/ack (Processor), чтобы цикл можно было тестировать отдельно.
type cycleRunner interface {
	RunCycle(ctx context.Context) (int, error)
}

// Loop — долгоживущий последовательный обработчик: Idle → Fetching → Processing → (Idle | Backoff).
// Параллелизм — несколько независимых Loop.
type Loop struct {
	name          string
	runner        cycleRunner
	tracker       *lease.Tracker
	stats         *Stats
	backoff       Backoff
	idlePollDelay time.Duration
	log           ports.Logger

	// flush — дописать буфер журнала при выходе из Run (не дольше flushTimeout).
	flush        func(ctx context.Context) error
	flushTimeout time.Duration

	// sleep — ожидание с учётом отмены; false, если ctx отменён.
	sleep func(ctx context.Context, d time.Duration) bool

	state atomic.Int32

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
}

// Option — необязательные зависимости цикла.
type Option func(*options)

type options struct {
	journal ports.DeliveryJournal
	clock   func() time.Time
	tracer  trace.Tracer
}

// WithJournal — журнал терминальных исходов доставок.
func WithJournal(j ports.DeliveryJournal) Option {
	return func(o *options) { o.journal = j }
}

// WithClock — часы трекера аренд (для тестов).
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// WithTracer — трейсер для спанов батча/сообщения (по умолчанию глобальный).
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// New — собирает цикл со своим Processor и Tracker.
func New(broker ports.BrokerClient, handler ports.MessageHandler, cfg Config, log ports.Logger, opts ...Option) (*Loop, error) {
	if broker == nil {
		return nil, errors.New("consumer: broker is required")
	}
	p, err := NewProcessor(broker, handler, cfg, log, opts...)
	if err != nil {
		return nil, err
	}

	cfg = cfg.withDefaults()
	l := &Loop{
		name:          cfg.Name,
		runner:        p,
		tracker:       p.tracker,
		stats:         p.stats,
		backoff:       cfg.Backoff.build(),
		idlePollDelay: cfg.IdlePollDelay,
		log:           log,
		flush:         p.Close,
		flushTimeout:  cfg.AckTimeout,
		sleep:         sleepCtx,
	}
	p.onBatch = func(int) { l.setState(StateProcessing) }
	l.state.Store(int32(StateIdle))

	return l, nil
}

// Run — основной цикл; блокируется до Stop() или отмены ctx.
// Остановка проверяется только между циклами: начатый батч обрабатывается полностью.
// Возвращает nil после Stop() и ctx.Err() после отмены родительского контекста.
// На выходе журнал доставок закрывается: Run однократный.
func (l *Loop) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		l.setState(StateStopped)
		l.flushJournal(ctx)
		return nil
	}
	l.cancel = cancel
	l.mu.Unlock()

	logCtx := ctxmeta.WithConsumer(ctx, l.name)
	l.log.Infof(logCtx, "consumption loop started")

	failures := 0
	for runCtx.Err() == nil {
		l.setState(StateFetching)
		n, err := l.runner.RunCycle(runCtx)

		if err != nil {
			if runCtx.Err() != nil {
				break
			}
			// Временная ошибка брокера/сети: ждём по политике и повторяем.
			failures++
			delay := l.backoff.Next(failures)
			l.setState(StateBackoff)
			l.log.Warnf(logCtx, "fetch failed (attempt %d): %v (will retry in %s)", failures, err, delay)
			if !l.sleep(runCtx, delay) {
				break
			}
			continue
		}

		// Успешный цикл сбрасывает счётчик ошибок; пауза ограничивает частоту запросов.
		if failures > 0 {
			l.log.Infof(logCtx, "broker reachable again after %d failed fetches", failures)
		}
		failures = 0
		if n > 0 {
			l.log.Infof(logCtx, "batch done messages=%d", n)
		}
		l.setState(StateIdle)
		if !l.sleep(runCtx, l.idlePollDelay) {
			break
		}
	}

	l.setState(StateStopped)
	l.flushJournal(logCtx)
	l.log.Infof(logCtx, "consumption loop stopped")

	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

func (l *Loop) flushJournal(ctx context.Context) {
	if l.flush == nil {
		return
	}
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.flushTimeout)
	defer cancel()
	if err := l.flush(fctx); err != nil {
		l.log.Warnf(ctx, "delivery journal not flushed: %v", err)
	}
}

// Stop — запрос мягкой остановки. Прерывает текущий long-poll, но не обработку батча.
// Можно вызывать до Run и многократно.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stopped = true
	if l.cancel != nil {
		l.cancel()
	}
}

// Name — имя цикла.
func (l *Loop) Name() string { return l.name }

// State — текущее состояние.
func (l *Loop) State() State { return State(l.state.Load()) }

// Stats — снимок счётчиков с состоянием и числом аренд в обработке.
func (l *Loop) Stats() domain.ConsumerStats {
	s := l.stats.Snapshot()
	s.State = l.State().String()
	s.InFlight = l.tracker.Len()
	return s
}

func (l *Loop) setState(s State) { l.state.Store(int32(s)) }

// sleepCtx ждёт d или останавливается по контексту.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
