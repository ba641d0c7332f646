package consumer

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Gunvolt24/leasepull/internal/domain"
	"github.com/Gunvolt24/leasepull/internal/lease"
	"github.com/Gunvolt24/leasepull/internal/ports"
	"github.com/Gunvolt24/leasepull/pkg/ctxmeta"
	"github.com/Gunvolt24/leasepull/pkg/metrics"
	"github.com/Gunvolt24/leasepull/pkg/telemetry"
)

// Processor — один цикл fetch → последовательная обработка → ack.
// Владеет своим Tracker; между экземплярами ничего не разделяется.
type Processor struct {
	name    string
	broker  ports.BrokerClient
	handler ports.MessageHandler
	tracker *lease.Tracker
	journal *journalQueue
	log     ports.Logger
	stats   *Stats
	tracer  trace.Tracer

	maxMessages  int
	wait         time.Duration
	invisibility time.Duration
	ackTimeout   time.Duration
	fetchSlack   time.Duration

	// onBatch — вызывается, когда батч получен и начинается обработка.
	onBatch func(n int)
}

// AckFunc — подтверждение одной доставки (для pull-режима это BrokerClient.Acknowledge).
type AckFunc func(ctx context.Context, msg domain.Message) error

// NewProcessor — процессор со своим трекером аренд. broker может быть nil,
// если процессор используется только через Deliver (push-режим).
func NewProcessor(broker ports.BrokerClient, handler ports.MessageHandler, cfg Config, log ports.Logger, opts ...Option) (*Processor, error) {
	if handler == nil || log == nil {
		return nil, errors.New("consumer: handler and logger are required")
	}

	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := options{tracer: telemetry.Tracer()}
	for _, opt := range opts {
		opt(&o)
	}

	trackerOpts := []lease.Option{lease.WithSafetyMargin(cfg.LeaseSafetyMargin)}
	if o.clock != nil {
		trackerOpts = append(trackerOpts, lease.WithClock(o.clock))
	}

	var jq *journalQueue
	if o.journal != nil {
		jq = newJournalQueue(o.journal, cfg.JournalBuffer, cfg.AckTimeout, cfg.Name, log)
	}

	return &Processor{
		name:         cfg.Name,
		broker:       broker,
		handler:      handler,
		tracker:      lease.NewTracker(trackerOpts...),
		journal:      jq,
		log:          log,
		stats:        newStats(cfg.Name),
		tracer:       o.tracer,
		maxMessages:  cfg.MaxMessageNums,
		wait:         cfg.WaitDuration,
		invisibility: cfg.InvisibilityDuration,
		ackTimeout:   cfg.AckTimeout,
		fetchSlack:   cfg.FetchSlack,
	}, nil
}

// RunCycle — один цикл. Возвращает число сообщений, доведённых до терминального исхода.
//
// Ошибка связи при FetchBatch возвращается как есть (обёрнутая в domain.ErrConnectivity),
// без внутренних повторов. Отмена ctx прерывает только ожидание FetchBatch:
// полученный батч обрабатывается до конца.
func (p *Processor) RunCycle(ctx context.Context) (int, error) {
	ctx = ctxmeta.WithConsumer(ctx, p.name)
	p.stats.cycle()

	batch, err := p.fetch(ctx)
	if err != nil {
		// Остановка во время long-poll — не ошибка брокера.
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		p.stats.connectivityError()
		return 0, err
	}

	// Пустой батч — штатная ситуация (в очереди ничего нет).
	if len(batch) == 0 {
		return 0, nil
	}

	// Аренды фиксируются сразу после получения батча.
	fetchedAt := p.tracker.Now()
	for i := range batch {
		p.tracker.Register(batch[i].ID, fetchedAt, p.invisibility)
	}
	p.stats.addFetched(len(batch))
	p.updateInFlight()

	if len(batch) > p.maxMessages {
		p.log.Warnf(ctx, "broker returned %d messages, requested at most %d", len(batch), p.maxMessages)
	}
	if p.onBatch != nil {
		p.onBatch(len(batch))
	}

	// Начатый батч доводится до конца даже при запросе остановки.
	work := context.WithoutCancel(ctx)
	work, span := p.tracer.Start(work, "leasepull.batch",
		trace.WithAttributes(
			attribute.String("leasepull.consumer", p.name),
			attribute.Int("leasepull.batch.size", len(batch)),
		),
	)
	defer span.End()

	for i := range batch {
		p.process(work, batch[i], p.broker.Acknowledge)
	}

	return len(batch), nil
}

func (p *Processor) fetch(ctx context.Context) (domain.Batch, error) {
	// Таймаут запроса = long-poll + надбавка, чтобы зависший брокер не блокировал цикл бесконечно.
	fetchCtx, cancel := context.WithTimeout(ctx, p.wait+p.fetchSlack)
	defer cancel()

	batch, err := p.broker.FetchBatch(fetchCtx, p.maxMessages, p.wait)
	if err != nil {
		if errors.Is(err, domain.ErrConnectivity) {
			return nil, err
		}
		return nil, domain.Connectivity("fetch batch", err)
	}
	return batch, nil
}

// Deliver — обработка одного сообщения, доставленного брокером по своей инициативе.
// Аренда отсчитывается от момента вызова. Отмена ctx обработку не прерывает.
func (p *Processor) Deliver(ctx context.Context, msg domain.Message, ack AckFunc) domain.DeliveryStatus {
	ctx = ctxmeta.WithConsumer(context.WithoutCancel(ctx), p.name)

	p.tracker.Register(msg.ID, p.tracker.Now(), p.invisibility)
	p.stats.addFetched(1)
	p.updateInFlight()

	return p.process(ctx, msg, ack)
}

// Close — дописывает буфер журнала доставок (не дольше ctx). Повторный вызов безопасен.
func (p *Processor) Close(ctx context.Context) error {
	if p.journal == nil {
		return nil
	}
	return p.journal.close(ctx)
}

// Name — имя процессора (метки метрик, логи).
func (p *Processor) Name() string { return p.name }

// Stats — снимок счётчиков с числом аренд в обработке.
func (p *Processor) Stats() domain.ConsumerStats {
	s := p.stats.Snapshot()
	s.InFlight = p.tracker.Len()
	return s
}

// process — доводит одно сообщение до терминального исхода; аренда снимается в любом случае.
func (p *Processor) process(ctx context.Context, msg domain.Message, ack AckFunc) domain.DeliveryStatus {
	ctx = ctxmeta.WithMessageID(ctx, msg.ID)
	ctx, span := p.tracer.Start(ctx, "leasepull.message",
		trace.WithAttributes(
			attribute.String("leasepull.message.id", msg.ID),
			attribute.Int("leasepull.message.attempt", msg.DeliveryAttempt),
		),
	)
	defer span.End()

	defer func() {
		p.tracker.Remove(msg.ID)
		p.updateInFlight()
	}()

	// a) аренда истекла ещё до начала обработки — сообщение уже доступно для повторной доставки.
	if p.tracker.IsExpired(msg.ID) {
		p.abandon(ctx, msg, "lease expired before processing")
		span.SetStatus(codes.Error, string(domain.StatusAbandonedExpired))
		return domain.StatusAbandonedExpired
	}

	// b) обработчик
	outcome, err := p.invoke(ctx, msg)

	// d) неуспех — не подтверждаем, повтор обеспечит истечение аренды.
	if err != nil || outcome != domain.Success {
		p.handlerFailed(ctx, msg, err)
		span.SetStatus(codes.Error, string(domain.StatusHandlerFailed))
		return domain.StatusHandlerFailed
	}

	// c) успех — но подтверждать после истечения аренды нельзя.
	if p.tracker.IsExpired(msg.ID) {
		p.abandon(ctx, msg, "lease expired during processing")
		span.SetStatus(codes.Error, string(domain.StatusAbandonedExpired))
		return domain.StatusAbandonedExpired
	}

	if err := p.acknowledge(ctx, msg, ack); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(domain.StatusAckLost))
		return domain.StatusAckLost
	}
	span.SetStatus(codes.Ok, string(domain.StatusAcked))
	return domain.StatusAcked
}

func (p *Processor) updateInFlight() {
	metrics.InFlightLeases.WithLabelValues(p.name).Set(float64(p.tracker.Len()))
}
