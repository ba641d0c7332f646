package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gunvolt24/leasepull/internal/domain"
	"github.com/Gunvolt24/leasepull/pkg/metrics"
)

// invoke — вызывает обработчик с дедлайном аренды. Паника и ошибка превращаются в HandlerError.
func (p *Processor) invoke(ctx context.Context, msg domain.Message) (outcome domain.Outcome, err error) {
	// Дедлайн по часам трекера переводим в реальное время.
	hctx, cancel := context.WithTimeout(ctx, p.tracker.Remaining(msg.ID))
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			outcome = domain.Failure
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			outcome = domain.Failure
			err = &domain.HandlerError{MessageID: msg.ID, Err: err}
		}
		metrics.HandlerDuration.WithLabelValues(p.name, outcome.String()).Observe(time.Since(start).Seconds())
	}()

	return p.handler.Handle(hctx, msg)
}

// acknowledge — ack без повторов: отказ брокера или сбой связи только логируются.
func (p *Processor) acknowledge(ctx context.Context, msg domain.Message, ack AckFunc) error {
	ackCtx, cancel := context.WithTimeout(ctx, p.ackTimeout)
	err := ack(ackCtx, msg)
	cancel()

	if err == nil {
		p.stats.succeed()
		p.log.Infof(ctx, "message acked status=%s attempt=%d", domain.StatusAcked, msg.DeliveryAttempt)
		p.record(ctx, msg, domain.StatusAcked, "")
		return nil
	}

	p.stats.ackError()
	if errors.Is(err, domain.ErrAck) {
		p.log.Warnf(ctx, "ack rejected status=%s attempt=%d: %v (may be redelivered)", domain.StatusAckLost, msg.DeliveryAttempt, err)
	} else {
		p.stats.connectivityError()
		p.log.Warnf(ctx, "ack failed status=%s attempt=%d: %v (may be redelivered)", domain.StatusAckLost, msg.DeliveryAttempt, err)
	}
	p.record(ctx, msg, domain.StatusAckLost, err.Error())
	return err
}

func (p *Processor) abandon(ctx context.Context, msg domain.Message, reason string) {
	p.stats.abandon()
	p.log.Warnf(ctx, "message abandoned status=%s attempt=%d remaining=%s: %s",
		domain.StatusAbandonedExpired, msg.DeliveryAttempt, p.tracker.Remaining(msg.ID), reason)
	p.record(ctx, msg, domain.StatusAbandonedExpired, reason)
}

func (p *Processor) handlerFailed(ctx context.Context, msg domain.Message, err error) {
	p.stats.failNoAck()

	detail := "handler returned failure"
	if err != nil {
		detail = err.Error()
	}
	p.log.Warnf(ctx, "handler failed status=%s attempt=%d topic=%s tag=%s keys=%v: %s (left for redelivery)",
		domain.StatusHandlerFailed, msg.DeliveryAttempt, msg.Topic, msg.Tag, msg.Keys, detail)
	p.record(ctx, msg, domain.StatusHandlerFailed, detail)
}

// record — запись в журнал доставок уходит в буфер; журнал не держит аренды батча.
func (p *Processor) record(ctx context.Context, msg domain.Message, status domain.DeliveryStatus, detail string) {
	if p.journal == nil {
		return
	}
	rec := domain.DeliveryRecord{
		MessageID:  msg.ID,
		Consumer:   p.name,
		Topic:      msg.Topic,
		Status:     status,
		Attempt:    msg.DeliveryAttempt,
		Detail:     detail,
		OccurredAt: time.Now().UTC(),
	}
	p.journal.enqueue(ctx, rec)
}
