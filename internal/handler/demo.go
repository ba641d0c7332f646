// Package handler — встроенный обработчик для демонстрации и ручных проверок движка.
package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gunvolt24/leasepull/internal/domain"
	"github.com/Gunvolt24/leasepull/internal/ports"
)

var _ ports.MessageHandler = (*Demo)(nil)

// ErrFailMarker — тело сообщения содержит маркер сбоя.
var ErrFailMarker = errors.New("body contains fail marker")

// Demo — логирует сообщение, имитирует работу длительностью work и завершается
// неудачей, если тело содержит failMarker (пустой маркер отключает сбои).
type Demo struct {
	work       time.Duration
	failMarker []byte
	log        ports.Logger
}

func NewDemo(work time.Duration, failMarker string, log ports.Logger) *Demo {
	d := &Demo{work: work, log: log}
	if failMarker != "" {
		d.failMarker = []byte(failMarker)
	}
	return d
}

func (d *Demo) Handle(ctx context.Context, msg domain.Message) (domain.Outcome, error) {
	d.log.Infof(ctx, "handling message topic=%s tag=%s keys=%v attempt=%d size=%d",
		msg.Topic, msg.Tag, msg.Keys, msg.DeliveryAttempt, len(msg.Body))

	if d.work > 0 {
		t := time.NewTimer(d.work)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return domain.Failure, ctx.Err()
		case <-t.C:
		}
	}

	if d.failMarker != nil && bytes.Contains(msg.Body, d.failMarker) {
		return domain.Failure, fmt.Errorf("%w %q", ErrFailMarker, d.failMarker)
	}
	return domain.Success, nil
}
