// Package journal — приёмники терминальных исходов доставок.
package journal

import (
	"context"
	"errors"

	"github.com/Gunvolt24/leasepull/internal/domain"
	"github.com/Gunvolt24/leasepull/internal/ports"
)

var (
	_ ports.DeliveryJournal = Nop{}
	_ ports.DeliveryJournal = Multi(nil)
)

// Nop — журнал, который ничего не пишет.
type Nop struct{}

func (Nop) Record(context.Context, domain.DeliveryRecord) error { return nil }

// Multi — запись во все журналы; ошибки объединяются, сбой одного не мешает остальным.
type Multi []ports.DeliveryJournal

func (m Multi) Record(ctx context.Context, rec domain.DeliveryRecord) error {
	var errs []error
	for _, j := range m {
		if j == nil {
			continue
		}
		if err := j.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
