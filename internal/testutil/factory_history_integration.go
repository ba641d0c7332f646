//go:build integration

package testutil

import (
	"time"

	"github.com/Gunvolt24/leasepull/internal/domain"
)

// MakeDeliveryHistory — записи об одной доставке на каждый статус: попытки 1..N,
// время растёт на секунду начиная с base.
func MakeDeliveryHistory(messageID string, base time.Time, statuses ...domain.DeliveryStatus) []domain.DeliveryRecord {
	out := make([]domain.DeliveryRecord, 0, len(statuses))
	for i, st := range statuses {
		rec := domain.DeliveryRecord{
			MessageID:  messageID,
			Consumer:   "itest",
			Topic:      "orders",
			Status:     st,
			Attempt:    i + 1,
			OccurredAt: base.Add(time.Duration(i) * time.Second),
		}
		if st != domain.StatusAcked {
			rec.Detail = "attempt " + string(st)
		}
		out = append(out, rec)
	}
	return out
}
