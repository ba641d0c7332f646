package push_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gunvolt24/leasepull/internal/consumer"
	"github.com/Gunvolt24/leasepull/internal/domain"
	"github.com/Gunvolt24/leasepull/internal/ports"
	"github.com/Gunvolt24/leasepull/internal/ports/mocks"
	"github.com/Gunvolt24/leasepull/internal/push"
)

type noopLogger struct{}

func (noopLogger) Infof(context.Context, string, ...any)  {}
func (noopLogger) Warnf(context.Context, string, ...any)  {}
func (noopLogger) Errorf(context.Context, string, ...any) {}

func TestDispatcher_OutcomesAndJournal(t *testing.T) {
	ctrl := gomock.NewController(t)
	journal := mocks.NewMockDeliveryJournal(ctrl)

	handler := ports.HandlerFunc(func(_ context.Context, m domain.Message) (domain.Outcome, error) {
		if string(m.Body) == "fail" {
			return domain.Failure, nil
		}
		return domain.Success, nil
	})

	var statuses []domain.DeliveryStatus
	journal.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, rec domain.DeliveryRecord) error {
		statuses = append(statuses, rec.Status)
		return nil
	}).Times(3)

	d, err := push.NewDispatcher(handler, consumer.Config{Name: "push-test"}, noopLogger{}, consumer.WithJournal(journal))
	require.NoError(t, err)

	okAck := func(context.Context, domain.Message) error { return nil }
	lostAck := func(context.Context, domain.Message) error { return errors.New("connection lost") }

	assert.Equal(t, domain.StatusAcked, d.Deliver(context.Background(), domain.Message{ID: "a", Body: []byte("ok")}, okAck))
	assert.Equal(t, domain.StatusHandlerFailed, d.Deliver(context.Background(), domain.Message{ID: "b", Body: []byte("fail")}, okAck))
	assert.Equal(t, domain.StatusAckLost, d.Deliver(context.Background(), domain.Message{ID: "c", Body: []byte("ok")}, lostAck))

	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, []domain.DeliveryStatus{domain.StatusAcked, domain.StatusHandlerFailed, domain.StatusAckLost}, statuses)

	snaps := d.Snapshots()
	require.Len(t, snaps, 1)
	assert.Equal(t, "push-test", snaps[0].Consumer)
	assert.Equal(t, "push", snaps[0].State)
	assert.Equal(t, uint64(3), snaps[0].Fetched)
	assert.Equal(t, uint64(1), snaps[0].Succeeded)
	assert.Equal(t, uint64(1), snaps[0].FailedNoAck)
	assert.Equal(t, uint64(1), snaps[0].AckErrors)
}

func TestDispatcher_ConcurrentCallbacksAreSerialized(t *testing.T) {
	var (
		mu     sync.Mutex
		active int
		peak   int
	)
	handler := ports.HandlerFunc(func(context.Context, domain.Message) (domain.Outcome, error) {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()

		mu.Lock()
		active--
		mu.Unlock()
		return domain.Success, nil
	})

	d, err := push.NewDispatcher(handler, consumer.Config{Name: "push-serial"}, noopLogger{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d.Deliver(context.Background(), domain.Message{ID: string(rune('a' + i))}, func(context.Context, domain.Message) error { return nil })
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, peak)
	assert.Equal(t, uint64(20), d.Snapshots()[0].Succeeded)
}
