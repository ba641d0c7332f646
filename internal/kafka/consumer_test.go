package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/segmentio/kafka-go"

	"github.com/Gunvolt24/leasepull/internal/consumer"
	"github.com/Gunvolt24/leasepull/internal/domain"
	"github.com/Gunvolt24/leasepull/internal/kafka/mocks"
)

type nopLogger struct{}

func (nopLogger) Infof(context.Context, string, ...any)  {}
func (nopLogger) Warnf(context.Context, string, ...any)  {}
func (nopLogger) Errorf(context.Context, string, ...any) {}

var testReaderConfig = kafka.ReaderConfig{Topic: "delivery-journal", GroupID: "g1", Brokers: []string{"b:9092"}}

// runAsync запускает Consumer.Run в отдельной горутине и возвращает канал с ошибкой.
func runAsync(ctx context.Context, c *Consumer) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()
	return errCh
}

func newTestConsumer(r reader, s recordSaver) *Consumer {
	return &Consumer{
		reader: r, saver: s, log: nopLogger{},
		processTimeout: 30 * time.Millisecond,
		backoff:        consumer.FixedBackoff{Delay: 5 * time.Millisecond},
	}
}

func recordValue(t *testing.T, rec domain.DeliveryRecord) []byte {
	t.Helper()
	raw, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

// blockUntilCancel — второй fetch ждёт отмены контекста.
func blockUntilCancel(r *mocks.Mockreader) {
	r.EXPECT().FetchMessage(gomock.Any()).
		DoAndReturn(func(ctx context.Context) (kafka.Message, error) {
			<-ctx.Done()
			return kafka.Message{}, ctx.Err()
		})
}

func stopAndWait(t *testing.T, cancel context.CancelFunc, errCh <-chan error) {
	t.Helper()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("want context.Canceled, got %v", err)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for Run to stop")
	}
}

// Успешное сохранение + коммит
func TestRun_OK_Commits(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := mocks.NewMockreader(ctrl)
	s := mocks.NewMockrecordSaver(ctrl)

	r.EXPECT().Config().Return(testReaderConfig).AnyTimes()
	value := recordValue(t, domain.DeliveryRecord{MessageID: "m1", Status: domain.StatusAcked, Attempt: 1})
	gomock.InOrder(
		r.EXPECT().FetchMessage(gomock.Any()).Return(kafka.Message{Offset: 1, Value: value}, nil),
		s.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, rec domain.DeliveryRecord) error {
				if rec.MessageID != "m1" || rec.Status != domain.StatusAcked || rec.Attempt != 1 {
					return fmt.Errorf("unexpected record %+v", rec)
				}
				return nil
			}),
		r.EXPECT().CommitMessages(gomock.Any(), gomock.Any()).Return(nil),
	)
	blockUntilCancel(r)

	ctx, cancel := context.WithCancel(context.Background())
	stopAndWait(t, cancel, runAsync(ctx, newTestConsumer(r, s)))
}

// message_id берётся из ключа, если его нет в теле
func TestRun_KeyUsedAsMessageID(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := mocks.NewMockreader(ctrl)
	s := mocks.NewMockrecordSaver(ctrl)

	r.EXPECT().Config().Return(testReaderConfig).AnyTimes()
	value := recordValue(t, domain.DeliveryRecord{Status: domain.StatusHandlerFailed, Attempt: 2})
	r.EXPECT().FetchMessage(gomock.Any()).Return(kafka.Message{Offset: 4, Key: []byte("from-key"), Value: value}, nil)

	var gotID atomic.Value
	s.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, rec domain.DeliveryRecord) error {
			gotID.Store(rec.MessageID)
			return nil
		})
	r.EXPECT().CommitMessages(gomock.Any(), gomock.Any()).Return(nil)
	blockUntilCancel(r)

	ctx, cancel := context.WithCancel(context.Background())
	stopAndWait(t, cancel, runAsync(ctx, newTestConsumer(r, s)))

	if id, _ := gotID.Load().(string); id != "from-key" {
		t.Fatalf("want message_id from key, got %q", id)
	}
}

// Не-JSON => коммитим без сохранения (чтобы не ретраить мусор)
func TestRun_InvalidJSON_Commits(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := mocks.NewMockreader(ctrl)
	s := mocks.NewMockrecordSaver(ctrl)

	r.EXPECT().Config().Return(testReaderConfig).AnyTimes()
	r.EXPECT().FetchMessage(gomock.Any()).Return(kafka.Message{Offset: 7, Value: []byte("{bad")}, nil)
	s.EXPECT().Record(gomock.Any(), gomock.Any()).Times(0)
	r.EXPECT().CommitMessages(gomock.Any(), gomock.Any()).Return(nil)
	blockUntilCancel(r)

	ctx, cancel := context.WithCancel(context.Background())
	stopAndWait(t, cancel, runAsync(ctx, newTestConsumer(r, s)))
}

// Хранилище отвергло запись как невалидную => тоже коммитим
func TestRun_RejectedRecord_Commits(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := mocks.NewMockreader(ctrl)
	s := mocks.NewMockrecordSaver(ctrl)

	r.EXPECT().Config().Return(testReaderConfig).AnyTimes()
	value := recordValue(t, domain.DeliveryRecord{MessageID: "m2", Status: domain.StatusAckLost})
	r.EXPECT().FetchMessage(gomock.Any()).Return(kafka.Message{Offset: 8, Value: value}, nil)
	s.EXPECT().Record(gomock.Any(), gomock.Any()).Return(fmt.Errorf("check: %w", domain.ErrInvalidRecord))
	r.EXPECT().CommitMessages(gomock.Any(), gomock.Any()).Return(nil)
	blockUntilCancel(r)

	ctx, cancel := context.WithCancel(context.Background())
	stopAndWait(t, cancel, runAsync(ctx, newTestConsumer(r, s)))
}

// Временная ошибка => повтор той же записи, коммит только после успеха
func TestRun_TemporaryFailure_RetriesSameRecord(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := mocks.NewMockreader(ctrl)
	s := mocks.NewMockrecordSaver(ctrl)

	r.EXPECT().Config().Return(testReaderConfig).AnyTimes()
	value := recordValue(t, domain.DeliveryRecord{MessageID: "m3", Status: domain.StatusAcked})
	gomock.InOrder(
		r.EXPECT().FetchMessage(gomock.Any()).Return(kafka.Message{Offset: 2, Value: value}, nil),
		s.EXPECT().Record(gomock.Any(), gomock.Any()).Return(errors.New("db down")).Times(2),
		s.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil),
		r.EXPECT().CommitMessages(gomock.Any(), gomock.Any()).Return(nil),
	)
	blockUntilCancel(r)

	ctx, cancel := context.WithCancel(context.Background())
	stopAndWait(t, cancel, runAsync(ctx, newTestConsumer(r, s)))
}

// Хранилище недоступно до остановки => НЕ коммитим
func TestRun_TemporaryFailure_NoCommitOnStop(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := mocks.NewMockreader(ctrl)
	s := mocks.NewMockrecordSaver(ctrl)

	r.EXPECT().Config().Return(testReaderConfig).AnyTimes()
	value := recordValue(t, domain.DeliveryRecord{MessageID: "m4", Status: domain.StatusAcked})
	r.EXPECT().FetchMessage(gomock.Any()).Return(kafka.Message{Offset: 3, Value: value}, nil)
	s.EXPECT().Record(gomock.Any(), gomock.Any()).Return(errors.New("db down")).MinTimes(1)
	// Никаких r.EXPECT().CommitMessages(...) специально НЕ ставим:
	// если Consumer по ошибке его вызовет — тест упадёт как "unexpected call".

	ctx, cancel := context.WithCancel(context.Background())
	stopAndWait(t, cancel, runAsync(ctx, newTestConsumer(r, s)))
}

// Ошибки FetchMessage ретраятся; по отмене контекста — корректный выход
func TestRun_FetchError_RetryThenStopOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := mocks.NewMockreader(ctrl)
	s := mocks.NewMockrecordSaver(ctrl)

	r.EXPECT().Config().Return(testReaderConfig).AnyTimes()
	r.EXPECT().FetchMessage(gomock.Any()).
		Return(kafka.Message{}, errors.New("broker error")).
		MinTimes(2)

	c := newTestConsumer(r, s)

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	if err := c.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want DeadlineExceeded, got %v", err)
	}
}

// CommitMessages вернул ошибку — получаем предупреждение; цикл живёт дальше
func TestRun_CommitWarnOnly(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := mocks.NewMockreader(ctrl)
	s := mocks.NewMockrecordSaver(ctrl)

	r.EXPECT().Config().Return(testReaderConfig).AnyTimes()
	value := recordValue(t, domain.DeliveryRecord{MessageID: "m5", Status: domain.StatusAcked})
	r.EXPECT().FetchMessage(gomock.Any()).Return(kafka.Message{Offset: 5, Value: value}, nil)
	s.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil)
	r.EXPECT().CommitMessages(gomock.Any(), gomock.Any()).Return(errors.New("temporary"))
	blockUntilCancel(r)

	ctx, cancel := context.WithCancel(context.Background())
	stopAndWait(t, cancel, runAsync(ctx, newTestConsumer(r, s)))
}

// Close() прокидывает вызов в reader.Close() один раз
func TestClose_DelegatesToReaderOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := mocks.NewMockreader(ctrl)
	s := mocks.NewMockrecordSaver(ctrl)

	r.EXPECT().Close().Return(nil).Times(1)

	c := newTestConsumer(r, s)
	if err := c.Close(); err != nil {
		t.Fatalf("expected nil from Close, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close must be a no-op, got %v", err)
	}
}
