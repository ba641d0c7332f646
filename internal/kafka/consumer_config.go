package kafka

import (
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// ConsumerConfig — настройки чтения топика журнала доставок.
type ConsumerConfig struct {
	Brokers     []string
	Topic       string
	GroupID     string
	StartOffset string        // first|last, всё прочее = last
	MaxWait     time.Duration // ожидание новых данных в одном fetch; 0 = дефолт kafka-go

	ProcessTimeout time.Duration // таймаут одной записи в хранилище
	RetryInitial   time.Duration
	RetryMax       time.Duration
}

// ReaderConfig — kafka.Reader группы с ручным коммитом: оффсет двигается только после сохранения.
func (c *ConsumerConfig) ReaderConfig() kafka.ReaderConfig {
	rc := kafka.ReaderConfig{
		Brokers:        c.Brokers,
		GroupID:        c.GroupID,
		Topic:          c.Topic,
		CommitInterval: 0,
		StartOffset:    kafka.LastOffset,
	}
	if strings.EqualFold(strings.TrimSpace(c.StartOffset), "first") {
		rc.StartOffset = kafka.FirstOffset
	}
	if c.MaxWait > 0 {
		rc.MaxWait = c.MaxWait
	}
	return rc
}
