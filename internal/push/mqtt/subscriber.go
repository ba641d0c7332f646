// Package mqtt — push-адаптер: подписка MQTT (QoS 1, ручной ack) поверх push.Dispatcher.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/Gunvolt24/leasepull/internal/domain"
	"github.com/Gunvolt24/leasepull/internal/ports"
	"github.com/Gunvolt24/leasepull/internal/push"
)

// deliverer — то, что нужно подписке от диспетчера.
type deliverer interface {
	Deliver(ctx context.Context, msg domain.Message, ack push.AckFunc) domain.DeliveryStatus
}

type Config struct {
	Broker           string // tcp://host:1883
	ClientID         string
	Topic            string
	QoS              byte
	ConnectTimeout   time.Duration
	SubscribeTimeout time.Duration
	DisconnectQuiet  time.Duration
}

// Subscriber — получает сообщения подписки и передаёт их диспетчеру.
// Подтверждение (PUBACK) отправляется только при исходе acked; иначе брокер
// доставит сообщение повторно после переподключения сессии.
type Subscriber struct {
	cfg    Config
	client paho.Client
	disp   deliverer
	log    ports.Logger
	ctx    context.Context
}

func NewSubscriber(cfg Config, disp deliverer, log ports.Logger) (*Subscriber, error) {
	if cfg.Broker == "" || cfg.Topic == "" {
		return nil, errors.New("mqtt: broker and topic are required")
	}
	if disp == nil || log == nil {
		return nil, errors.New("mqtt: dispatcher and logger are required")
	}
	if cfg.QoS == 0 {
		cfg.QoS = 1
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "leasepull-" + uuid.NewString()[:8]
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.SubscribeTimeout <= 0 {
		cfg.SubscribeTimeout = 10 * time.Second
	}
	if cfg.DisconnectQuiet <= 0 {
		cfg.DisconnectQuiet = 250 * time.Millisecond
	}

	return &Subscriber{cfg: cfg, disp: disp, log: log, ctx: context.Background()}, nil
}

// Start — подключение и подписка. ctx задаёт логовый контекст обработчиков.
func (s *Subscriber) Start(ctx context.Context) error {
	s.ctx = ctx

	opts := paho.NewClientOptions()
	opts.AddBroker(s.cfg.Broker)
	opts.SetClientID(s.cfg.ClientID)
	opts.SetConnectTimeout(s.cfg.ConnectTimeout)
	opts.SetCleanSession(false) // неподтверждённые QoS1 доставляются повторно
	opts.SetAutoReconnect(true)
	opts.SetResumeSubs(true)
	opts.SetOrderMatters(true)
	opts.SetAutoAckDisabled(true)

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		if err != nil {
			s.log.Warnf(ctx, "mqtt connection lost: %v", err)
		}
	})
	opts.SetOnConnectHandler(func(_ paho.Client) {
		s.log.Infof(ctx, "mqtt connected broker=%s", s.cfg.Broker)
	})

	s.client = paho.NewClient(opts)
	token := s.client.Connect()
	if !token.WaitTimeout(s.cfg.ConnectTimeout) {
		return domain.Connectivity("mqtt connect", errors.New("timeout"))
	}
	if err := token.Error(); err != nil {
		return domain.Connectivity("mqtt connect", err)
	}

	sub := s.client.Subscribe(s.cfg.Topic, s.cfg.QoS, s.onMessage)
	if !sub.WaitTimeout(s.cfg.SubscribeTimeout) {
		return domain.Connectivity("mqtt subscribe", errors.New("timeout"))
	}
	if err := sub.Error(); err != nil {
		return domain.Connectivity("mqtt subscribe", err)
	}

	s.log.Infof(ctx, "mqtt subscribed topic=%s qos=%d", s.cfg.Topic, s.cfg.QoS)
	return nil
}

// Stop — отписка и отключение.
func (s *Subscriber) Stop() {
	if s.client == nil || !s.client.IsConnected() {
		return
	}
	s.client.Unsubscribe(s.cfg.Topic).WaitTimeout(s.cfg.SubscribeTimeout)
	s.client.Disconnect(uint(s.cfg.DisconnectQuiet / time.Millisecond))
}

func (s *Subscriber) onMessage(_ paho.Client, m paho.Message) {
	msg := toDomain(m)
	status := s.disp.Deliver(s.ctx, msg, func(context.Context, domain.Message) error {
		m.Ack()
		return nil
	})
	if status != domain.StatusAcked {
		s.log.Warnf(s.ctx, "mqtt message not acked topic=%s packet=%d status=%s", m.Topic(), m.MessageID(), status)
	}
}

// toDomain — у MQTT нет идентификатора сообщения, стабильного между доставками:
// packet id переиспользуется, поэтому ID генерируется на каждую доставку.
func toDomain(m paho.Message) domain.Message {
	attempt := 1
	if m.Duplicate() {
		attempt = 2
	}
	return domain.Message{
		ID:              uuid.NewString(),
		ReceiptHandle:   fmt.Sprintf("%s#%d", m.Topic(), m.MessageID()),
		Topic:           m.Topic(),
		Body:            m.Payload(),
		DeliveryAttempt: attempt,
		Properties: map[string]string{
			"qos":      strconv.Itoa(int(m.Qos())),
			"retained": strconv.FormatBool(m.Retained()),
		},
	}
}
