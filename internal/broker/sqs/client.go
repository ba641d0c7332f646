// Package sqs — BrokerClient поверх Amazon SQS: аренда = VisibilityTimeout, ack = DeleteMessage.
package sqs

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"

	"github.com/Gunvolt24/leasepull/internal/domain"
	"github.com/Gunvolt24/leasepull/internal/ports"
)

var _ ports.BrokerClient = (*Client)(nil)

// Ограничения API SQS.
const (
	maxBatch       = 10
	maxWaitSeconds = 20
)

// Имена атрибутов сообщения, которые переносятся в Tag/Keys.
const (
	AttrTag  = "tag"
	AttrKeys = "keys"
)

// Коды ошибок API, означающие, что доставка больше не принадлежит нам.
var ackRejectCodes = map[string]struct{}{
	"ReceiptHandleIsInvalid": {},
	"InvalidParameterValue":  {}, // "The receipt handle has expired"
	"MessageNotInflight":     {},
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Config — параметры очереди.
type Config struct {
	QueueURL     string
	Invisibility time.Duration // VisibilityTimeout для ReceiveMessage
}

type Client struct {
	api         sqsAPI
	queueURL    string
	queueURLPtr *string
	topic       string
	visibility  int32
}

// New — клиент поверх готового sqs.Client (или фейка в тестах).
func New(api sqsAPI, cfg Config) (*Client, error) {
	if api == nil {
		return nil, errors.New("sqs: client is required")
	}
	if cfg.QueueURL == "" {
		return nil, errors.New("sqs: queue url is required")
	}
	if cfg.Invisibility <= 0 {
		return nil, errors.New("sqs: invisibility must be positive")
	}

	c := &Client{
		api:        api,
		queueURL:   cfg.QueueURL,
		topic:      queueName(cfg.QueueURL),
		visibility: int32(max(1, cfg.Invisibility/time.Second)),
	}
	c.queueURLPtr = &c.queueURL
	return c, nil
}

// FetchBatch — ReceiveMessage с long-poll. Лимиты SQS (10 сообщений, 20 секунд) применяются молча.
func (c *Client) FetchBatch(ctx context.Context, maxMessageNums int, waitDuration time.Duration) (domain.Batch, error) {
	out, err := c.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              c.queueURLPtr,
		MaxNumberOfMessages:   int32(min(max(maxMessageNums, 1), maxBatch)),
		WaitTimeSeconds:       int32(min(max(waitDuration/time.Second, 0), maxWaitSeconds)),
		VisibilityTimeout:     c.visibility,
		MessageAttributeNames: []string{"All"},
		MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{
			sqstypes.MessageSystemAttributeNameApproximateReceiveCount,
			sqstypes.MessageSystemAttributeNameSentTimestamp,
		},
	})
	if err != nil {
		return nil, domain.Connectivity("sqs receive", err)
	}

	batch := make(domain.Batch, 0, len(out.Messages))
	for i := range out.Messages {
		batch = append(batch, c.toDomain(&out.Messages[i]))
	}
	return batch, nil
}

// Acknowledge — DeleteMessage по receipt handle конкретной доставки.
func (c *Client) Acknowledge(ctx context.Context, msg domain.Message) error {
	handle := msg.Handle()
	_, err := c.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      c.queueURLPtr,
		ReceiptHandle: &handle,
	})
	if err == nil {
		return nil
	}
	if isAckRejected(err) {
		return domain.AckRejected(msg.ID, err)
	}
	return domain.Connectivity("sqs delete", err)
}

func isAckRejected(err error) bool {
	var invalid *sqstypes.ReceiptHandleIsInvalid
	if errors.As(err, &invalid) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		_, ok := ackRejectCodes[apiErr.ErrorCode()]
		return ok
	}
	return false
}

func (c *Client) toDomain(m *sqstypes.Message) domain.Message {
	msg := domain.Message{
		ID:            aws.ToString(m.MessageId),
		ReceiptHandle: aws.ToString(m.ReceiptHandle),
		Topic:         c.topic,
		Body:          []byte(aws.ToString(m.Body)),
	}

	if v, ok := m.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			msg.DeliveryAttempt = n
		}
	}
	if v, ok := m.Attributes[string(sqstypes.MessageSystemAttributeNameSentTimestamp)]; ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			msg.BornAt = time.UnixMilli(ms).UTC()
		}
	}

	for name, attr := range m.MessageAttributes {
		val := aws.ToString(attr.StringValue)
		switch name {
		case AttrTag:
			msg.Tag = val
		case AttrKeys:
			msg.Keys = splitKeys(val)
		default:
			if attr.StringValue == nil {
				continue
			}
			if msg.Properties == nil {
				msg.Properties = make(map[string]string)
			}
			msg.Properties[name] = val
		}
	}
	return msg
}

func splitKeys(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// queueName — последний сегмент URL очереди.
func queueName(url string) string {
	if i := strings.LastIndex(url, "/"); i >= 0 && i < len(url)-1 {
		return url[i+1:]
	}
	return url
}
