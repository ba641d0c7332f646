package domain

import "time"

// Message — одна доставка сообщения от брокера. Значение неизменяемое:
// движок не модифицирует поля после получения.
type Message struct {
	ID              string            // идентификатор сообщения, назначенный брокером
	ReceiptHandle   string            // дескриптор конкретной доставки (для ack); пусто — используется ID
	Topic           string            // топик/очередь, из которой получено сообщение
	Tag             string            // необязательный тег (одно значение)
	Keys            []string          // ключи для внешнего поиска/дедупликации, порядок сохраняется
	Properties      map[string]string // метаданные, движком не интерпретируются
	Body            []byte            // тело сообщения (непрозрачные байты)
	DeliveryAttempt int               // номер попытки доставки, начиная с 1; 0 — неизвестно
	BornAt          time.Time         // момент публикации, если брокер его отдаёт
}

// Handle — дескриптор для подтверждения: ReceiptHandle, а при его отсутствии ID.
func (m Message) Handle() string {
	if m.ReceiptHandle != "" {
		return m.ReceiptHandle
	}
	return m.ID
}

// Batch — упорядоченный результат одного FetchBatch; может быть пустым.
type Batch []Message

// IDs — идентификаторы сообщений батча в исходном порядке.
func (b Batch) IDs() []string {
	ids := make([]string, 0, len(b))
	for i := range b {
		ids = append(ids, b[i].ID)
	}
	return ids
}

// Outcome — результат обработчика.
type Outcome int

const (
	// Failure — обработка не удалась; сообщение не подтверждается.
	Failure Outcome = iota
	// Success — обработка завершена; сообщение подтверждается.
	Success
)

func (o Outcome) String() string {
	if o == Success {
		return "success"
	}
	return "failure"
}
