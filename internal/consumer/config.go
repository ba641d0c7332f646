package consumer

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Значения по умолчанию (если не заданы в конфиге).
const (
	defaultMaxMessageNums = 10
	defaultWaitDuration   = 20 * time.Second
	defaultInvisibility   = 30 * time.Second
	defaultIdlePollDelay  = time.Second
	defaultAckTimeout     = 5 * time.Second
	defaultFetchSlack     = 5 * time.Second
	defaultBackoffInitial = time.Second
	defaultBackoffMax     = 30 * time.Second
	defaultJournalBuffer  = 256
)

// BackoffConfig — политика задержки после ошибок связи с брокером.
type BackoffConfig struct {
	Kind       string        // fixed|exponential (по умолчанию exponential)
	Initial    time.Duration // fixed: сама задержка; exponential: первая задержка
	Max        time.Duration // потолок для exponential
	Multiplier float64       // множитель для exponential (по умолчанию 2)
	Jitter     bool          // equal-jitter для exponential
}

// Config — настройки одного цикла потребления. Передаётся явно каждому экземпляру.
type Config struct {
	Name                 string        // имя цикла (метки метрик, логи)
	MaxMessageNums       int           // потолок размера батча
	WaitDuration         time.Duration // потолок long-poll
	InvisibilityDuration time.Duration // длина аренды; должна превышать время обработки
	IdlePollDelay        time.Duration // пауза после успешного цикла
	LeaseSafetyMargin    time.Duration // запас: не подтверждаем в последние мгновения аренды
	AckTimeout           time.Duration // таймаут одного Acknowledge
	FetchSlack           time.Duration // надбавка к WaitDuration для таймаута FetchBatch
	JournalBuffer        int           // буфер записей журнала доставок; при переполнении запись теряется
	Backoff              BackoffConfig
}

var errInvalidConfig = errors.New("invalid consumer config")

// withDefaults — нулевые значения заменяются дефолтами; отрицательные остаются для validate.
func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "consumer"
	}
	if c.MaxMessageNums == 0 {
		c.MaxMessageNums = defaultMaxMessageNums
	}
	if c.InvisibilityDuration == 0 {
		c.InvisibilityDuration = defaultInvisibility
	}
	if c.AckTimeout == 0 {
		c.AckTimeout = defaultAckTimeout
	}
	if c.FetchSlack == 0 {
		c.FetchSlack = defaultFetchSlack
	}
	if c.JournalBuffer == 0 {
		c.JournalBuffer = defaultJournalBuffer
	}
	if c.Backoff.Kind == "" {
		c.Backoff.Kind = backoffExponential
	}
	if c.Backoff.Initial == 0 {
		c.Backoff.Initial = defaultBackoffInitial
	}
	if c.Backoff.Max == 0 {
		c.Backoff.Max = defaultBackoffMax
	}
	if c.Backoff.Multiplier == 0 {
		c.Backoff.Multiplier = 2
	}
	return c
}

// DefaultConfig — конфиг со всеми значениями по умолчанию.
func DefaultConfig() Config {
	c := Config{
		WaitDuration:  defaultWaitDuration,
		IdlePollDelay: defaultIdlePollDelay,
		Backoff:       BackoffConfig{Jitter: true},
	}
	return c.withDefaults()
}

func (c Config) validate() error {
	var problems []string

	if c.MaxMessageNums < 1 {
		problems = append(problems, "max message nums must be positive")
	}
	if c.WaitDuration < 0 {
		problems = append(problems, "wait duration must be non-negative")
	}
	if c.InvisibilityDuration <= 0 {
		problems = append(problems, "invisibility duration must be positive")
	}
	if c.IdlePollDelay < 0 {
		problems = append(problems, "idle poll delay must be non-negative")
	}
	if c.LeaseSafetyMargin < 0 || c.LeaseSafetyMargin >= c.InvisibilityDuration {
		problems = append(problems, "lease safety margin must be in [0, invisibility duration)")
	}
	if c.AckTimeout < 0 || c.FetchSlack < 0 {
		problems = append(problems, "ack timeout and fetch slack must be non-negative")
	}
	if c.JournalBuffer < 1 {
		problems = append(problems, "journal buffer must be positive")
	}
	if err := c.Backoff.validate(); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w (%s): %s", errInvalidConfig, c.Name, strings.Join(problems, "; "))
	}
	return nil
}

func (b BackoffConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(b.Kind)) {
	case backoffFixed:
		if b.Initial < 0 {
			return errors.New("fixed backoff delay must be non-negative")
		}
	case backoffExponential:
		if b.Initial <= 0 || b.Max < b.Initial {
			return errors.New("exponential backoff needs 0 < initial <= max")
		}
		if b.Multiplier < 1 {
			return errors.New("exponential backoff multiplier must be >= 1")
		}
	default:
		return fmt.Errorf("unknown backoff kind %q", b.Kind)
	}
	return nil
}

// build — отдельный экземпляр политики на каждый цикл (у exponential свой источник случайности).
func (b BackoffConfig) build() Backoff {
	if strings.EqualFold(strings.TrimSpace(b.Kind), backoffFixed) {
		return FixedBackoff{Delay: b.Initial}
	}
	return &ExponentialBackoff{
		Initial:    b.Initial,
		Max:        b.Max,
		Multiplier: b.Multiplier,
		Jitter:     b.Jitter,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}
