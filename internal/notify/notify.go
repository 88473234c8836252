// Package notify delivers verification codes and login links over SMS and email.
// Each channel has its own circuit breaker and every delivery runs under a timeout.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Channel identifies a delivery medium.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Message is one outbound notification. Secret is the code or token the
// message carries; providers that template it themselves (SMS OTP routes) use
// it instead of Body.
type Message struct {
	Channel Channel
	To      string
	Subject string
	Body    string
	Secret  string
}

// Sender delivers a message over one channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

var (
	// ErrNoSender is returned when no sender is registered for the channel.
	ErrNoSender = errors.New("notify: no sender for channel")
	// ErrCircuitOpen is returned while a channel's breaker rejects deliveries.
	ErrCircuitOpen = errors.New("notify: provider temporarily unavailable")
)

// BreakerConfig configures the per-channel circuit breakers.
type BreakerConfig struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

// Dispatcher routes messages to the sender registered for their channel.
type Dispatcher struct {
	logger  *zap.Logger
	timeout time.Duration
	cfg     BreakerConfig

	mu       sync.RWMutex
	senders  map[Channel]Sender
	breakers map[Channel]*gobreaker.CircuitBreaker
}

// NewDispatcher returns a Dispatcher bounding each delivery by timeout.
func NewDispatcher(logger *zap.Logger, timeout time.Duration, cfg BreakerConfig) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	return &Dispatcher{
		logger:   logger,
		timeout:  timeout,
		cfg:      cfg,
		senders:  make(map[Channel]Sender),
		breakers: make(map[Channel]*gobreaker.CircuitBreaker),
	}
}

// Register sets the sender for ch, replacing any previous one.
func (d *Dispatcher) Register(ch Channel, s Sender) {
	st := gobreaker.Settings{
		Name:        "notify-" + string(ch),
		MaxRequests: 1,
		Timeout:     d.cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= d.cfg.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			d.logger.Warn("circuit breaker state",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.senders[ch] = s
	d.breakers[ch] = gobreaker.NewCircuitBreaker(st)
}

// Send delivers msg through its channel's sender.
func (d *Dispatcher) Send(ctx context.Context, msg Message) error {
	d.mu.RLock()
	s, ok := d.senders[msg.Channel]
	cb := d.breakers[msg.Channel]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSender, msg.Channel)
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	_, err := cb.Execute(func() (interface{}, error) {
		return nil, s.Send(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrCircuitOpen, msg.Channel)
	}
	return err
}
