package commands

import (
	"errors"
	"time"

	"github.com/akidev/akibot/internal/telegram"
)

// ErrPermanent marks failures that a retry cannot fix. The queue completes
// such tasks instead of rescheduling them.
var ErrPermanent = errors.New("permanent failure")

type Command interface {
	Name() string
	Aliases() []string
	Handle(update telegram.Update) error
	Execute(update telegram.Update) error
	GetQueueConfig() QueueConfig
}

type ThrottleConfig struct {
	Period      time.Duration
	Requests    int
	Concurrency int
}

type QueueConfig struct {
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
	Throttle   ThrottleConfig
}
