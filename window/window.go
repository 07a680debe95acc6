// Package window decides whether a conversation still accepts free-form
// replies. The state is derived from the provider's last-activity timestamp
// on every outbound attempt; nothing is persisted, so missed updates cannot
// leave it stuck.
package window

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finrelay/concierge/transport"
)

// DefaultWindow is the messaging-policy deadline for free-form replies.
const DefaultWindow = 24 * time.Hour

// ErrCheck means the last-activity lookup itself failed. Callers fall back
// to Expired, the safer messaging-policy default.
var ErrCheck = errors.New("window: check failed")

type State int

const (
	Open State = iota
	Expired
)

func (s State) String() string {
	if s == Open {
		return "open"
	}
	return "expired"
}

type Checker struct {
	transport transport.Transport
	window    time.Duration
	now       func() time.Time
}

// Check returns Open iff the conversation's most recent message is within
// the window. A conversation with no recorded activity is Expired.
func (c *Checker) Check(ctx context.Context, conversationId string) (State, error) {
	last, err := c.transport.LastActivity(ctx, conversationId)
	if err != nil {
		return Expired, fmt.Errorf("%w: %v", ErrCheck, err)
	}

	if last.IsZero() {
		return Expired, nil
	}

	if c.now().Sub(last) <= c.window {
		return Open, nil
	}

	return Expired, nil
}

func NewChecker(t transport.Transport, window time.Duration) *Checker {
	if t == nil {
		panic("transport is required")
	}

	if window <= 0 {
		window = DefaultWindow
	}

	return &Checker{
		transport: t,
		window:    window,
		now:       time.Now,
	}
}
