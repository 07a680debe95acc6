// Package dispatcher splits outbound messages into transport-sized chunks
// and sends them strictly in order.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/finrelay/concierge/transport"
)

const (
	DefaultMaxChunkLen = 1500
	DefaultPacing      = time.Second
)

// ErrDelivery wraps transport failures. Chunks sent before the failure are
// not retracted; delivery is at-least-partial, not exactly-once.
var ErrDelivery = errors.New("dispatcher: delivery failed")

// Receipt reports the outcome of one dispatch. MessageId is the provider id
// of the last chunk that went out.
type Receipt struct {
	MessageId string
	Chunks    int
	Sent      int
}

type Dispatcher struct {
	transport transport.Transport
	maxLen    int
	pacing    time.Duration
	sleep     func(ctx context.Context, d time.Duration) error

	// Serializes sends per conversation so concurrent runs for the same
	// recipient cannot interleave chunks.
	locks map[string]*sync.Mutex
	mtx   sync.Mutex
}

func (d *Dispatcher) Dispatch(ctx context.Context, conversationId string, address string, text string) (Receipt, error) {
	lock := d.lockFor(conversationId)
	lock.Lock()
	defer lock.Unlock()

	chunks := Split(text, d.maxLen)
	receipt := Receipt{Chunks: len(chunks)}

	for i, chunk := range chunks {
		body := chunk
		if len(chunks) > 1 {
			body = fmt.Sprintf("(%d/%d) %s", i+1, len(chunks), chunk)
		}

		if i > 0 {
			if err := d.sleep(ctx, d.pacing); err != nil {
				return receipt, fmt.Errorf("%w: %v", ErrDelivery, err)
			}
		}

		// Mirror into the conversation log before the transport send so the
		// audit trail never trails delivery.
		if err := d.transport.AddMessage(ctx, conversationId, "system", body); err != nil {
			slog.WarnContext(ctx, "failed to mirror chunk into conversation", "conversation", conversationId, "error", err)
		}

		id, err := d.transport.Send(ctx, address, body)
		if err != nil {
			return receipt, fmt.Errorf("%w: chunk %d/%d: %v", ErrDelivery, i+1, len(chunks), err)
		}

		receipt.MessageId = id
		receipt.Sent = i + 1
	}

	return receipt, nil
}

func (d *Dispatcher) lockFor(conversationId string) *sync.Mutex {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	lock, ok := d.locks[conversationId]
	if !ok {
		lock = &sync.Mutex{}
		d.locks[conversationId] = lock
	}

	return lock
}

// Split breaks text into chunks of at most max runes, cutting after the last
// line break inside the limit when one exists and hard-cutting otherwise.
// Concatenating the chunks reproduces the input exactly.
func Split(text string, max int) []string {
	runes := []rune(text)
	if len(runes) <= max {
		return []string{text}
	}

	var chunks []string
	for len(runes) > max {
		cut := max
		for i := max - 1; i > 0; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}

	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}

	return chunks
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func New(t transport.Transport, maxLen int, pacing time.Duration) *Dispatcher {
	if t == nil {
		panic("transport is required")
	}

	if maxLen <= 0 {
		maxLen = DefaultMaxChunkLen
	}

	if pacing < 0 {
		pacing = DefaultPacing
	}

	return &Dispatcher{
		transport: t,
		maxLen:    maxLen,
		pacing:    pacing,
		sleep:     sleepContext,
		locks:     map[string]*sync.Mutex{},
	}
}
