package transport

import (
	"context"
	"time"
)

// Transport is the outbound messaging provider. One call, one attempt;
// retries and queuing belong to the provider, not this core.
type Transport interface {
	// Send delivers a free-form message and returns the provider message id.
	Send(ctx context.Context, address string, text string) (string, error)
	// SendTemplate delivers a pre-approved notification template.
	SendTemplate(ctx context.Context, address string, templateId string, languageCode string, variables map[string]string) (string, error)
	// LastActivity returns the timestamp of the most recent message in the
	// conversation. The zero time means no activity has been recorded.
	LastActivity(ctx context.Context, conversationId string) (time.Time, error)
	// ConversationFor finds the conversation bound to an address. Empty id
	// and nil error means none exists yet.
	ConversationFor(ctx context.Context, address string) (string, error)
	CreateConversation(ctx context.Context, friendlyName string) (string, error)
	AddParticipant(ctx context.Context, conversationId string, address string) error
	// AddMessage mirrors a message into the provider's conversation log.
	AddMessage(ctx context.Context, conversationId string, author string, body string) error
}
