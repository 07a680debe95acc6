// Package concierge answers customer questions about a financial statement
// over a chat channel. Each inbound message runs one sequential pipeline:
// resolve identity, log inbound, normalize language, embed, retrieve
// account-scoped passages, generate a grounded reply, log outbound, check
// the conversation window, dispatch.
package concierge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/finrelay/concierge/dispatcher"
	"github.com/finrelay/concierge/embedder"
	"github.com/finrelay/concierge/generator"
	"github.com/finrelay/concierge/history"
	"github.com/finrelay/concierge/identity"
	"github.com/finrelay/concierge/retriever"
	"github.com/finrelay/concierge/translator"
	"github.com/finrelay/concierge/transport"
	"github.com/finrelay/concierge/window"
)

// FallbackReply is the only error text a customer ever sees. Internal
// detail goes to the log.
const FallbackReply = "I'm sorry, but there was an error processing your message. Please try again later."

const (
	DefaultThreshold     = 0.6
	DefaultLimit         = 1000
	DefaultMaxContextLen = 48000
)

var (
	ErrEmbedding  = errors.New("concierge: embedding failed")
	ErrRetrieval  = errors.New("concierge: retrieval failed")
	ErrGeneration = errors.New("concierge: generation failed")
)

const responsePolicy = `You are a friendly and helpful customer support representative for a credit card company. Follow these steps precisely:

1. Review the context and query carefully
2. Provide information strictly based on the given statement context
3. If the information is not in the statement, politely explain that you don't have that specific data available. Never invent statement details.

Follow these response guidelines:
- Maintain a professional yet warm tone throughout the conversation
- Use WhatsApp-friendly formatting:
  - *Bold* for important points
  - _Italics_ for emphasis
  - Bullet points (*) for lists
  - Numbers (1.) for step-by-step instructions
  - Inline code for amounts or transaction names
- Keep paragraphs short and easy to read on mobile devices
- Avoid complex formatting not supported by WhatsApp
- Summarize key information at the end of longer responses`

type Status string

const (
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// Result is what the webhook layer reports back to the provider.
type Result struct {
	ResponseText string
	Status       Status
	Window       window.State
}

type Concierge struct {
	resolver   identity.Resolver
	normalizer *translator.Normalizer
	embedder   embedder.Embedder
	retriever  retriever.Retriever
	generator  generator.Generator
	history    history.Store
	transport  transport.Transport
	window     *window.Checker
	dispatcher *dispatcher.Dispatcher

	threshold        float64
	limit            int
	maxContextLen    int
	expiredTemplate  string
	templateLanguage string

	tracer trace.Tracer
}

// HandleInboundMessage is the single entry point for webhook receivers.
// Any step failure collapses to the fallback reply with a failed status;
// the returned error carries the internal cause for the caller's log.
func (c *Concierge) HandleInboundMessage(ctx context.Context, address string, text string) (Result, error) {
	ctx, span := c.tracer.Start(ctx, "HandleInboundMessage")
	defer span.End()

	if len(strings.TrimSpace(text)) == 0 {
		return Result{Status: StatusFailed}, errors.New("message text is required")
	}

	conversationId, err := c.ensureConversation(ctx, address)
	if err != nil {
		return c.fail(ctx, address, err)
	}

	accountId, err := c.resolver.Resolve(ctx, address)
	if err != nil {
		return c.fail(ctx, address, err)
	}

	span.SetAttributes(attribute.String("account.id", accountId))

	// The inbound entry must be visible before anything references it.
	if err := c.history.Append(ctx, accountId, address, text, history.Inbound); err != nil {
		return c.fail(ctx, address, err)
	}

	norm, err := c.normalizer.Normalize(ctx, text)
	if err != nil {
		return c.fail(ctx, address, err)
	}

	vec, err := c.embedder.Embed(ctx, norm.CanonicalText())
	if err != nil {
		return c.fail(ctx, address, fmt.Errorf("%w: %v", ErrEmbedding, err))
	}

	matches, err := c.retriever.Search(ctx, accountId, vec, c.threshold, c.limit)
	if err != nil {
		return c.fail(ctx, address, fmt.Errorf("%w: %v", ErrRetrieval, err))
	}

	contextText := assembleContext(matches, c.maxContextLen)

	answer, err := c.generator.Complete(ctx, systemPrompt(norm), userPrompt(contextText, norm))
	if err != nil {
		return c.fail(ctx, address, fmt.Errorf("%w: %v", ErrGeneration, err))
	}

	if err := c.history.Append(ctx, accountId, address, answer, history.Outbound); err != nil {
		return c.fail(ctx, address, err)
	}

	state, err := c.window.Check(ctx, conversationId)
	if err != nil {
		// Fail closed: an unknown window is treated as expired.
		slog.WarnContext(ctx, "window check failed, treating conversation as expired", "conversation", conversationId, "error", err)
	}

	if state == window.Expired {
		// Outside the window only a pre-approved template may go out; the
		// generated answer is discarded.
		if _, err := c.transport.SendTemplate(ctx, address, c.expiredTemplate, c.templateLanguage, nil); err != nil {
			return c.fail(ctx, address, err)
		}
		return Result{Status: StatusSent, Window: window.Expired}, nil
	}

	if _, err := c.dispatcher.Dispatch(ctx, conversationId, address, answer); err != nil {
		slog.ErrorContext(ctx, "dispatch failed", "conversation", conversationId, "error", err)
		return Result{ResponseText: answer, Status: StatusFailed, Window: window.Open}, err
	}

	return Result{ResponseText: answer, Status: StatusSent, Window: window.Open}, nil
}

// InitiateOutboundNotification starts (or reuses) a conversation with the
// address and sends a pre-approved template, bypassing generation. Used to
// open contact outside any prior window.
func (c *Concierge) InitiateOutboundNotification(ctx context.Context, address string, templateId string, variables map[string]string) (string, error) {
	ctx, span := c.tracer.Start(ctx, "InitiateOutboundNotification")
	defer span.End()

	conversationId, err := c.ensureConversation(ctx, address)
	if err != nil {
		return "", err
	}

	if _, err := c.transport.SendTemplate(ctx, address, templateId, c.templateLanguage, variables); err != nil {
		return "", fmt.Errorf("send notification: %w", err)
	}

	if err := c.transport.AddMessage(ctx, conversationId, "system", "Notification delivered. Customer service is ready to assist with any questions."); err != nil {
		slog.WarnContext(ctx, "failed to mirror notification into conversation", "conversation", conversationId, "error", err)
	}

	return conversationId, nil
}

func (c *Concierge) ensureConversation(ctx context.Context, address string) (string, error) {
	conversationId, err := c.transport.ConversationFor(ctx, address)
	if err != nil {
		return "", fmt.Errorf("find conversation: %w", err)
	}

	if len(conversationId) > 0 {
		return conversationId, nil
	}

	conversationId, err = c.transport.CreateConversation(ctx, fmt.Sprintf("Statement Discussion - %s", address))
	if err != nil {
		return "", fmt.Errorf("create conversation: %w", err)
	}

	if err := c.transport.AddParticipant(ctx, conversationId, address); err != nil {
		return "", fmt.Errorf("add participant: %w", err)
	}

	return conversationId, nil
}

func (c *Concierge) fail(ctx context.Context, address string, cause error) (Result, error) {
	slog.ErrorContext(ctx, "pipeline run failed", "error", cause)

	// Best effort; the run has already failed.
	if _, err := c.transport.Send(ctx, address, FallbackReply); err != nil {
		slog.ErrorContext(ctx, "failed to deliver fallback reply", "error", err)
	}

	return Result{ResponseText: FallbackReply, Status: StatusFailed}, cause
}

// assembleContext joins passage text in ranked order. Truncation happens on
// passage boundaries so the generator never receives a clipped passage.
func assembleContext(matches []retriever.Match, maxLen int) string {
	var sb strings.Builder
	for _, match := range matches {
		next := len(match.Content)
		if sb.Len() > 0 {
			next += 2
		}
		if maxLen > 0 && sb.Len()+next > maxLen {
			break
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(match.Content)
	}
	return sb.String()
}

func systemPrompt(norm translator.Result) string {
	var sb strings.Builder
	sb.WriteString(responsePolicy)
	sb.WriteString("\n\nIMPORTANT LANGUAGE INSTRUCTION: ")

	if norm.IsEnglish {
		sb.WriteString("The original query was in English, so respond in English.")
	} else {
		sb.WriteString(fmt.Sprintf("The original query was in another language (specifically the language of: %q). You MUST respond in that same language, not in English.", norm.OriginalText))
	}

	return sb.String()
}

func userPrompt(contextText string, norm translator.Result) string {
	var sb strings.Builder
	sb.WriteString("Hello! I'm looking at my credit card statement and have a question. Here's the relevant information:\n")
	sb.WriteString("CONTEXT:\n")
	sb.WriteString(contextText)

	if norm.IsEnglish {
		sb.WriteString("\n\nORIGINAL QUERY (English):\n")
		sb.WriteString(norm.OriginalText)
	} else {
		sb.WriteString("\n\nORIGINAL QUERY (Non-English):\n")
		sb.WriteString(norm.OriginalText)
		sb.WriteString("\n\nENGLISH TRANSLATION:\n")
		sb.WriteString(norm.EnglishVersion)
	}

	return sb.String()
}

type Option func(*Concierge)

func WithThreshold(threshold float64) Option {
	return func(c *Concierge) {
		c.threshold = threshold
	}
}

func WithLimit(limit int) Option {
	return func(c *Concierge) {
		c.limit = limit
	}
}

func WithMaxContextLen(n int) Option {
	return func(c *Concierge) {
		c.maxContextLen = n
	}
}

func WithExpiredTemplate(templateId string, languageCode string) Option {
	return func(c *Concierge) {
		c.expiredTemplate = templateId
		c.templateLanguage = languageCode
	}
}

func New(
	resolver identity.Resolver,
	normalizer *translator.Normalizer,
	emb embedder.Embedder,
	ret retriever.Retriever,
	gen generator.Generator,
	hist history.Store,
	tr transport.Transport,
	win *window.Checker,
	disp *dispatcher.Dispatcher,
	opts ...Option,
) *Concierge {
	if resolver == nil {
		panic("resolver is required")
	}

	if normalizer == nil {
		panic("normalizer is required")
	}

	if emb == nil {
		panic("embedder is required")
	}

	if ret == nil {
		panic("retriever is required")
	}

	if gen == nil {
		panic("generator is required")
	}

	if hist == nil {
		panic("history store is required")
	}

	if tr == nil {
		panic("transport is required")
	}

	if win == nil {
		panic("window checker is required")
	}

	if disp == nil {
		panic("dispatcher is required")
	}

	c := &Concierge{
		resolver:         resolver,
		normalizer:       normalizer,
		embedder:         emb,
		retriever:        ret,
		generator:        gen,
		history:          hist,
		transport:        tr,
		window:           win,
		dispatcher:       disp,
		threshold:        DefaultThreshold,
		limit:            DefaultLimit,
		maxContextLen:    DefaultMaxContextLen,
		expiredTemplate:  "conversation_expired",
		templateLanguage: "en",
		tracer:           otel.Tracer("concierge"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}
