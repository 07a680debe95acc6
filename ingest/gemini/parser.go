// Package gemini parses statement PDFs into plain text with Gemini.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/finrelay/concierge/ingest"
)

const defaultModel = "gemini-1.5-flash"

const extractionPrompt = `Analyze this credit card statement PDF in detail.
Summary: provide the statement period, account number (last 4 digits), and total amount due.
Transactions: list ALL transactions with dates, descriptions, and amounts. Every single transaction must be included regardless of volume; do not summarize or stop due to length. Categorize each transaction and note unusual or high-value ones without omitting any other row.
Balance details: previous balance, payments, new charges, fees, interest, credit limit, available credit, and the credit utilization percentage.
Payment instructions: extract the due date, minimum payment due, and every payment method printed on the statement (bank, account, routing/CLABE/PIX/IBAN identifiers and references) exactly as shown, with no modifications.`

type Option func(*geminiParser)

func WithModel(model string) Option {
	return func(p *geminiParser) {
		p.model = model
	}
}

type geminiParser struct {
	client *genai.Client
	model  string
}

func (p *geminiParser) Parse(ctx context.Context, data []byte, mimeType string) (string, error) {
	model := p.client.GenerativeModel(p.model)

	rsp, err := model.GenerateContent(
		ctx,
		genai.Blob{MIMEType: mimeType, Data: data},
		genai.Text(extractionPrompt),
	)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	var b strings.Builder
	for _, candidate := range rsp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}

	result := b.String()
	if len(strings.TrimSpace(result)) == 0 {
		return "", errors.New("no text from Gemini")
	}

	return result, nil
}

func NewParser(ctx context.Context, apiKey string, opts ...Option) ingest.Parser {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		detail := "failed to initialize gemini parser"
		slog.ErrorContext(ctx, detail, "error", err)
		panic(detail)
	}

	p := &geminiParser{
		client: client,
		model:  defaultModel,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}
