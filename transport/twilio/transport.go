// Package twilio talks to the Twilio Messages and Conversations REST APIs
// directly over HTTP with basic auth and url-encoded forms.
package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/finrelay/concierge/transport"
)

const (
	defaultMessagesURL      = "https://api.twilio.com"
	defaultConversationsURL = "https://conversations.twilio.com/v1"
)

type twilioTransport struct {
	options transport.Options
	client  *http.Client
}

func (t *twilioTransport) Send(ctx context.Context, address string, text string) (string, error) {
	form := url.Values{}
	form.Set("To", whatsappAddress(address))
	form.Set("From", whatsappAddress(t.options.From))
	form.Set("Body", text)

	var rsp struct {
		Sid string `json:"sid"`
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.options.MessagesURL, t.options.AccountSid)
	if err := t.do(ctx, http.MethodPost, endpoint, form, &rsp); err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}

	return rsp.Sid, nil
}

func (t *twilioTransport) SendTemplate(ctx context.Context, address string, templateId string, languageCode string, variables map[string]string) (string, error) {
	form := url.Values{}
	form.Set("To", whatsappAddress(address))
	form.Set("From", whatsappAddress(t.options.From))
	form.Set("ContentSid", templateId)

	if len(variables) > 0 {
		vars, err := json.Marshal(variables)
		if err != nil {
			return "", fmt.Errorf("marshal template variables: %w", err)
		}
		form.Set("ContentVariables", string(vars))
	}

	var rsp struct {
		Sid string `json:"sid"`
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.options.MessagesURL, t.options.AccountSid)
	if err := t.do(ctx, http.MethodPost, endpoint, form, &rsp); err != nil {
		return "", fmt.Errorf("send template %s: %w", templateId, err)
	}

	return rsp.Sid, nil
}

func (t *twilioTransport) LastActivity(ctx context.Context, conversationId string) (time.Time, error) {
	var rsp struct {
		Messages []struct {
			DateCreated string `json:"date_created"`
		} `json:"messages"`
	}

	endpoint := fmt.Sprintf("%s/Conversations/%s/Messages?Order=desc&PageSize=1", t.options.ConversationsURL, conversationId)
	if err := t.do(ctx, http.MethodGet, endpoint, nil, &rsp); err != nil {
		return time.Time{}, fmt.Errorf("fetch conversation %s: %w", conversationId, err)
	}

	if len(rsp.Messages) == 0 {
		return time.Time{}, nil
	}

	ts, err := time.Parse(time.RFC3339, rsp.Messages[0].DateCreated)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse last activity of %s: %w", conversationId, err)
	}

	return ts, nil
}

func (t *twilioTransport) ConversationFor(ctx context.Context, address string) (string, error) {
	var rsp struct {
		Conversations []struct {
			Sid string `json:"sid"`
		} `json:"conversations"`
	}

	endpoint := fmt.Sprintf("%s/Conversations?PageSize=20", t.options.ConversationsURL)
	if err := t.do(ctx, http.MethodGet, endpoint, nil, &rsp); err != nil {
		return "", fmt.Errorf("list conversations: %w", err)
	}

	target := whatsappAddress(address)

	for _, conv := range rsp.Conversations {
		var participants struct {
			Participants []struct {
				MessagingBinding struct {
					Address string `json:"address"`
				} `json:"messaging_binding"`
			} `json:"participants"`
		}

		endpoint := fmt.Sprintf("%s/Conversations/%s/Participants", t.options.ConversationsURL, conv.Sid)
		if err := t.do(ctx, http.MethodGet, endpoint, nil, &participants); err != nil {
			return "", fmt.Errorf("list participants of %s: %w", conv.Sid, err)
		}

		for _, p := range participants.Participants {
			if p.MessagingBinding.Address == target {
				return conv.Sid, nil
			}
		}
	}

	return "", nil
}

func (t *twilioTransport) CreateConversation(ctx context.Context, friendlyName string) (string, error) {
	form := url.Values{}
	form.Set("FriendlyName", friendlyName)

	var rsp struct {
		Sid string `json:"sid"`
	}

	endpoint := fmt.Sprintf("%s/Conversations", t.options.ConversationsURL)
	if err := t.do(ctx, http.MethodPost, endpoint, form, &rsp); err != nil {
		return "", fmt.Errorf("create conversation: %w", err)
	}

	return rsp.Sid, nil
}

func (t *twilioTransport) AddParticipant(ctx context.Context, conversationId string, address string) error {
	form := url.Values{}
	form.Set("MessagingBinding.Address", whatsappAddress(address))
	form.Set("MessagingBinding.ProxyAddress", whatsappAddress(t.options.From))

	endpoint := fmt.Sprintf("%s/Conversations/%s/Participants", t.options.ConversationsURL, conversationId)
	if err := t.do(ctx, http.MethodPost, endpoint, form, nil); err != nil {
		return fmt.Errorf("add participant to %s: %w", conversationId, err)
	}

	return nil
}

func (t *twilioTransport) AddMessage(ctx context.Context, conversationId string, author string, body string) error {
	form := url.Values{}
	form.Set("Author", author)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Conversations/%s/Messages", t.options.ConversationsURL, conversationId)
	if err := t.do(ctx, http.MethodPost, endpoint, form, nil); err != nil {
		return fmt.Errorf("add message to %s: %w", conversationId, err)
	}

	return nil
}

func (t *twilioTransport) do(ctx context.Context, method string, endpoint string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}

	req.SetBasicAuth(t.options.AccountSid, t.options.AuthToken)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	rsp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer rsp.Body.Close()

	if rsp.StatusCode < 200 || rsp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(rsp.Body, 1024))
		return fmt.Errorf("twilio status %d: %s", rsp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(rsp.Body).Decode(out)
}

func whatsappAddress(address string) string {
	if strings.HasPrefix(address, "whatsapp:") {
		return address
	}
	return "whatsapp:" + address
}

func NewTransport(opts ...transport.Option) transport.Transport {
	options := transport.NewOptions(opts...)

	if len(options.MessagesURL) == 0 {
		options.MessagesURL = defaultMessagesURL
	}

	if len(options.ConversationsURL) == 0 {
		options.ConversationsURL = defaultConversationsURL
	}

	return &twilioTransport{
		options: options,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}
