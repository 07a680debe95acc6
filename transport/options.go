package transport

import "context"

type Option func(*Options)

type Options struct {
	AccountSid       string
	AuthToken        string
	From             string
	MessagesURL      string
	ConversationsURL string
	Context          context.Context
}

func WithAccountSid(sid string) Option {
	return func(o *Options) {
		o.AccountSid = sid
	}
}

func WithAuthToken(token string) Option {
	return func(o *Options) {
		o.AuthToken = token
	}
}

func WithFrom(from string) Option {
	return func(o *Options) {
		o.From = from
	}
}

func WithMessagesURL(url string) Option {
	return func(o *Options) {
		o.MessagesURL = url
	}
}

func WithConversationsURL(url string) Option {
	return func(o *Options) {
		o.ConversationsURL = url
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		Context: context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
