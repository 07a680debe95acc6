package identity

import (
	"context"
	"errors"
)

// ErrNotFound means no account owns any representation of the address.
var ErrNotFound = errors.New("identity: no account for address")

type Resolver interface {
	Resolve(ctx context.Context, address string) (string, error)
}
