package history

import "context"

type Direction int

const (
	Inbound Direction = iota
	Outbound
)

// Store is the append-only chat audit log. Entries are never mutated or
// deleted and partial pipeline failures are not rolled back.
type Store interface {
	Append(ctx context.Context, accountId string, address string, text string, direction Direction) error
}
