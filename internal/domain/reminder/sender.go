package reminder

import (
	"context"
	"errors"
)

// Variable names passed to a Sender.
const (
	VarEventID    = "event_id"
	VarEventTitle = "event_title"
	VarDate       = "occurrence_date"
)

// ErrUnsupportedAddress is returned by a Sender that cannot deliver to an address scheme.
var ErrUnsupportedAddress = errors.New("unsupported recipient address")

// Sender delivers one reminder. Message composition and transport belong to the
// implementation; a returned error is recorded as a failed attempt.
type Sender interface {
	Send(ctx context.Context, kind TemplateKind, address string, vars map[string]string) error
}
