//go:generate go run go.uber.org/mock/mockgen -source=gateway.go -destination=pushmock/gateway.go -package=pushmock

// Package push delivers notifications to device tokens through an external provider.
package push

import (
	"context"

	"github.com/webitel/im-realtime-service/internal/domain/model"
)

type Status int

const (
	Success Status = iota
	TransientFailure
	PermanentInvalid
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case TransientFailure:
		return "transient_failure"
	case PermanentInvalid:
		return "permanent_invalid"
	}
	return "unknown"
}

// TokenOutcome is the provider's verdict for one token of a batch.
type TokenOutcome struct {
	Token  string
	Status Status
	Reason string
}

// Request is one multicast call. len(Tokens) never exceeds MaxBatch.
type Request struct {
	Tokens   []string
	Title    string
	Body     string
	Data     map[string]string
	Priority model.Priority
}

// Gateway is the push provider contract.
//
// SendBulk returns one outcome per token on a completed call. A call-level
// error means no token was attempted; it wraps model.ErrTransientDelivery
// when a later attempt may succeed.
type Gateway interface {
	SendBulk(ctx context.Context, req Request) ([]TokenOutcome, error)
	MaxBatch() int
}
