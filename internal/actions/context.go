package actions

import (
	"context"

	"github.com/ledastudio/tablehost/backend/internal/model/booking"
)

// TurnContext is the persistable slice of a turn handed to an action. It
// deliberately holds no reference back to the live session, so it can be
// serialized with the turn record without creating a cycle.
type TurnContext struct {
	SessionID string        `json:"sessionId"`
	Tenant    string        `json:"tenant"`
	Language  string        `json:"language"`
	Draft     booking.Draft `json:"draft"`
}

// ExecContext carries a TurnContext through one Execute call. It is
// constructed at call time and discarded afterwards; it must never be stored.
type ExecContext struct {
	Ctx  context.Context
	Turn TurnContext
}

// NewExecContext snapshots the session into a fresh turn context.
func NewExecContext(ctx context.Context, sess *booking.Session) ExecContext {
	return ExecContext{
		Ctx: ctx,
		Turn: TurnContext{
			SessionID: sess.ID,
			Tenant:    sess.Tenant,
			Language:  sess.Language.Code,
			Draft:     sess.Draft,
		},
	}
}
