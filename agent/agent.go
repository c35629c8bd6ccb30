// Package agent defines the Agent contract, the Baton handoff type, and
// the Lane Registry that resolves a lane identifier to an Agent instance
// (spec §3.5, §3.6, §4.6).
package agent

import (
	"context"

	"github.com/sergiobayona/lexi-commerce-sub001/session"
	"github.com/sergiobayona/lexi-commerce-sub001/turn"
)

// Agent is the contract every lane implementation satisfies. Agents must
// not write directly to the session store; all persistence is the
// Controller's responsibility (§4.6).
type Agent interface {
	Handle(ctx context.Context, t turn.Turn, s session.State, intent string) (Response, error)
}

// Response is the immutable outcome of Agent.Handle (spec §3.5):
// zero or more outbound messages, a flat state_patch to merge into
// session state, and an optional Baton to hand off to another lane.
type Response struct {
	Messages   []interface{}
	StatePatch map[string]interface{}
	Baton      *Baton
}

// Baton requests a handoff to another lane (spec §3.5, §3.7). Payload is
// opaque to the Controller except for the reserved "carry_state" key,
// which is shallow-merged into session state before the next hop, and the
// "intent"/"confidence"/"reasons" keys the Controller reads when
// synthesizing the next RouterDecision without calling the Router again.
type Baton struct {
	Target  string
	Payload map[string]interface{}
}
