package agents

import (
	"context"

	"github.com/sergiobayona/lexi-commerce-sub001/agent"
	"github.com/sergiobayona/lexi-commerce-sub001/session"
	"github.com/sergiobayona/lexi-commerce-sub001/turn"
)

// OrderAgent verifies phone-number identity and reports order lookups.
type OrderAgent struct{}

// NewOrderAgent satisfies agent.Factory.
func NewOrderAgent() agent.Agent {
	return OrderAgent{}
}

func (OrderAgent) Handle(_ context.Context, t turn.Turn, s session.State, intent string) (agent.Response, error) {
	switch intent {
	case "verify_order":
		if s.PhoneVerified {
			return agent.Response{
				Messages:   []interface{}{textMessage("Pedido confirmado. Te llegará un mensaje con el resumen.")},
				StatePatch: map[string]interface{}{"order": map[string]interface{}{"verified": true, "verified_at": t.Timestamp}},
			}, nil
		}
		return agent.Response{Messages: []interface{}{textMessage("Antes de confirmar necesito verificar tu número.")}}, nil
	case "track_order":
		return agent.Response{Messages: []interface{}{textMessage("Dame un momento mientras reviso el estado de tu pedido.")}}, nil
	default:
		return agent.Response{Messages: []interface{}{textMessage("¿Quieres verificar o rastrear un pedido?")}}, nil
	}
}
