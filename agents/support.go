package agents

import (
	"context"

	"github.com/sergiobayona/lexi-commerce-sub001/agent"
	"github.com/sergiobayona/lexi-commerce-sub001/session"
	"github.com/sergiobayona/lexi-commerce-sub001/turn"
)

// SupportAgent opens and escalates support cases.
type SupportAgent struct{}

// NewSupportAgent satisfies agent.Factory.
func NewSupportAgent() agent.Agent {
	return SupportAgent{}
}

func (SupportAgent) Handle(_ context.Context, t turn.Turn, s session.State, intent string) (agent.Response, error) {
	switch intent {
	case "open_case":
		return agent.Response{
			Messages: []interface{}{textMessage("He abierto un caso de soporte para ti.")},
			StatePatch: map[string]interface{}{"support": map[string]interface{}{
				"active_case_id": t.MessageID, "case_status": "open", "escalation_level": 0,
			}},
		}, nil
	case "escalate":
		return agent.Response{
			Messages: []interface{}{textMessage("Estoy escalando tu caso a un agente humano.")},
			StatePatch: map[string]interface{}{"support": map[string]interface{}{
				"active_case_id": s.Support.ActiveCaseID, "case_status": "escalated",
				"escalation_level": s.Support.EscalationLevel + 1,
			}},
		}, nil
	default:
		return agent.Response{Messages: []interface{}{textMessage("¿Cómo puedo ayudarte con tu caso de soporte?")}}, nil
	}
}
