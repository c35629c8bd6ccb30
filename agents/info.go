package agents

import (
	"context"

	"github.com/sergiobayona/lexi-commerce-sub001/agent"
	"github.com/sergiobayona/lexi-commerce-sub001/session"
	"github.com/sergiobayona/lexi-commerce-sub001/turn"
)

// InfoAgent handles greetings and general questions; it hands off to
// commerce once the user signals an intent to order (spec §8.4 scenario
// 3).
type InfoAgent struct{}

// NewInfoAgent satisfies agent.Factory.
func NewInfoAgent() agent.Agent {
	return InfoAgent{}
}

func (InfoAgent) Handle(_ context.Context, _ turn.Turn, _ session.State, intent string) (agent.Response, error) {
	switch intent {
	case "greeting":
		return agent.Response{Messages: []interface{}{textMessage("¡Hola! ¿En qué puedo ayudarte hoy?")}}, nil
	case "start_order":
		return agent.Response{
			Messages: []interface{}{textMessage("Claro, te paso con el equipo de pedidos.")},
			Baton: &agent.Baton{
				Target:  "commerce",
				Payload: map[string]interface{}{"intent": "start_order"},
			},
		}, nil
	default:
		return agent.Response{Messages: []interface{}{textMessage("¿Podrías contarme un poco más sobre lo que necesitas?")}}, nil
	}
}
