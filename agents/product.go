package agents

import (
	"context"

	"github.com/sergiobayona/lexi-commerce-sub001/agent"
	"github.com/sergiobayona/lexi-commerce-sub001/session"
	"github.com/sergiobayona/lexi-commerce-sub001/turn"
)

// ProductAgent answers catalog questions (price, availability,
// description) without mutating the cart.
type ProductAgent struct{}

// NewProductAgent satisfies agent.Factory.
func NewProductAgent() agent.Agent {
	return ProductAgent{}
}

func (ProductAgent) Handle(_ context.Context, _ turn.Turn, _ session.State, intent string) (agent.Response, error) {
	switch intent {
	case "product_question":
		return agent.Response{Messages: []interface{}{textMessage("Déjame revisar esa referencia en el catálogo.")}}, nil
	default:
		return agent.Response{Messages: []interface{}{textMessage("¿Sobre qué producto quieres saber más?")}}, nil
	}
}
