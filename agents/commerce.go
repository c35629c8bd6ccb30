package agents

import (
	"context"
	"fmt"

	"github.com/sergiobayona/lexi-commerce-sub001/agent"
	"github.com/sergiobayona/lexi-commerce-sub001/session"
	"github.com/sergiobayona/lexi-commerce-sub001/turn"
)

// CommerceAgent drives the cart-building flow and, at checkout with a
// non-empty cart, hands off to order verification.
type CommerceAgent struct{}

// NewCommerceAgent satisfies agent.Factory.
func NewCommerceAgent() agent.Agent {
	return CommerceAgent{}
}

func (CommerceAgent) Handle(_ context.Context, _ turn.Turn, s session.State, intent string) (agent.Response, error) {
	switch intent {
	case "start_order":
		return agent.Response{
			Messages:   []interface{}{textMessage("Perfecto, ¿qué producto te gustaría agregar al pedido?")},
			StatePatch: map[string]interface{}{"commerce_state": "browsing"},
		}, nil
	case "add_to_cart":
		return agent.Response{
			Messages:   []interface{}{textMessage("Agregado al carrito.")},
			StatePatch: map[string]interface{}{"commerce_state": "cart_building"},
		}, nil
	case "checkout":
		if len(s.Cart.Items) == 0 {
			return agent.Response{Messages: []interface{}{textMessage("Tu carrito está vacío todavía.")}}, nil
		}
		return agent.Response{
			Messages: []interface{}{textMessage(fmt.Sprintf("Tu pedido tiene %d artículo(s). Te paso con verificación.", len(s.Cart.Items)))},
			Baton: &agent.Baton{
				Target:  "order",
				Payload: map[string]interface{}{"intent": "verify_order"},
			},
		}, nil
	default:
		return agent.Response{Messages: []interface{}{textMessage("¿En qué puedo ayudarte con tu pedido?")}}, nil
	}
}
