package router

import "github.com/sergiobayona/lexi-commerce-sub001/session"

// summarize builds the compact StateSummary the LLMClassifier receives,
// per §4.5's "compact state summary (identity, current_lane, boolean
// address_present, cart_items_count, commerce_state, etc.)".
func summarize(s session.State) StateSummary {
	_, addressPresent := s.Extras["address"]
	return StateSummary{
		TenantID:        s.TenantID,
		WaID:            s.WaID,
		CurrentLane:     s.CurrentLane,
		AddressPresent:  addressPresent,
		CartItemsCount:  len(s.Cart.Items),
		CommerceState:   s.CommerceState,
		PhoneVerified:   s.PhoneVerified,
		SupportCaseOpen: s.Support.ActiveCaseID != "",
	}
}
