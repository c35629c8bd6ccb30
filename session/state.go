// Package session implements the State Contract, State Builder, State
// Validator, and Session Store adapter (spec §3.2, §4.2, §4.3, §6.1): the
// per-(tenant,user) conversational state the Controller loads, mutates, and
// persists once per turn.
//
// The source system represented state as a dynamically shaped mapping; per
// the redesign note in spec §9 this codifies it as a tagged record with
// explicit fields for every known slice (identity, dialogue, cart, order,
// support, flags) plus an `Extras` escape hatch for agent-specific keys that
// don't fit a known slice, so a state_patch can still add ad hoc data
// without the whole document degrading back into `map[string]interface{}`.
package session

import "encoding/json"

// DialogueEntry is one element of State.Turns (spec §3.3): either a user
// message or an assistant reply. Role discriminates which fields apply.
type DialogueEntry struct {
	Role      string        `json:"role"`
	MessageID string        `json:"message_id,omitempty"`
	Text      string        `json:"text,omitempty"`
	Payload   interface{}   `json:"payload,omitempty"`
	Lane      string        `json:"lane,omitempty"`
	Messages  []interface{} `json:"messages,omitempty"`
	Timestamp string        `json:"timestamp"`
}

// NewUserEntry builds the dialogue entry appended when the Controller
// records the inbound turn (spec §4.1 step 4).
func NewUserEntry(messageID, text string, payload interface{}, timestamp string) DialogueEntry {
	return DialogueEntry{
		Role:      "user",
		MessageID: messageID,
		Text:      text,
		Payload:   payload,
		Timestamp: timestamp,
	}
}

// NewAssistantEntry builds the dialogue entry appended after an agent runs
// (spec §4.1 step 5).
func NewAssistantEntry(lane string, messages []interface{}, timestamp string) DialogueEntry {
	return DialogueEntry{
		Role:      "assistant",
		Lane:      lane,
		Messages:  messages,
		Timestamp: timestamp,
	}
}

// CartItem is one line item in the commerce cart slice.
type CartItem struct {
	SKU      string `json:"sku"`
	Name     string `json:"name,omitempty"`
	Quantity int    `json:"quantity"`
	PriceCents int64 `json:"price_cents"`
}

// Cart is the commerce slice of State (spec §3.2).
type Cart struct {
	Items         []CartItem `json:"items"`
	SubtotalCents int64      `json:"subtotal_cents"`
	Currency      string     `json:"currency,omitempty"`
}

// Order is the order/verification slice of State (spec §3.2).
type Order struct {
	Verified      bool                     `json:"verified"`
	VerifiedAt    string                   `json:"verified_at,omitempty"`
	LastLookup    map[string]interface{}   `json:"last_lookup,omitempty"`
	LookupHistory []map[string]interface{} `json:"lookup_history,omitempty"`
}

// Support is the support-case slice of State (spec §3.2).
type Support struct {
	ActiveCaseID    string                   `json:"active_case_id,omitempty"`
	CaseStatus      string                   `json:"case_status,omitempty"`
	EscalationLevel int                      `json:"escalation_level"`
	CaseHistory     []map[string]interface{} `json:"case_history,omitempty"`
}

// State is the full per-session document (spec §3.2), serialized as a
// single flat JSON object — the layout spec §9 codifies over the source's
// competing nested shape.
type State struct {
	TenantID       string `json:"tenant_id"`
	WaID           string `json:"wa_id"`
	Locale         string `json:"locale"`
	Timezone       string `json:"timezone"`
	CurrentLane    string `json:"current_lane"`
	CustomerID     string `json:"customer_id,omitempty"`
	PhoneVerified  bool   `json:"phone_verified"`
	LanguageLocked bool   `json:"language_locked"`

	Flags map[string]bool `json:"flags"`

	Turns         []DialogueEntry `json:"turns"`
	LastUserMsgID string          `json:"last_user_msg_id,omitempty"`

	Cart          Cart                   `json:"cart"`
	CommerceState string                 `json:"commerce_state,omitempty"`
	LastQuote     map[string]interface{} `json:"last_quote,omitempty"`

	Order   Order   `json:"order"`
	Support Support `json:"support"`

	LastTool  map[string]interface{} `json:"last_tool,omitempty"`
	UpdatedAt string                 `json:"updated_at,omitempty"`

	// Version supports the migration escape hatch spec §9 envisions but
	// leaves inactive; see migrations.go.
	Version int `json:"version"`

	// Extras holds agent state_patch keys that don't belong to a known
	// slice, so agents can carry small bits of lane-specific state without
	// widening the core contract.
	Extras map[string]interface{} `json:"extras,omitempty"`
}

// ApplyPatch shallow-merges patch into s at the top level (spec §4.1 step
// 5's "Apply patch" / §8.2's "applying an empty state_patch is a no-op").
// Known top-level keys (tenant_id, cart, order, ...) overwrite the
// corresponding field wholesale; unrecognized keys land in Extras.
func (s *State) ApplyPatch(patch map[string]interface{}) error {
	if len(patch) == 0 {
		return nil
	}

	current, err := toMap(s)
	if err != nil {
		return err
	}
	extras, _ := current["extras"].(map[string]interface{})
	if extras == nil {
		extras = map[string]interface{}{}
	}

	known := knownTopLevelKeys()
	for k, v := range patch {
		if known[k] {
			current[k] = v
		} else {
			extras[k] = v
		}
	}
	if len(extras) > 0 {
		current["extras"] = extras
	}

	return fromMap(current, s)
}

func knownTopLevelKeys() map[string]bool {
	return map[string]bool{
		"tenant_id": true, "wa_id": true, "locale": true, "timezone": true,
		"current_lane": true, "customer_id": true, "phone_verified": true,
		"language_locked": true, "flags": true, "turns": true,
		"last_user_msg_id": true, "cart": true, "commerce_state": true,
		"last_quote": true, "order": true, "support": true, "last_tool": true,
		"updated_at": true, "version": true, "extras": true,
	}
}

func toMap(s *State) (map[string]interface{}, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	m := map[string]interface{}{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func fromMap(m map[string]interface{}, s *State) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	var next State
	if err := json.Unmarshal(raw, &next); err != nil {
		return err
	}
	*s = next
	return nil
}
