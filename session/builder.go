package session

import (
	"encoding/json"
	"time"
)

// DefaultLocale and DefaultTimezone match the source system's defaults
// (spec §4.2).
const (
	DefaultLocale   = "es-CO"
	DefaultTimezone = "America/Bogota"

	stateVersion = 1
)

// defaults returns a fresh session document with every known slice at its
// zero value, current_lane set to defaultLane.
func defaults(tenantID, waID, defaultLane string) State {
	return State{
		TenantID:    tenantID,
		WaID:        waID,
		Locale:      DefaultLocale,
		Timezone:    DefaultTimezone,
		CurrentLane: defaultLane,
		Flags:       map[string]bool{},
		Turns:       []DialogueEntry{},
		Cart:        Cart{Items: []CartItem{}},
		Order:       Order{},
		Support:     Support{},
		Version:     stateVersion,
	}
}

// NewSession constructs the session created on a (tenant_id, wa_id)'s first
// turn (spec §4.2): defaults overwritten with the Turn's identity and
// locale/timezone.
func NewSession(tenantID, waID, locale, timezone, defaultLane string) State {
	s := defaults(tenantID, waID, defaultLane)
	if locale != "" {
		s.Locale = locale
	}
	if timezone != "" {
		s.Timezone = timezone
	}
	return s
}

// FromJSON hydrates a stored session, deep-merging it over the defaults so
// that missing keys are filled without overwriting what was actually stored
// (spec §4.2). Empty or malformed input degrades to a fresh default session
// rather than failing (spec §8.3).
func FromJSON(raw []byte, tenantID, waID, defaultLane string) (State, error) {
	base := defaults(tenantID, waID, defaultLane)
	baseMap, err := toMap(&base)
	if err != nil {
		return State{}, err
	}

	stored := map[string]interface{}{}
	if len(raw) > 0 {
		// Tolerate malformed JSON: fall back to an empty overlay rather
		// than propagating the parse error, matching the "no crash"
		// boundary behavior (spec §8.3).
		_ = json.Unmarshal(raw, &stored)
	}

	merged := deepMerge(baseMap, stored)

	var s State
	if err := fromMap(merged, &s); err != nil {
		return State{}, err
	}
	return s, nil
}

// deepMerge overlays overlay onto base: maps merge recursively key by key;
// any other value (slice, scalar, or a type mismatch) replaces the base
// value wholesale, per spec §4.2's "sequences and scalars are replaced
// wholesale".
func deepMerge(base, overlay map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}
	for k, overlayVal := range overlay {
		baseVal, exists := merged[k]
		if !exists {
			merged[k] = overlayVal
			continue
		}
		baseMap, baseIsMap := baseVal.(map[string]interface{})
		overlayMap, overlayIsMap := overlayVal.(map[string]interface{})
		if baseIsMap && overlayIsMap {
			merged[k] = deepMerge(baseMap, overlayMap)
		} else {
			merged[k] = overlayVal
		}
	}
	return merged
}

// Touch refreshes UpdatedAt to now, called by the Controller immediately
// before every persist (spec §4.1 step 5's "Persist. Refresh updated_at").
func (s *State) Touch() {
	s.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
}
