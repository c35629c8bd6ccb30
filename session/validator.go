package session

import (
	"fmt"

	"github.com/sergiobayona/lexi-commerce-sub001/core"
)

// Validate enforces the structural invariants a turn may not be processed
// without (spec §4.3): tenant_id and wa_id present, current_lane a member
// of the configured lane set. Deeper agent-specific invariants are each
// agent's own responsibility.
func Validate(s State, lanes map[string]bool) error {
	if s.TenantID == "" {
		return fmt.Errorf("%w: tenant_id is required", core.ErrInvalidState)
	}
	if s.WaID == "" {
		return fmt.Errorf("%w: wa_id is required", core.ErrInvalidState)
	}
	if !lanes[s.CurrentLane] {
		return fmt.Errorf("%w: current_lane %q is not a configured lane", core.ErrInvalidState, s.CurrentLane)
	}
	return nil
}
