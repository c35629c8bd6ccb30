package agent

import (
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/sergiobayona/lexi-commerce-sub001/core"
)

// Registry resolves a lane identifier to an Agent (spec §4.6).
type Registry struct {
	mu          sync.RWMutex
	lanes       map[string]Lane
	defaultLane string
}

// LaneDescriptor is the data-only portion of a Lane entry as sourced from
// the YAML configuration resource, before a Factory has been attached.
type LaneDescriptor struct {
	ID          string
	Description string
	IsDefault   bool
}

// ParseLaneConfig parses the embedded YAML lane table (spec §4.6) into
// descriptors. It does not validate uniqueness or the default marker;
// that happens once factories are attached and the Registry is built, so
// a single authoritative check covers both YAML-sourced and
// programmatically-added lanes.
func ParseLaneConfig(raw []byte) ([]LaneDescriptor, error) {
	var doc lanesDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, core.NewFrameworkError("agent.parse_lane_config", "ConfigurationError", fmt.Errorf("%w: %v", core.ErrConfigurationError, err))
	}
	descriptors := make([]LaneDescriptor, 0, len(doc.Lanes))
	for _, l := range doc.Lanes {
		descriptors = append(descriptors, LaneDescriptor{ID: l.ID, Description: l.Description, IsDefault: l.IsDefault})
	}
	return descriptors, nil
}

// NewRegistry builds a Registry from a fully assembled lane table.
// Exactly one lane must be marked default; more than one, zero, or a
// duplicate identifier is a ConfigurationError (spec §3.6, §4.6).
func NewRegistry(lanes []Lane) (*Registry, error) {
	table := make(map[string]Lane, len(lanes))
	defaultLane := ""
	defaultCount := 0

	for _, l := range lanes {
		if l.ID == "" {
			return nil, core.NewFrameworkError("agent.registry.new", "ConfigurationError", fmt.Errorf("%w: lane with empty id", core.ErrConfigurationError))
		}
		if _, exists := table[l.ID]; exists {
			return nil, core.NewFrameworkError("agent.registry.new", "ConfigurationError", fmt.Errorf("%w: duplicate lane id %q", core.ErrConfigurationError, l.ID)).WithID(l.ID)
		}
		if l.NewAgent == nil {
			return nil, core.NewFrameworkError("agent.registry.new", "ConfigurationError", fmt.Errorf("%w: lane %q has no agent factory", core.ErrConfigurationError, l.ID)).WithID(l.ID)
		}
		table[l.ID] = l
		if l.IsDefault {
			defaultCount++
			defaultLane = l.ID
		}
	}

	if defaultCount != 1 {
		return nil, core.NewFrameworkError("agent.registry.new", "ConfigurationError", fmt.Errorf("%w: exactly one lane must be marked default, found %d", core.ErrConfigurationError, defaultCount))
	}

	return &Registry{lanes: table, defaultLane: defaultLane}, nil
}

// BuildRegistry combines the YAML-sourced lane descriptors with a map of
// identifier -> Factory supplied by process wiring code (functions can't
// be expressed in YAML), then validates and builds the Registry.
func BuildRegistry(raw []byte, factories map[string]Factory) (*Registry, error) {
	descriptors, err := ParseLaneConfig(raw)
	if err != nil {
		return nil, err
	}

	lanes := make([]Lane, 0, len(descriptors))
	for _, d := range descriptors {
		f, ok := factories[d.ID]
		if !ok {
			return nil, core.NewFrameworkError("agent.build_registry", "ConfigurationError", fmt.Errorf("%w: lane %q has no registered factory", core.ErrConfigurationError, d.ID)).WithID(d.ID)
		}
		lanes = append(lanes, Lane{ID: d.ID, Description: d.Description, IsDefault: d.IsDefault, NewAgent: f})
	}
	return NewRegistry(lanes)
}

// ForLane resolves lane to its Agent.
func (r *Registry) ForLane(lane string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.lanes[lane]
	if !ok {
		return nil, core.NewFrameworkError("agent.registry.for_lane", "LaneNotFound", core.ErrLaneNotFound).WithID(lane)
	}
	return l.NewAgent(), nil
}

// DefaultLane returns the identifier of the lane marked default.
func (r *Registry) DefaultLane() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultLane
}

// Lanes returns the configured lane set as a membership map, the shape
// the Router and Validator consume (spec §3.6, §4.5).
func (r *Registry) Lanes() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]bool, len(r.lanes))
	for id := range r.lanes {
		out[id] = true
	}
	return out
}

// LaneIDs returns the configured lane identifiers, sorted.
func (r *Registry) LaneIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.lanes))
	for id := range r.lanes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
