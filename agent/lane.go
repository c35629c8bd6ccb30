package agent

// Factory constructs an Agent for a lane. Kept separate from the Lane
// struct so the YAML-sourced configuration can stay data-only while
// factories are registered from Go code at process start.
type Factory func() Agent

// Lane is one entry in the configured lane set (spec §3.6): an
// identifier, a human-readable description, an optional default marker,
// and the factory that builds its Agent.
type Lane struct {
	ID          string
	Description string
	IsDefault   bool
	NewAgent    Factory
}

// laneDoc is the YAML shape a lane table is authored in; NewAgent is
// resolved separately by BuildRegistry since functions cannot be
// expressed in YAML.
type laneDoc struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	IsDefault   bool   `yaml:"is_default,omitempty"`
}

// lanesDoc is the top-level shape of the embedded lane configuration
// resource (spec §4.6: "Lanes are sourced from a configuration
// resource").
type lanesDoc struct {
	Lanes []laneDoc `yaml:"lanes"`
}
