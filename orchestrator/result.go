// Package orchestrator implements the Controller (spec §4.1): the
// handle_turn algorithm that loads session state, routes and invokes
// agents across a bounded baton chain, and persists the mutated state.
package orchestrator

// Result is returned by Controller.HandleTurn for every turn, including
// duplicates and validation failures: the Controller never raises except
// for infrastructure faults a scheduler should retry (spec §7
// propagation policy).
type Result struct {
	Success  bool
	Error    string
	Lane     string
	Messages []interface{}
}
