// Package orchestrator runs conversation turns for many sessions.
//
// Each turn goes through four stages:
//   - Classification: the classifier picks a primary handler, optional
//     secondaries, entities and per-handler sub-queries
//   - Dispatch: the required-dependency closure runs in topological order,
//     each handler seeing the outputs of the handlers it depends on
//   - Synthesis: outputs are composed into one reply, reconciling
//     conflicting fields and flagging partial results
//   - Recording: the turn is appended to the session's bounded window,
//     remembered fields become attributes, and the snapshot is persisted
//
// Turns of one session are serialized; different sessions run concurrently.
//
// Example usage:
//
//	reg, _ := registry.Build(catalog.Build(completer))
//	orch, err := orchestrator.New(orchestrator.RequiredConfig{
//		Registry:  reg,
//		Completer: completer,
//	}, orchestrator.WithSnapshotStore(store))
//	resp, err := orch.HandleTurn(ctx, "session-1", "Do you have roses?")
package orchestrator
