package dispatch

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ryanmello/lilli/pkg/models"
)

// runWaves executes the plan one wave at a time, running the handlers of a
// wave concurrently. Every handler in a wave has all of its in-plan
// dependencies in earlier waves, so it sees the same inputs it would see in
// a sequential run.
//
// Results are reconciled against plan order: when any step fails, the
// earliest failing plan index wins, plan entries before it that have not run
// yet are run sequentially, and outputs at or after the failure are dropped.
// The result therefore matches runSequential for deterministic handlers.
func (d *Dispatcher) runWaves(ctx context.Context, env *turnEnv, res *Result) {
	plan := res.Plan
	index := make(map[string]int, len(plan))
	for i, name := range plan {
		index[name] = i
	}

	steps := make([]Step, len(plan))
	ran := make([]bool, len(plan))
	failIdx := len(plan)

	completedBefore := func(limit int) []models.HandlerOutput {
		var out []models.HandlerOutput
		for i := 0; i < limit; i++ {
			if ran[i] && steps[i].Err == nil {
				out = append(out, *steps[i].Output)
			}
		}
		return out
	}

	for _, wave := range env.reg.Waves(plan) {
		if len(wave) == 1 {
			i := index[wave[0]]
			steps[i] = d.runStep(ctx, env, wave[0], completedBefore(i))
			ran[i] = true
			if steps[i].Err != nil {
				failIdx = i
				break
			}
			continue
		}

		// Inputs are fixed before the wave starts so no goroutine reads
		// results written by its siblings.
		inputs := make([][]models.HandlerOutput, len(wave))
		for j, name := range wave {
			inputs[j] = completedBefore(index[name])
		}

		var g errgroup.Group
		for j, name := range wave {
			i := index[name]
			deps := inputs[j]
			g.Go(func() error {
				steps[i] = d.runStep(ctx, env, name, deps)
				return nil
			})
		}
		_ = g.Wait()
		d.debugLog("[dispatch] wave %v finished", wave)

		for _, name := range wave {
			i := index[name]
			ran[i] = true
			if steps[i].Err != nil && i < failIdx {
				failIdx = i
			}
		}
		if failIdx < len(plan) {
			break
		}
	}

	// Plan entries before the failure may sit in waves that never started.
	for i := 0; i < failIdx && i < len(plan); i++ {
		if ran[i] {
			continue
		}
		steps[i] = d.runStep(ctx, env, plan[i], completedBefore(i))
		ran[i] = true
		if steps[i].Err != nil {
			failIdx = i
		}
	}

	for i := 0; i < len(plan) && i <= failIdx; i++ {
		d.notify(env.sessionID, steps[i])
		if i == failIdx {
			res.Failure = &HandlerFailure{Handler: plan[i], Err: steps[i].Err}
			break
		}
		res.Outputs = append(res.Outputs, *steps[i].Output)
	}
}
