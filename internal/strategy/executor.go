// Package strategy executes survey-form interactions through an ordered
// fallback chain. Pages differ in how they accept input: a plain click works
// on most, others need a forced click, a script-dispatched click, keyboard
// focus, or a raw coordinate click. The executor walks the chain until one
// strategy lands, and the knowledge base remembers which one did.
package strategy

import (
	"time"

	"quenito/internal/logging"
	"quenito/internal/types"
)

// Element is one answerable form control. The rod adapter implements it over
// a live page; tests use fakes.
type Element interface {
	// Apply performs one interaction strategy, setting the element to the
	// given value. An error means that strategy failed on this element.
	Apply(strategy types.StrategyName, value string) error
}

// Result describes one Attempt.
type Result struct {
	Success bool
	// Used is the strategy that landed, or "" when all were exhausted.
	Used    types.StrategyName
	Elapsed time.Duration
	// Tried counts strategies attempted, including the successful one.
	Tried int
}

// Executor walks a strategy order over an element.
type Executor struct{}

// New creates an executor.
func New() *Executor {
	return &Executor{}
}

// Attempt tries each strategy in order exactly once until one succeeds.
// A strategy error means that strategy failed, nothing more; the next one
// runs. Exhaustion returns Success=false and Used="".
func (e *Executor) Attempt(el Element, value string, order []types.StrategyName) Result {
	start := time.Now()
	res := Result{}

	for _, strat := range order {
		res.Tried++
		if err := el.Apply(strat, value); err != nil {
			logging.StrategyDebug("strategy %s failed: %v", strat, err)
			continue
		}
		res.Success = true
		res.Used = strat
		res.Elapsed = time.Since(start)
		logging.Strategy("strategy %s succeeded after %d attempt(s)", strat, res.Tried)
		return res
	}

	res.Elapsed = time.Since(start)
	logging.Strategy("all %d strategies exhausted", res.Tried)
	return res
}

// Order returns the strategy order for one attempt: the preferred strategy
// first when one is known, then the remaining defaults with the preferred
// entry removed so nothing runs twice.
func Order(preferred types.StrategyName, hasPreferred bool) []types.StrategyName {
	if !hasPreferred || preferred == "" {
		return types.DefaultStrategyOrder
	}

	order := make([]types.StrategyName, 0, len(types.DefaultStrategyOrder)+1)
	order = append(order, preferred)
	for _, s := range types.DefaultStrategyOrder {
		if s != preferred {
			order = append(order, s)
		}
	}
	return order
}
