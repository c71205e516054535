// Package buildtargets runs named build-preparation targets in dependency
// order. Each target declares the targets it depends on; running a target
// runs its dependencies first, each at most once per run.
package buildtargets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrUnknownTarget   = errors.New("unknown target")
	ErrCycle           = errors.New("target dependency cycle")
	ErrDuplicateTarget = errors.New("duplicate target")
)

// Func is the body of a target.
type Func func(ctx context.Context, tc *Context) error

// Target is a named unit of build preparation.
type Target struct {
	Name        string
	Description string
	DependsOn   []string
	Run         Func
}

// Status is the outcome of one target within a run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Result records what happened to one target.
type Result struct {
	Target   string
	Status   Status
	Duration time.Duration
	Err      error
}

// Registry holds targets by name. Lookups are case-insensitive.
type Registry struct {
	targets map[string]Target
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{targets: map[string]Target{}}
}

// Register adds a target. Dependencies may name targets registered later.
func (r *Registry) Register(t Target) error {
	key := targetKey(t.Name)
	if key == "" {
		return errors.New("target name is required")
	}
	if _, exists := r.targets[key]; exists {
		return fmt.Errorf("%w %q", ErrDuplicateTarget, t.Name)
	}
	r.targets[key] = t
	r.order = append(r.order, key)
	return nil
}

// Targets returns the registered targets in registration order.
func (r *Registry) Targets() []Target {
	out := make([]Target, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.targets[key])
	}
	return out
}

// Lookup returns the target with the given name.
func (r *Registry) Lookup(name string) (Target, bool) {
	t, ok := r.targets[targetKey(name)]
	return t, ok
}

// Plan returns the targets needed to run name, dependencies first, in the
// order they are declared.
func (r *Registry) Plan(name string) ([]Target, error) {
	var (
		plan      []Target
		permanent = map[string]bool{}
		temporary = map[string]bool{}
		stack     []string
	)

	var visit func(name string) error
	visit = func(name string) error {
		key := targetKey(name)
		t, ok := r.targets[key]
		if !ok {
			if len(stack) == 0 {
				return fmt.Errorf("%w %q", ErrUnknownTarget, name)
			}
			return fmt.Errorf("%w %q (required by %s)", ErrUnknownTarget, name, stack[len(stack)-1])
		}
		if permanent[key] {
			return nil
		}
		if temporary[key] {
			return fmt.Errorf("%w: %s -> %s", ErrCycle, strings.Join(stack, " -> "), t.Name)
		}

		temporary[key] = true
		stack = append(stack, t.Name)
		for _, dep := range t.DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		temporary[key] = false
		permanent[key] = true
		plan = append(plan, t)
		return nil
	}

	if err := visit(name); err != nil {
		return nil, err
	}
	return plan, nil
}

// Run executes name and its dependencies. It stops at the first failure;
// targets after it are reported as skipped. The returned error wraps the
// failing target's error.
func (r *Registry) Run(ctx context.Context, tc *Context, name string) ([]Result, error) {
	plan, err := r.Plan(name)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(plan))
	var failure error
	for _, t := range plan {
		if failure != nil {
			results = append(results, Result{Target: t.Name, Status: StatusSkipped})
			continue
		}
		if err := ctx.Err(); err != nil {
			failure = err
			results = append(results, Result{Target: t.Name, Status: StatusSkipped})
			continue
		}

		tc.infof("[%s] starting", t.Name)
		started := time.Now()
		var runErr error
		if t.Run != nil {
			runErr = t.Run(ctx, tc)
		}
		res := Result{Target: t.Name, Status: StatusSucceeded, Duration: time.Since(started)}
		if runErr != nil {
			res.Status = StatusFailed
			res.Err = runErr
			failure = fmt.Errorf("target %s: %w", t.Name, runErr)
			tc.infof("[%s] failed: %v", t.Name, runErr)
		} else {
			tc.infof("[%s] done in %s", t.Name, res.Duration.Round(time.Millisecond))
		}
		results = append(results, res)
	}
	return results, failure
}

func targetKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
