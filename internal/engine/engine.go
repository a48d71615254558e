// Package engine reconciles a declared bundle against live cloud state.
// It computes a plan by diffing desired resources against what actually
// exists, then executes that plan: security groups before the instances
// that reference them, and the reverse on destroy.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/vietdv277/stratus/internal/bundle"
	"github.com/vietdv277/stratus/internal/state"
	"github.com/vietdv277/stratus/pkg/provider"
	"github.com/vietdv277/stratus/pkg/types"
)

// Engine drives reconciliation for one bundle against one state file.
type Engine struct {
	cloud     provider.CloudProvider
	bundle    *bundle.Bundle
	state     *state.State
	statePath string
}

// New creates an engine for the given provider, bundle, and state. The
// state is persisted to statePath after every successful step, so a
// failed apply still tracks everything it created.
func New(cloud provider.CloudProvider, b *bundle.Bundle, s *state.State, statePath string) *Engine {
	return &Engine{
		cloud:     cloud,
		bundle:    b,
		state:     s,
		statePath: statePath,
	}
}

// persist writes the working state to disk.
func (e *Engine) persist() error {
	return state.Save(e.statePath, e.state)
}

// State returns the engine's working state.
func (e *Engine) State() *state.State {
	return e.state
}

// snapshot holds the refreshed view of every tracked resource, keyed by
// declared name. Resources that disappeared out-of-band are absent.
type snapshot struct {
	groups    map[string]*types.SecurityGroup
	instances map[string]*types.Instance
}

// refresh describes every tracked resource. Resources that were deleted
// out-of-band are dropped from the working state and left out of the
// snapshot, so they plan as creates, matching the engine's view to
// reality before diffing. The cleaned state only hits disk once apply
// persists it.
func (e *Engine) refresh(ctx context.Context) (*snapshot, error) {
	snap := &snapshot{
		groups:    make(map[string]*types.SecurityGroup),
		instances: make(map[string]*types.Instance),
	}

	tracked := append([]state.Resource(nil), e.state.Resources...)
	for _, r := range tracked {
		switch r.Kind {
		case state.KindSecurityGroup:
			live, err := e.cloud.SecurityGroups().Get(ctx, r.ID)
			if err != nil {
				if errors.Is(err, provider.ErrNotFound) {
					e.state.Remove(r.Kind, r.Name)
					continue
				}
				return nil, fmt.Errorf("failed to refresh security group %q: %w", r.Name, err)
			}
			snap.groups[r.Name] = live

		case state.KindInstance:
			live, err := e.cloud.Instances().Get(ctx, r.ID)
			if err != nil {
				if errors.Is(err, provider.ErrNotFound) {
					e.state.Remove(r.Kind, r.Name)
					continue
				}
				return nil, fmt.Errorf("failed to refresh instance %q: %w", r.Name, err)
			}
			snap.instances[r.Name] = live

		default:
			return nil, fmt.Errorf("state tracks unknown resource kind %q", r.Kind)
		}
	}

	return snap, nil
}
