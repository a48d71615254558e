package engine

import (
	"context"

	"github.com/vietdv277/stratus/internal/state"
)

// DestroyResult summarizes a teardown.
type DestroyResult struct {
	Destroyed int
}

// Destroy tears down every resource the state tracks, instances first
// so attached security groups can be deleted. Resources that are
// already gone are dropped from state without error. Outputs are
// cleared once nothing remains.
func (e *Engine) Destroy(ctx context.Context) (*DestroyResult, error) {
	result := &DestroyResult{}

	instances := e.resourcesOfKind(state.KindInstance)
	for _, r := range instances {
		if err := e.cloud.Instances().Terminate(ctx, r.ID); err != nil {
			return result, err
		}
		e.state.Remove(state.KindInstance, r.Name)
		if err := e.persist(); err != nil {
			return result, err
		}
		result.Destroyed++
	}

	groups := e.resourcesOfKind(state.KindSecurityGroup)
	for _, r := range groups {
		if err := e.cloud.SecurityGroups().Delete(ctx, r.ID); err != nil {
			return result, err
		}
		e.state.Remove(state.KindSecurityGroup, r.Name)
		if err := e.persist(); err != nil {
			return result, err
		}
		result.Destroyed++
	}

	e.state.Outputs = make(map[string]string)
	if err := e.persist(); err != nil {
		return result, err
	}

	return result, nil
}

// resourcesOfKind copies the tracked resources of one kind so removal
// during iteration is safe.
func (e *Engine) resourcesOfKind(kind string) []state.Resource {
	var out []state.Resource
	for _, r := range e.state.Resources {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}
