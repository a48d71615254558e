package engine

import (
	"fmt"

	"github.com/vietdv277/stratus/internal/state"
)

// resolveOutputs projects declared outputs from recorded instance
// attributes. Output values exist only once the instance does.
func (e *Engine) resolveOutputs() error {
	outputs := make(map[string]string)

	for _, out := range e.bundle.Outputs {
		r := e.state.Get(state.KindInstance, out.Instance)
		if r == nil {
			return fmt.Errorf("output %q: instance %q is not tracked in state", out.Name, out.Instance)
		}

		var value string
		if out.Attribute == "instance_id" {
			value = r.ID
		} else {
			value = r.Attributes[out.Attribute]
		}

		outputs[out.Name] = value
	}

	e.state.Outputs = outputs
	return e.persist()
}
