package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Resource kinds tracked in state.
const (
	KindSecurityGroup = "security_group"
	KindInstance      = "instance"
)

// Version is the current state file format version.
const Version = 1

// State is a snapshot of the resources stratus manages, mapping
// declared names to cloud resource IDs and recorded attributes.
type State struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// Serial is incremented on every write. It is used to detect
	// potentially conflicting updates.
	Serial int64 `json:"serial"`

	// Lineage is assigned on first write and never changes afterwards.
	Lineage string `json:"lineage"`

	// Resources tracks every resource created from the bundle.
	Resources []Resource `json:"resources"`

	// Outputs holds resolved output values, populated after apply.
	Outputs map[string]string `json:"outputs,omitempty"`
}

// Resource is one tracked cloud resource.
type Resource struct {
	Kind       string            `json:"kind"`
	Name       string            `json:"name"`
	ID         string            `json:"id"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// New returns an empty state with a fresh lineage.
func New() *State {
	return &State{
		Version: Version,
		Lineage: uuid.NewString(),
		Outputs: make(map[string]string),
	}
}

// Load reads a state file. A missing file yields a fresh empty state.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}

	if s.Version != Version {
		return nil, fmt.Errorf("unsupported state file version %d", s.Version)
	}
	if s.Outputs == nil {
		s.Outputs = make(map[string]string)
	}

	return &s, nil
}

// Save writes the state atomically, bumping the serial.
func Save(path string, s *State) error {
	s.Version = Version
	s.Serial++
	if s.Lineage == "" {
		s.Lineage = uuid.NewString()
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".stratus-state-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	return nil
}

// Get returns the tracked resource with the given kind and name, or nil.
func (s *State) Get(kind, name string) *Resource {
	for i := range s.Resources {
		if s.Resources[i].Kind == kind && s.Resources[i].Name == name {
			return &s.Resources[i]
		}
	}
	return nil
}

// Put inserts or replaces a tracked resource.
func (s *State) Put(r Resource) {
	for i := range s.Resources {
		if s.Resources[i].Kind == r.Kind && s.Resources[i].Name == r.Name {
			s.Resources[i] = r
			return
		}
	}
	s.Resources = append(s.Resources, r)
}

// Remove drops a tracked resource.
func (s *State) Remove(kind, name string) {
	for i := range s.Resources {
		if s.Resources[i].Kind == kind && s.Resources[i].Name == name {
			s.Resources = append(s.Resources[:i], s.Resources[i+1:]...)
			return
		}
	}
}

// Empty reports whether the state tracks no resources.
func (s *State) Empty() bool {
	return len(s.Resources) == 0
}
