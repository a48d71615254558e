package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func webInstance() Resource {
	return Resource{
		Kind: KindInstance,
		Name: "web",
		ID:   "i-0123456789abcdef0",
		Attributes: map[string]string{
			"public_ip": "203.0.113.10",
		},
	}
}

func TestLoadMissingFileYieldsFreshState(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "stratus.state.json"))
	require.NoError(t, err)

	require.True(t, s.Empty())
	require.Equal(t, Version, s.Version)
	require.Equal(t, int64(0), s.Serial)
	require.NotEmpty(t, s.Lineage)
	require.NotNil(t, s.Outputs)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stratus.state.json")

	s := New()
	s.Put(webInstance())
	s.Outputs["public_ip"] = "203.0.113.10"
	require.NoError(t, Save(path, s))

	loaded, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, s.Lineage, loaded.Lineage)
	require.Equal(t, s.Serial, loaded.Serial)
	require.Equal(t, s.Resources, loaded.Resources)
	require.Equal(t, s.Outputs, loaded.Outputs)
}

func TestSaveBumpsSerialAndKeepsLineage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stratus.state.json")

	s := New()
	lineage := s.Lineage

	require.NoError(t, Save(path, s))
	require.Equal(t, int64(1), s.Serial)

	require.NoError(t, Save(path, s))
	require.Equal(t, int64(2), s.Serial)
	require.Equal(t, lineage, s.Lineage)
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stratus.state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 99}`), 0o644))

	_, err := Load(path)
	require.ErrorContains(t, err, "unsupported state file version 99")
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stratus.state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	require.ErrorContains(t, err, "failed to parse state file")
}

func TestPutGetRemove(t *testing.T) {
	s := New()

	require.Nil(t, s.Get(KindInstance, "web"))

	s.Put(webInstance())
	r := s.Get(KindInstance, "web")
	require.NotNil(t, r)
	require.Equal(t, "i-0123456789abcdef0", r.ID)

	// Same kind and name replaces in place.
	updated := webInstance()
	updated.ID = "i-0fedcba9876543210"
	s.Put(updated)
	require.Len(t, s.Resources, 1)
	require.Equal(t, "i-0fedcba9876543210", s.Get(KindInstance, "web").ID)

	// Kinds namespace the lookup.
	s.Put(Resource{Kind: KindSecurityGroup, Name: "web", ID: "sg-0123456789abcdef0"})
	require.Len(t, s.Resources, 2)
	require.Equal(t, "sg-0123456789abcdef0", s.Get(KindSecurityGroup, "web").ID)

	s.Remove(KindInstance, "web")
	require.Nil(t, s.Get(KindInstance, "web"))
	require.NotNil(t, s.Get(KindSecurityGroup, "web"))

	// Removing something absent is a no-op.
	s.Remove(KindInstance, "web")
	require.Len(t, s.Resources, 1)
}

func TestEmpty(t *testing.T) {
	s := New()
	require.True(t, s.Empty())

	s.Put(webInstance())
	require.False(t, s.Empty())

	s.Remove(KindInstance, "web")
	require.True(t, s.Empty())
}

func TestSaveReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stratus.state.json")

	s := New()
	require.NoError(t, Save(path, s))
	s.Put(webInstance())
	require.NoError(t, Save(path, s))

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded.Resources, 1)
}
