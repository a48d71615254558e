package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/vietdv277/stratus/internal/bundle"
	"github.com/vietdv277/stratus/internal/state"
	"github.com/vietdv277/stratus/pkg/types"
)

func testBundle() *bundle.Bundle {
	keep := true
	return &bundle.Bundle{
		Provider: bundle.Provider{Region: "us-east-1"},
		SecurityGroups: []bundle.SecurityGroup{
			{
				Name:        "web",
				Description: "Allow SSH and HTTP",
				Ingress: []bundle.Rule{
					{FromPort: 22, ToPort: 22, Protocol: "tcp", CIDRBlocks: []string{"0.0.0.0/0"}},
					{FromPort: 80, ToPort: 80, Protocol: "tcp", CIDRBlocks: []string{"0.0.0.0/0"}},
				},
				Egress: []bundle.Rule{
					{FromPort: 0, ToPort: 0, Protocol: "-1", CIDRBlocks: []string{"0.0.0.0/0"}},
				},
			},
		},
		Instances: []bundle.Instance{
			{
				Name:           "web",
				AMI:            "ami-0c55b159cbfafe1f0",
				InstanceType:   "t2.micro",
				KeyName:        "deployer",
				SecurityGroups: []string{"web"},
				RootVolume:     bundle.RootVolume{Size: 20, Type: "gp2", DeleteOnTermination: &keep},
				Tags:           map[string]string{"Name": "web-server"},
			},
		},
		Outputs: []bundle.Output{
			{Name: "public_ip", Instance: "web", Attribute: "public_ip"},
			{Name: "public_dns", Instance: "web", Attribute: "public_dns"},
		},
	}
}

func testEngine(t *testing.T, cloud *fakeCloud, b *bundle.Bundle) *Engine {
	t.Helper()

	statePath := filepath.Join(t.TempDir(), "stratus.state.json")
	s, err := state.Load(statePath)
	require.NoError(t, err)

	return New(cloud, b, s, statePath)
}

func applied(t *testing.T, e *Engine) *Plan {
	t.Helper()

	ctx := context.Background()
	p, err := e.Plan(ctx)
	require.NoError(t, err)
	_, err = e.Apply(ctx, p)
	require.NoError(t, err)
	return p
}

func TestPlanFreshBundle(t *testing.T) {
	e := testEngine(t, newFakeCloud(), testBundle())

	p, err := e.Plan(context.Background())
	require.NoError(t, err)

	require.True(t, p.HasChanges())
	add, change, replace, destroy := p.Counts()
	require.Equal(t, 2, add)
	require.Equal(t, 0, change)
	require.Equal(t, 0, replace)
	require.Equal(t, 0, destroy)
}

func TestApplyCreatesEverything(t *testing.T) {
	cloud := newFakeCloud()
	e := testEngine(t, cloud, testBundle())

	require.Empty(t, e.State().Outputs, "outputs must be empty before apply")

	applied(t, e)

	require.Len(t, cloud.groups, 1)
	require.Len(t, cloud.instances, 1)

	groupRes := e.State().Get(state.KindSecurityGroup, "web")
	require.NotNil(t, groupRes)
	instRes := e.State().Get(state.KindInstance, "web")
	require.NotNil(t, instRes)

	inst := cloud.instances[instRes.ID]
	require.Equal(t, []string{groupRes.ID}, inst.SecurityGroupIDs)

	require.NotEmpty(t, e.State().Outputs["public_ip"])
	require.NotEmpty(t, e.State().Outputs["public_dns"])
	require.Equal(t, inst.PublicIP, e.State().Outputs["public_ip"])
	require.Equal(t, inst.PublicDNS, e.State().Outputs["public_dns"])

	// State reached disk with a bumped serial.
	saved, err := state.Load(e.statePath)
	require.NoError(t, err)
	require.Greater(t, saved.Serial, int64(0))
	require.Equal(t, e.State().Lineage, saved.Lineage)
}

func TestApplyIsIdempotent(t *testing.T) {
	e := testEngine(t, newFakeCloud(), testBundle())
	applied(t, e)

	p, err := e.Plan(context.Background())
	require.NoError(t, err)
	require.False(t, p.HasChanges(), "re-planning an unchanged bundle must be a no-op")
}

func TestTagChangeUpdatesInPlace(t *testing.T) {
	cloud := newFakeCloud()
	b := testBundle()
	e := testEngine(t, cloud, b)
	applied(t, e)

	before := e.State().Get(state.KindInstance, "web").ID

	b.Instances[0].Tags["env"] = "prod"

	p, err := e.Plan(context.Background())
	require.NoError(t, err)

	add, change, replace, destroy := p.Counts()
	require.Equal(t, 0, add)
	require.Equal(t, 1, change)
	require.Equal(t, 0, replace)
	require.Equal(t, 0, destroy)

	_, err = e.Apply(context.Background(), p)
	require.NoError(t, err)

	after := e.State().Get(state.KindInstance, "web")
	require.Equal(t, before, after.ID, "tag changes must not replace the instance")
	require.Equal(t, "prod", cloud.instances[after.ID].Tags["env"])
}

func TestAMIChangeForcesReplace(t *testing.T) {
	cloud := newFakeCloud()
	b := testBundle()
	e := testEngine(t, cloud, b)
	applied(t, e)

	before := e.State().Get(state.KindInstance, "web").ID

	b.Instances[0].AMI = "ami-0123456789abcdef0"

	p, err := e.Plan(context.Background())
	require.NoError(t, err)

	_, _, replace, _ := p.Counts()
	require.Equal(t, 1, replace)

	_, err = e.Apply(context.Background(), p)
	require.NoError(t, err)

	after := e.State().Get(state.KindInstance, "web")
	require.NotEqual(t, before, after.ID)
	require.NotContains(t, cloud.instances, before, "old instance must be terminated")
	require.Equal(t, "ami-0123456789abcdef0", cloud.instances[after.ID].AMI)
}

func TestRuleChangeUpdatesGroupInPlace(t *testing.T) {
	cloud := newFakeCloud()
	b := testBundle()
	e := testEngine(t, cloud, b)
	applied(t, e)

	groupID := e.State().Get(state.KindSecurityGroup, "web").ID

	b.SecurityGroups[0].Ingress = append(b.SecurityGroups[0].Ingress, bundle.Rule{
		FromPort: 443, ToPort: 443, Protocol: "tcp", CIDRBlocks: []string{"0.0.0.0/0"},
	})

	p, err := e.Plan(context.Background())
	require.NoError(t, err)

	add, change, replace, destroy := p.Counts()
	require.Equal(t, 0, add)
	require.Equal(t, 1, change)
	require.Equal(t, 0, replace)
	require.Equal(t, 0, destroy)

	_, err = e.Apply(context.Background(), p)
	require.NoError(t, err)

	require.Equal(t, groupID, e.State().Get(state.KindSecurityGroup, "web").ID)

	want := []types.Rule{
		{FromPort: 22, ToPort: 22, Protocol: "tcp", CIDRBlocks: []string{"0.0.0.0/0"}},
		{FromPort: 80, ToPort: 80, Protocol: "tcp", CIDRBlocks: []string{"0.0.0.0/0"}},
		{FromPort: 443, ToPort: 443, Protocol: "tcp", CIDRBlocks: []string{"0.0.0.0/0"}},
	}
	if diff := cmp.Diff(want, cloud.groups[groupID].Ingress); diff != "" {
		t.Errorf("ingress rules mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupReplacementCascadesToInstance(t *testing.T) {
	cloud := newFakeCloud()
	b := testBundle()
	e := testEngine(t, cloud, b)
	applied(t, e)

	oldGroup := e.State().Get(state.KindSecurityGroup, "web").ID
	oldInstance := e.State().Get(state.KindInstance, "web").ID

	b.SecurityGroups[0].Description = "Allow SSH only"

	p, err := e.Plan(context.Background())
	require.NoError(t, err)

	_, _, replace, _ := p.Counts()
	require.Equal(t, 2, replace, "replacing a group must replace its instances too")

	_, err = e.Apply(context.Background(), p)
	require.NoError(t, err)

	newGroup := e.State().Get(state.KindSecurityGroup, "web").ID
	newInstance := e.State().Get(state.KindInstance, "web").ID
	require.NotEqual(t, oldGroup, newGroup)
	require.NotEqual(t, oldInstance, newInstance)
	require.Equal(t, []string{newGroup}, cloud.instances[newInstance].SecurityGroupIDs)
}

func TestDroppedGroupIsDetachedBeforeDelete(t *testing.T) {
	cloud := newFakeCloud()
	b := testBundle()
	b.SecurityGroups = append(b.SecurityGroups, bundle.SecurityGroup{
		Name:        "extra",
		Description: "Allow HTTPS",
		Ingress: []bundle.Rule{
			{FromPort: 443, ToPort: 443, Protocol: "tcp", CIDRBlocks: []string{"0.0.0.0/0"}},
		},
	})
	b.Instances[0].SecurityGroups = []string{"web", "extra"}
	e := testEngine(t, cloud, b)
	applied(t, e)

	webID := e.State().Get(state.KindSecurityGroup, "web").ID
	extraID := e.State().Get(state.KindSecurityGroup, "extra").ID
	instanceID := e.State().Get(state.KindInstance, "web").ID

	// Drop the extra group while the instance stays declared. The
	// instance must be detached before the group is deleted, or the
	// delete hits a dependency violation.
	b.SecurityGroups = b.SecurityGroups[:1]
	b.Instances[0].SecurityGroups = []string{"web"}

	p, err := e.Plan(context.Background())
	require.NoError(t, err)

	add, change, replace, destroy := p.Counts()
	require.Equal(t, 0, add)
	require.Equal(t, 1, change)
	require.Equal(t, 0, replace)
	require.Equal(t, 1, destroy)

	_, err = e.Apply(context.Background(), p)
	require.NoError(t, err)

	require.Equal(t, instanceID, e.State().Get(state.KindInstance, "web").ID)
	require.Equal(t, []string{webID}, cloud.instances[instanceID].SecurityGroupIDs)
	require.NotContains(t, cloud.groups, extraID)
	require.Nil(t, e.State().Get(state.KindSecurityGroup, "extra"))
}

func TestUndeclaredResourcesAreDeleted(t *testing.T) {
	cloud := newFakeCloud()
	b := testBundle()
	b.Instances = append(b.Instances, bundle.Instance{
		Name:           "worker",
		AMI:            "ami-0c55b159cbfafe1f0",
		InstanceType:   "t2.micro",
		KeyName:        "deployer",
		SecurityGroups: []string{"web"},
		RootVolume:     bundle.RootVolume{Size: 20, Type: "gp2"},
	})
	e := testEngine(t, cloud, b)
	applied(t, e)

	require.Len(t, cloud.instances, 2)

	b.Instances = b.Instances[:1]

	p, err := e.Plan(context.Background())
	require.NoError(t, err)

	_, _, _, destroy := p.Counts()
	require.Equal(t, 1, destroy)

	_, err = e.Apply(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, cloud.instances, 1)
	require.Nil(t, e.State().Get(state.KindInstance, "worker"))
}

func TestOutOfBandDeletionIsRecreated(t *testing.T) {
	cloud := newFakeCloud()
	e := testEngine(t, cloud, testBundle())
	applied(t, e)

	oldID := e.State().Get(state.KindInstance, "web").ID
	delete(cloud.instances, oldID)

	p, err := e.Plan(context.Background())
	require.NoError(t, err)

	add, _, _, _ := p.Counts()
	require.Equal(t, 1, add)

	_, err = e.Apply(context.Background(), p)
	require.NoError(t, err)

	newID := e.State().Get(state.KindInstance, "web").ID
	require.NotEqual(t, oldID, newID)
	require.Contains(t, cloud.instances, newID)
}

func TestMissingKeyPairFailsApply(t *testing.T) {
	cloud := newFakeCloud()
	b := testBundle()
	b.Instances[0].KeyName = "windows"
	e := testEngine(t, cloud, b)

	p, err := e.Plan(context.Background())
	require.NoError(t, err)

	_, err = e.Apply(context.Background(), p)
	require.ErrorContains(t, err, `key pair "windows" does not exist`)

	// The security group was created before the failure and must be
	// tracked so the next apply can pick up where this one stopped.
	require.NotNil(t, e.State().Get(state.KindSecurityGroup, "web"))
}

func TestFailedRuleSyncIsRepairedByNextApply(t *testing.T) {
	cloud := newFakeCloud()
	e := testEngine(t, cloud, testBundle())

	cloud.syncRulesErr = errors.New("rule sync denied")

	p, err := e.Plan(context.Background())
	require.NoError(t, err)
	_, err = e.Apply(context.Background(), p)
	require.ErrorContains(t, err, "rule sync denied")

	// The group exists and must be tracked despite the failure.
	groupRes := e.State().Get(state.KindSecurityGroup, "web")
	require.NotNil(t, groupRes)

	cloud.syncRulesErr = nil
	applied(t, e)

	require.Equal(t, groupRes.ID, e.State().Get(state.KindSecurityGroup, "web").ID)
	require.NotEmpty(t, cloud.groups[groupRes.ID].Ingress)
	require.Len(t, cloud.instances, 1)
}

func TestFailedRuleSyncReportsPersistFailure(t *testing.T) {
	cloud := newFakeCloud()
	cloud.syncRulesErr = errors.New("rule sync denied")

	statePath := filepath.Join(t.TempDir(), "missing", "stratus.state.json")
	e := New(cloud, testBundle(), state.New(), statePath)

	p, err := e.Plan(context.Background())
	require.NoError(t, err)

	_, err = e.Apply(context.Background(), p)
	require.ErrorContains(t, err, "rule sync denied")
	require.ErrorContains(t, err, "failed to create temporary state file")
}

func TestDestroy(t *testing.T) {
	cloud := newFakeCloud()
	e := testEngine(t, cloud, testBundle())
	applied(t, e)

	groupID := e.State().Get(state.KindSecurityGroup, "web").ID
	instanceID := e.State().Get(state.KindInstance, "web").ID

	result, err := e.Destroy(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, result.Destroyed)
	require.Empty(t, cloud.groups)
	require.Empty(t, cloud.instances)
	require.True(t, e.State().Empty())
	require.Empty(t, e.State().Outputs, "outputs must be cleared after destroy")

	require.Equal(t, []string{instanceID, groupID}, cloud.destroyOrder,
		"instances must be terminated before their security groups")
}

func TestDestroyToleratesAlreadyGone(t *testing.T) {
	cloud := newFakeCloud()
	e := testEngine(t, cloud, testBundle())
	applied(t, e)

	for id := range cloud.instances {
		delete(cloud.instances, id)
	}

	_, err := e.Destroy(context.Background())
	require.NoError(t, err)
	require.True(t, e.State().Empty())
}
