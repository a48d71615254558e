package bundle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/vietdv277/stratus/pkg/types"
)

const sampleBundle = `provider:
  region: us-east-1
  profile: sandbox

security_groups:
  - name: web
    description: Allow SSH and HTTP
    ingress:
      - from_port: 22
        to_port: 22
        protocol: tcp
        cidr_blocks: ["0.0.0.0/0"]
      - from_port: 80
        to_port: 80
        protocol: tcp
        cidr_blocks: ["0.0.0.0/0"]
    egress:
      - from_port: 0
        to_port: 0
        protocol: "-1"
        cidr_blocks: ["0.0.0.0/0"]

instances:
  - name: web
    ami: ami-0c55b159cbfafe1f0
    instance_type: t2.micro
    key_name: deployer
    security_groups: [web]
    root_volume:
      size: 20
      type: gp2
    tags:
      env: dev

outputs:
  - name: public_ip
    instance: web
    attribute: public_ip
  - name: public_dns
    instance: web
    attribute: public_dns
`

func writeBundle(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stratus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	b, err := Load(writeBundle(t, sampleBundle))
	require.NoError(t, err)

	require.Equal(t, "us-east-1", b.Provider.Region)
	require.Equal(t, "sandbox", b.Provider.Profile)

	require.Len(t, b.SecurityGroups, 1)
	require.Equal(t, "web", b.SecurityGroups[0].Name)
	require.Len(t, b.SecurityGroups[0].Ingress, 2)
	require.Equal(t, "-1", b.SecurityGroups[0].Egress[0].Protocol)

	require.Len(t, b.Instances, 1)
	in := b.Instances[0]
	require.Equal(t, "ami-0c55b159cbfafe1f0", in.AMI)
	require.Equal(t, []string{"web"}, in.SecurityGroups)
	require.Equal(t, int32(20), in.RootVolume.Size)

	require.Len(t, b.Outputs, 2)
	require.Equal(t, "public_ip", b.Outputs[0].Attribute)
}

func TestLoadDefaultsDeleteOnTermination(t *testing.T) {
	b, err := Load(writeBundle(t, sampleBundle))
	require.NoError(t, err)

	dot := b.Instances[0].RootVolume.DeleteOnTermination
	require.NotNil(t, dot)
	require.True(t, *dot, "delete_on_termination must default to true")
}

func TestLoadKeepsExplicitDeleteOnTermination(t *testing.T) {
	content := `instances:
  - name: web
    ami: ami-0c55b159cbfafe1f0
    instance_type: t2.micro
    security_group_ids: [sg-0123456789abcdef0]
    root_volume:
      size: 20
      type: gp2
      delete_on_termination: false
`
	b, err := Load(writeBundle(t, content))
	require.NoError(t, err)

	dot := b.Instances[0].RootVolume.DeleteOnTermination
	require.NotNil(t, dot)
	require.False(t, *dot)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := Load(writeBundle(t, "instances:\n  - name: [broken"))
	require.ErrorContains(t, err, "failed to parse bundle file")
}

func TestSecurityGroupSpec(t *testing.T) {
	b, err := Load(writeBundle(t, sampleBundle))
	require.NoError(t, err)

	spec := b.SecurityGroups[0].Spec("vpc-0000aaaa")

	want := types.SecurityGroupSpec{
		Name:        "web",
		Description: "Allow SSH and HTTP",
		VPCID:       "vpc-0000aaaa",
		Ingress: []types.Rule{
			{FromPort: 22, ToPort: 22, Protocol: "tcp", CIDRBlocks: []string{"0.0.0.0/0"}},
			{FromPort: 80, ToPort: 80, Protocol: "tcp", CIDRBlocks: []string{"0.0.0.0/0"}},
		},
		Egress: []types.Rule{
			{FromPort: 0, ToPort: 0, Protocol: "-1", CIDRBlocks: []string{"0.0.0.0/0"}},
		},
	}
	if diff := cmp.Diff(want, spec); diff != "" {
		t.Errorf("spec mismatch (-want +got):\n%s", diff)
	}
}

func TestInstanceSpec(t *testing.T) {
	b, err := Load(writeBundle(t, sampleBundle))
	require.NoError(t, err)

	spec := b.Instances[0].Spec([]string{"sg-0123456789abcdef0"})

	require.Equal(t, "web", spec.Name)
	require.Equal(t, "t2.micro", spec.Type)
	require.Equal(t, "deployer", spec.KeyName)
	require.Equal(t, []string{"sg-0123456789abcdef0"}, spec.SecurityGroupIDs)
	require.Equal(t, types.RootVolume{Size: 20, Type: "gp2", DeleteOnTermination: true}, spec.RootVolume)
	require.Equal(t, map[string]string{"env": "dev"}, spec.Tags)
}

func TestFindSecurityGroup(t *testing.T) {
	b, err := Load(writeBundle(t, sampleBundle))
	require.NoError(t, err)

	require.NotNil(t, b.FindSecurityGroup("web"))
	require.Nil(t, b.FindSecurityGroup("db"))
}

func TestFindInstance(t *testing.T) {
	b, err := Load(writeBundle(t, sampleBundle))
	require.NoError(t, err)

	require.NotNil(t, b.FindInstance("web"))
	require.Nil(t, b.FindInstance("worker"))
}
