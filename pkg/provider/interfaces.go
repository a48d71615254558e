package provider

import (
	"context"
	"errors"

	"github.com/vietdv277/stratus/pkg/types"
)

// Common errors
var (
	ErrNotFound         = errors.New("resource not found")
	ErrNotConfigured    = errors.New("provider not configured")
	ErrAuthFailed       = errors.New("authentication failed")
	ErrPermissionDenied = errors.New("permission denied")
)

// NetworkProvider defines read-only network lookups.
type NetworkProvider interface {
	// DefaultVPC returns the account's default VPC for the configured region.
	DefaultVPC(ctx context.Context) (*types.VPC, error)

	// KeyPairExists reports whether a key pair with the given name exists.
	KeyPairExists(ctx context.Context, name string) (bool, error)
}

// SecurityGroupProvider defines security group operations.
type SecurityGroupProvider interface {
	// Get returns a security group by ID. Returns ErrNotFound if it is gone.
	Get(ctx context.Context, id string) (*types.SecurityGroup, error)

	// Create creates a security group with its rules and returns its ID.
	Create(ctx context.Context, spec types.SecurityGroupSpec) (string, error)

	// SyncRules makes the group's live rule sets match the spec's,
	// authorizing missing rules and revoking extra ones.
	SyncRules(ctx context.Context, id string, spec types.SecurityGroupSpec) error

	// Delete removes a security group. Deleting a group that is already
	// gone is not an error.
	Delete(ctx context.Context, id string) error
}

// InstanceProvider defines instance operations.
type InstanceProvider interface {
	// Get returns an instance by ID. Returns ErrNotFound if the instance
	// does not exist or is terminated.
	Get(ctx context.Context, id string) (*types.Instance, error)

	// Launch starts a new instance and waits until it is running. The
	// returned instance carries its assigned public IP and DNS name.
	Launch(ctx context.Context, spec types.InstanceSpec) (*types.Instance, error)

	// UpdateTags replaces the instance's managed tags with the given set.
	UpdateTags(ctx context.Context, id string, tags map[string]string) error

	// UpdateSecurityGroups replaces the instance's attached security groups.
	UpdateSecurityGroups(ctx context.Context, id string, groupIDs []string) error

	// Terminate destroys an instance and waits until it is terminated.
	// Terminating an instance that is already gone is not an error.
	Terminate(ctx context.Context, id string) error
}

// CloudProvider is the interface the reconciliation engine drives.
type CloudProvider interface {
	// Name returns the provider identifier (e.g., "aws")
	Name() string

	// Network returns the network lookup provider
	Network() NetworkProvider

	// SecurityGroups returns the security group provider
	SecurityGroups() SecurityGroupProvider

	// Instances returns the instance provider
	Instances() InstanceProvider
}
