package types

import "time"

// Instance represents a live EC2 instance managed by stratus.
type Instance struct {
	ID               string
	Name             string
	AMI              string
	Type             string
	KeyName          string
	State            string
	AZ               string
	PrivateIP        string
	PublicIP         string
	PublicDNS        string
	SecurityGroupIDs []string
	RootVolume       RootVolume
	Tags             map[string]string
	LaunchTime       time.Time
}

// RootVolume describes the root block device of an instance.
type RootVolume struct {
	Size                int32
	Type                string
	DeleteOnTermination bool
}

// InstanceSpec is the desired shape of an instance at launch time.
// Security group references have already been resolved to IDs.
type InstanceSpec struct {
	Name             string
	AMI              string
	Type             string
	KeyName          string
	SecurityGroupIDs []string
	RootVolume       RootVolume
	Tags             map[string]string
}
