package types

// VPC represents an AWS VPC
type VPC struct {
	ID        string
	Name      string
	CIDR      string
	State     string
	IsDefault bool
	OwnerID   string
}
