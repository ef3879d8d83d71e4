package providers

import (
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ec2"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// Logical resource names. They identify the resources in stack state, so
// renaming any of them replaces the resource on the next update.
const (
	KeyPairName       = "mcserver-keypair"
	SecurityGroupName = "mcserver-secgrp"
	InstanceName      = "mcserver-instance"
)

// Image selection for the server.
const (
	// DebianOwnerID is the official Debian AWS account.
	DebianOwnerID = "136693071363"
	// DebianImageName is matched exactly against the AMI name (amd64).
	DebianImageName = "debian-12-amd64-20231013-1532"
)

// InstanceNameTag is the value of the Name tag on the instance.
const InstanceNameTag = "MinecraftServer"

// ImageReference is the resolved AMI. Both fields are outputs of the lookup
// and are only known once the provider answers.
type ImageReference struct {
	ID   pulumi.StringOutput
	Name pulumi.StringOutput
}

// InstanceSpec describes the compute instance to declare.
type InstanceSpec struct {
	InstanceType string
}

// InstanceOutput holds the outputs of the created instance. PublicIP and
// PublicDNS resolve only after the instance is running with an address.
type InstanceOutput struct {
	Instance     *ec2.Instance
	ID           pulumi.IDOutput
	PublicIP     pulumi.StringOutput
	PublicDNS    pulumi.StringOutput
	InstanceType string
}

// AWSProvider declares the EC2 resources of the server stack
type AWSProvider struct {
	ctx           *pulumi.Context
	opts          []pulumi.ResourceOption
	keyPair       *ec2.KeyPair
	securityGroup *ec2.SecurityGroup
	image         *ImageReference
	instance      *InstanceOutput
}

// NewAWSProvider creates a new AWS provider. opts are applied to every resource.
func NewAWSProvider(ctx *pulumi.Context, opts ...pulumi.ResourceOption) *AWSProvider {
	return &AWSProvider{
		ctx:  ctx,
		opts: opts,
	}
}

// GetName returns the provider name
func (p *AWSProvider) GetName() string {
	return "aws"
}

// RegisterKeyPair imports publicKey as an EC2 key pair
func (p *AWSProvider) RegisterKeyPair(publicKey string) (*ec2.KeyPair, error) {
	if p.keyPair != nil {
		return nil, fmt.Errorf("key pair %s already registered", KeyPairName)
	}

	keyPair, err := ec2.NewKeyPair(p.ctx, KeyPairName, &ec2.KeyPairArgs{
		PublicKey: pulumi.String(publicKey),
	}, p.opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create key pair: %w", err)
	}

	p.keyPair = keyPair
	return keyPair, nil
}

// ResolveImage looks up the most recent Debian AMI matching DebianImageName.
// The lookup runs alongside the other declarations; the returned reference is
// consumed by CreateInstance without being awaited here.
func (p *AWSProvider) ResolveImage() *ImageReference {
	if p.image != nil {
		return p.image
	}

	result := ec2.LookupAmiOutput(p.ctx, ec2.LookupAmiOutputArgs{
		Owners: pulumi.StringArray{pulumi.String(DebianOwnerID)},
		Filters: ec2.GetAmiFilterArray{
			ec2.GetAmiFilterArgs{
				Name:   pulumi.String("name"),
				Values: pulumi.StringArray{pulumi.String(DebianImageName)},
			},
		},
		MostRecent: pulumi.Bool(true),
	})

	p.image = &ImageReference{
		ID:   result.Id(),
		Name: result.Name(),
	}
	return p.image
}

// CreateFirewall creates the security group from IngressRules and EgressRules
func (p *AWSProvider) CreateFirewall() (*ec2.SecurityGroup, error) {
	ingress := ec2.SecurityGroupIngressArray{}
	for _, rule := range IngressRules() {
		ingress = append(ingress, &ec2.SecurityGroupIngressArgs{
			Protocol:   pulumi.String(rule.Protocol),
			FromPort:   pulumi.Int(rule.FromPort),
			ToPort:     pulumi.Int(rule.ToPort),
			CidrBlocks: pulumi.ToStringArray(rule.CIDRBlocks),
		})
	}

	egress := ec2.SecurityGroupEgressArray{}
	for _, rule := range EgressRules() {
		egress = append(egress, &ec2.SecurityGroupEgressArgs{
			Protocol:   pulumi.String(rule.Protocol),
			FromPort:   pulumi.Int(rule.FromPort),
			ToPort:     pulumi.Int(rule.ToPort),
			CidrBlocks: pulumi.ToStringArray(rule.CIDRBlocks),
		})
	}

	sg, err := ec2.NewSecurityGroup(p.ctx, SecurityGroupName, &ec2.SecurityGroupArgs{
		Ingress: ingress,
		Egress:  egress,
	}, p.opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create security group: %w", err)
	}

	p.securityGroup = sg
	return sg, nil
}

// CreateInstance creates the EC2 instance with a public IP
func (p *AWSProvider) CreateInstance(spec InstanceSpec) (*InstanceOutput, error) {
	if p.keyPair == nil {
		return nil, fmt.Errorf("key pair must be registered before creating the instance")
	}
	if p.securityGroup == nil {
		return nil, fmt.Errorf("security group must be created before creating the instance")
	}
	if p.image == nil {
		return nil, fmt.Errorf("image must be resolved before creating the instance")
	}
	if spec.InstanceType == "" {
		return nil, fmt.Errorf("instance type is required")
	}

	instance, err := ec2.NewInstance(p.ctx, InstanceName, &ec2.InstanceArgs{
		Ami:                      p.image.ID,
		InstanceType:             pulumi.String(spec.InstanceType),
		KeyName:                  p.keyPair.KeyName,
		VpcSecurityGroupIds:      pulumi.StringArray{p.securityGroup.ID()},
		AssociatePublicIpAddress: pulumi.Bool(true),
		Tags: pulumi.StringMap{
			"Name": pulumi.String(InstanceNameTag),
		},
	}, p.opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create instance %s: %w", InstanceName, err)
	}

	p.instance = &InstanceOutput{
		Instance:     instance,
		ID:           instance.ID(),
		PublicIP:     instance.PublicIp,
		PublicDNS:    instance.PublicDns,
		InstanceType: spec.InstanceType,
	}
	return p.instance, nil
}

// Instance returns the created instance, or nil before CreateInstance.
func (p *AWSProvider) Instance() *InstanceOutput {
	return p.instance
}
