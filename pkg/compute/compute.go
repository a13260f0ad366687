// Package compute creates, inspects and terminates EC2 instances for deployments.
package compute

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
)

const errCodeInstanceNotFound = "InvalidInstanceID.NotFound"

var ErrInstanceNotFound = errors.New("instance not found")

// EC2API is the subset of the EC2 client the provisioner needs.
type EC2API interface {
	RunInstances(ctx context.Context, params *ec2.RunInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error)
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)
}

// CreateRequest launches one instance from a launch template.
type CreateRequest struct {
	TemplateID      string
	TemplateVersion string
	// ClientToken makes retries of the same create idempotent.
	ClientToken string
	Tags        map[string]string
}

type CreateResult struct {
	InstanceID string
}

// Instance is the state of a provisioned instance.
type Instance struct {
	ID            string
	State         string
	PublicAddress string
}

type Provisioner struct {
	client EC2API
	// poll bounds for the running waiter
	minDelay time.Duration
	maxDelay time.Duration
}

func New(client EC2API) *Provisioner {
	return &Provisioner{client: client, minDelay: 5 * time.Second, maxDelay: 30 * time.Second}
}

// NewFromConfig builds a Provisioner on a real EC2 client.
func NewFromConfig(cfg aws.Config) *Provisioner {
	return New(ec2.NewFromConfig(cfg))
}

// Create launches the instance and tags it. The deployment tag is how the deploy
// function finds this instance later.
func (p *Provisioner) Create(ctx context.Context, req CreateRequest) (CreateResult, error) {
	if req.TemplateID == "" {
		return CreateResult{}, fmt.Errorf("launch template id cannot be empty")
	}
	version := req.TemplateVersion
	if version == "" {
		version = "$Default"
	}

	input := &ec2.RunInstancesInput{
		MinCount: aws.Int32(1),
		MaxCount: aws.Int32(1),
		LaunchTemplate: &types.LaunchTemplateSpecification{
			LaunchTemplateId: aws.String(req.TemplateID),
			Version:          aws.String(version),
		},
	}
	if req.ClientToken != "" {
		input.ClientToken = aws.String(req.ClientToken)
	}
	if tags := toTags(req.Tags); len(tags) > 0 {
		input.TagSpecifications = []types.TagSpecification{{
			ResourceType: types.ResourceTypeInstance,
			Tags:         tags,
		}}
	}

	out, err := p.client.RunInstances(ctx, input)
	if err != nil {
		return CreateResult{}, fmt.Errorf("failed to run instance: %w", err)
	}
	if len(out.Instances) == 0 || out.Instances[0].InstanceId == nil {
		return CreateResult{}, fmt.Errorf("no instance returned from EC2")
	}
	return CreateResult{InstanceID: *out.Instances[0].InstanceId}, nil
}

// AwaitRunning blocks until the instance reports running or maxWait elapses.
func (p *Provisioner) AwaitRunning(ctx context.Context, instanceID string, maxWait time.Duration) error {
	waiter := ec2.NewInstanceRunningWaiter(p.client, func(o *ec2.InstanceRunningWaiterOptions) {
		o.MinDelay = p.minDelay
		o.MaxDelay = p.maxDelay
	})
	err := waiter.Wait(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{instanceID}}, maxWait)
	if err != nil {
		return fmt.Errorf("instance %s did not reach running: %w", instanceID, err)
	}
	return nil
}

// Describe returns the instance's state and its public address, if assigned.
func (p *Provisioner) Describe(ctx context.Context, instanceID string) (Instance, error) {
	out, err := p.client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{instanceID}})
	if err != nil {
		if isNotFound(err) {
			return Instance{}, ErrInstanceNotFound
		}
		return Instance{}, fmt.Errorf("failed to describe instance %s: %w", instanceID, err)
	}
	for _, reservation := range out.Reservations {
		for _, inst := range reservation.Instances {
			if aws.ToString(inst.InstanceId) != instanceID {
				continue
			}
			result := Instance{ID: instanceID}
			if inst.State != nil {
				result.State = string(inst.State.Name)
			}
			result.PublicAddress = aws.ToString(inst.PublicIpAddress)
			if result.PublicAddress == "" {
				result.PublicAddress = aws.ToString(inst.PublicDnsName)
			}
			return result, nil
		}
	}
	return Instance{}, ErrInstanceNotFound
}

// Terminate destroys the instance. Unknown or already-terminated instances are not an error.
func (p *Provisioner) Terminate(ctx context.Context, instanceID string) error {
	if instanceID == "" {
		return fmt.Errorf("instance id cannot be empty")
	}
	_, err := p.client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: []string{instanceID}})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to terminate instance %s: %w", instanceID, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == errCodeInstanceNotFound
}

func toTags(m map[string]string) []types.Tag {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tags := make([]types.Tag, 0, len(keys))
	for _, k := range keys {
		tags = append(tags, types.Tag{Key: aws.String(k), Value: aws.String(m[k])})
	}
	return tags
}
