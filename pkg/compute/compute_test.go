package compute

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEC2 struct {
	runInput     *ec2.RunInstancesInput
	runErr       error
	state        types.InstanceStateName
	publicIP     string
	describeErr  error
	terminateErr error
	terminated   []string
}

func (m *mockEC2) RunInstances(_ context.Context, in *ec2.RunInstancesInput, _ ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error) {
	m.runInput = in
	if m.runErr != nil {
		return nil, m.runErr
	}
	return &ec2.RunInstancesOutput{Instances: []types.Instance{{InstanceId: aws.String("i-0abc")}}}, nil
}

func (m *mockEC2) DescribeInstances(_ context.Context, in *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	if m.describeErr != nil {
		return nil, m.describeErr
	}
	inst := types.Instance{
		InstanceId: aws.String(in.InstanceIds[0]),
		State:      &types.InstanceState{Name: m.state},
	}
	if m.publicIP != "" {
		inst.PublicIpAddress = aws.String(m.publicIP)
	}
	return &ec2.DescribeInstancesOutput{Reservations: []types.Reservation{{Instances: []types.Instance{inst}}}}, nil
}

func (m *mockEC2) TerminateInstances(_ context.Context, in *ec2.TerminateInstancesInput, _ ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	if m.terminateErr != nil {
		return nil, m.terminateErr
	}
	m.terminated = append(m.terminated, in.InstanceIds...)
	return &ec2.TerminateInstancesOutput{}, nil
}

func newTestProvisioner(m *mockEC2) *Provisioner {
	p := New(m)
	p.minDelay = time.Millisecond
	p.maxDelay = 5 * time.Millisecond
	return p
}

func TestCreateUsesTemplateTagsAndToken(t *testing.T) {
	m := &mockEC2{}
	p := newTestProvisioner(m)

	res, err := p.Create(context.Background(), CreateRequest{
		TemplateID:  "lt-123",
		ClientToken: "20260101000000-abcd1234",
		Tags:        map[string]string{"DeploymentId": "20260101000000-abcd1234", "Name": "launcher-app"},
	})
	require.NoError(t, err)
	assert.Equal(t, "i-0abc", res.InstanceID)

	in := m.runInput
	assert.Equal(t, "lt-123", aws.ToString(in.LaunchTemplate.LaunchTemplateId))
	assert.Equal(t, "$Default", aws.ToString(in.LaunchTemplate.Version))
	assert.Equal(t, "20260101000000-abcd1234", aws.ToString(in.ClientToken))
	require.Len(t, in.TagSpecifications, 1)
	assert.Equal(t, types.ResourceTypeInstance, in.TagSpecifications[0].ResourceType)
	tags := in.TagSpecifications[0].Tags
	require.Len(t, tags, 2)
	assert.Equal(t, "DeploymentId", aws.ToString(tags[0].Key))
	assert.Equal(t, "Name", aws.ToString(tags[1].Key))
}

func TestCreateErrors(t *testing.T) {
	p := newTestProvisioner(&mockEC2{runErr: errors.New("InsufficientInstanceCapacity")})
	_, err := p.Create(context.Background(), CreateRequest{TemplateID: "lt-123"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InsufficientInstanceCapacity")

	_, err = p.Create(context.Background(), CreateRequest{})
	assert.Error(t, err)
}

func TestAwaitRunning(t *testing.T) {
	p := newTestProvisioner(&mockEC2{state: types.InstanceStateNameRunning})
	assert.NoError(t, p.AwaitRunning(context.Background(), "i-0abc", time.Second))

	p = newTestProvisioner(&mockEC2{state: types.InstanceStateNameTerminated})
	assert.Error(t, p.AwaitRunning(context.Background(), "i-0abc", time.Second))
}

func TestDescribe(t *testing.T) {
	p := newTestProvisioner(&mockEC2{state: types.InstanceStateNameRunning, publicIP: "203.0.113.7"})
	inst, err := p.Describe(context.Background(), "i-0abc")
	require.NoError(t, err)
	assert.Equal(t, "running", inst.State)
	assert.Equal(t, "203.0.113.7", inst.PublicAddress)

	p = newTestProvisioner(&mockEC2{describeErr: &smithy.GenericAPIError{Code: errCodeInstanceNotFound}})
	_, err = p.Describe(context.Background(), "i-gone")
	assert.ErrorIs(t, err, ErrInstanceNotFound)
}

func TestTerminateIsIdempotent(t *testing.T) {
	m := &mockEC2{}
	p := newTestProvisioner(m)
	require.NoError(t, p.Terminate(context.Background(), "i-0abc"))
	assert.Equal(t, []string{"i-0abc"}, m.terminated)

	m.terminateErr = &smithy.GenericAPIError{Code: errCodeInstanceNotFound, Message: "does not exist"}
	assert.NoError(t, p.Terminate(context.Background(), "i-0abc"))

	m.terminateErr = &smithy.GenericAPIError{Code: "UnauthorizedOperation"}
	assert.Error(t, p.Terminate(context.Background(), "i-0abc"))
}

func TestProbeRetriesUntilHealthy(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 10)
	require.NoError(t, probe(context.Background(), srv.Client(), srv.URL, b))
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestProbeGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 2)
	err := probe(context.Background(), srv.Client(), srv.URL, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
}
