package invoke

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLambda struct {
	input *lambda.InvokeInput
	out   *lambda.InvokeOutput
	err   error
}

func (m *mockLambda) Invoke(_ context.Context, in *lambda.InvokeInput, _ ...func(*lambda.Options)) (*lambda.InvokeOutput, error) {
	m.input = in
	return m.out, m.err
}

var testRequest = Request{
	DeploymentID:   "d-1",
	ArtifactBucket: "artifacts",
	ArtifactKey:    "deployments/d-1/build/output.zip",
	TagKey:         "DeploymentId",
}

func TestInvokeSuccess(t *testing.T) {
	m := &mockLambda{out: &lambda.InvokeOutput{
		StatusCode: 200,
		Payload:    []byte(`{"statusCode":200,"message":"deployed"}`),
	}}
	resp, err := New(m, "launcher-deploy").Invoke(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, "deployed", resp.Message)

	assert.Equal(t, "launcher-deploy", aws.ToString(m.input.FunctionName))
	assert.Equal(t, types.InvocationTypeRequestResponse, m.input.InvocationType)
	var sent Request
	require.NoError(t, json.Unmarshal(m.input.Payload, &sent))
	assert.Equal(t, testRequest, sent)
}

func TestInvokeFailures(t *testing.T) {
	tests := []struct {
		name    string
		mock    *mockLambda
		wantMsg string
	}{
		{
			name:    "transport error",
			mock:    &mockLambda{err: errors.New("ResourceNotFoundException")},
			wantMsg: "ResourceNotFoundException",
		},
		{
			name: "function error",
			mock: &mockLambda{out: &lambda.InvokeOutput{
				FunctionError: aws.String("Unhandled"),
				Payload:       []byte(`{"errorMessage":"boom"}`),
			}},
			wantMsg: "boom",
		},
		{
			name: "non-2xx status",
			mock: &mockLambda{out: &lambda.InvokeOutput{
				Payload: []byte(`{"statusCode":500,"error":"no instance tagged d-1"}`),
			}},
			wantMsg: "no instance tagged d-1",
		},
		{
			name:    "undecodable payload",
			mock:    &mockLambda{out: &lambda.InvokeOutput{Payload: []byte(`not json`)}},
			wantMsg: "invalid deploy function response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.mock, "launcher-deploy").Invoke(context.Background(), testRequest)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}
