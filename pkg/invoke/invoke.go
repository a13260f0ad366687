// Package invoke triggers the deploy function that installs a build onto its instance.
package invoke

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

// LambdaAPI is the subset of the Lambda client the invoker needs.
type LambdaAPI interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// Request is the payload the deploy function receives. The function locates the
// target instance by its TagKey tag carrying DeploymentID.
type Request struct {
	DeploymentID   string `json:"deployment_id"`
	ArtifactBucket string `json:"artifact_bucket"`
	ArtifactKey    string `json:"artifact_key"`
	TagKey         string `json:"tag_key"`
}

type Response struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
}

type Invoker struct {
	client   LambdaAPI
	function string
}

func New(client LambdaAPI, function string) *Invoker {
	return &Invoker{client: client, function: function}
}

// NewFromConfig builds an Invoker on a real Lambda client.
func NewFromConfig(cfg aws.Config, function string) *Invoker {
	return New(lambda.NewFromConfig(cfg), function)
}

// Invoke calls the deploy function synchronously and decodes its reply.
func (i *Invoker) Invoke(ctx context.Context, req Request) (Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal deploy request: %w", err)
	}

	out, err := i.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(i.function),
		InvocationType: types.InvocationTypeRequestResponse,
		Payload:        payload,
	})
	if err != nil {
		return Response{}, fmt.Errorf("failed to invoke %s: %w", i.function, err)
	}

	if out.FunctionError != nil {
		return Response{}, fmt.Errorf("deploy function error (%s): %s", aws.ToString(out.FunctionError), string(out.Payload))
	}

	var resp Response
	if err := json.Unmarshal(out.Payload, &resp); err != nil {
		return Response{}, fmt.Errorf("invalid deploy function response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := resp.Error
		if msg == "" {
			msg = resp.Message
		}
		return resp, fmt.Errorf("deploy function returned %d: %s", resp.StatusCode, msg)
	}
	return resp, nil
}
