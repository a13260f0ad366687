package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"SETTLE_SECONDS", "BUILD_TIMEOUT_SECONDS", "CLONE_TIMEOUT_SECONDS", "DELETE_TERMINATION_POLICY", "AWS_REGION"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	assert.Equal(t, "us-east-1", cfg.AWSRegion)
	assert.Equal(t, 90*time.Second, cfg.SettleWait)
	assert.Equal(t, 600*time.Second, cfg.BuildTimeout)
	assert.Equal(t, 300*time.Second, cfg.CloneTimeout)
	assert.Equal(t, 15*time.Second, cfg.BuildPollInterval)
	assert.Equal(t, TerminationStrict, cfg.DeleteTerminationMode)
	assert.False(t, cfg.TerminateOnFailure)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("SETTLE_SECONDS", "5")
	t.Setenv("TERMINATE_ON_FAILURE", "true")
	t.Setenv("DELETE_TERMINATION_POLICY", "best-effort")
	t.Setenv("AWS_MAX_ATTEMPTS", "not-a-number")
	t.Setenv("PROXY_PROTOCOL", "true")
	t.Setenv("MAX_CONCURRENT_DEPLOYMENTS", "4")

	cfg := FromEnv()

	assert.Equal(t, 5*time.Second, cfg.SettleWait)
	assert.True(t, cfg.TerminateOnFailure)
	assert.Equal(t, TerminationBestEffort, cfg.DeleteTerminationMode)
	assert.Equal(t, 3, cfg.AWSMaxAttempts)
	assert.True(t, cfg.ProxyProtocol)
	assert.Equal(t, 4, cfg.MaxConcurrentDeployments)
}

func TestValidateListsMissingIdentifiers(t *testing.T) {
	cfg := &Config{BuildPollInterval: time.Second, ArtifactBucket: "bucket"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BUILD_PROJECT")
	assert.Contains(t, err.Error(), "LAUNCH_TEMPLATE_ID")
	assert.Contains(t, err.Error(), "DEPLOY_FUNCTION")
	assert.NotContains(t, err.Error(), "ARTIFACT_BUCKET")

	cfg.BuildProject, cfg.LaunchTemplateID, cfg.DeployFunction = "p", "lt-1", "fn"
	assert.NoError(t, cfg.Validate())
}
