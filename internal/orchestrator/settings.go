package orchestrator

import (
	"time"

	"github.com/deployra/launcher/internal/config"
)

// Settings are the pipeline knobs taken from configuration.
type Settings struct {
	LaunchTemplateID      string
	LaunchTemplateVersion string
	ArtifactPrefix        string
	BuildProject          string
	InstanceTagKey        string

	InstanceRunningWait time.Duration
	SettleWait          time.Duration
	ReadinessPath       string
	ReadinessTimeout    time.Duration
	BuildPollInterval   time.Duration
	BuildTimeout        time.Duration
	TerminateOnFailure  bool

	// MaxConcurrent caps pipelines running at once; 0 means no cap.
	MaxConcurrent int
}

func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		LaunchTemplateID:      cfg.LaunchTemplateID,
		LaunchTemplateVersion: cfg.LaunchTemplateVersion,
		ArtifactPrefix:        cfg.ArtifactPrefix,
		BuildProject:          cfg.BuildProject,
		InstanceTagKey:        cfg.InstanceTagKey,
		InstanceRunningWait:   cfg.InstanceRunningWait,
		SettleWait:            cfg.SettleWait,
		ReadinessPath:         cfg.ReadinessPath,
		ReadinessTimeout:      cfg.ReadinessTimeout,
		BuildPollInterval:     cfg.BuildPollInterval,
		BuildTimeout:          cfg.BuildTimeout,
		TerminateOnFailure:    cfg.TerminateOnFailure,
		MaxConcurrent:         cfg.MaxConcurrentDeployments,
	}
}

func (s Settings) withDefaults() Settings {
	if s.InstanceTagKey == "" {
		s.InstanceTagKey = "DeploymentId"
	}
	if s.InstanceRunningWait <= 0 {
		s.InstanceRunningWait = 10 * time.Minute
	}
	if s.BuildPollInterval <= 0 {
		s.BuildPollInterval = 15 * time.Second
	}
	if s.BuildTimeout <= 0 {
		s.BuildTimeout = 10 * time.Minute
	}
	if s.ReadinessTimeout <= 0 {
		s.ReadinessTimeout = 3 * time.Minute
	}
	return s
}
