package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var (
	instance *Config
	once     sync.Once
)

// TerminationPolicy controls what a delete does when compute termination fails.
type TerminationPolicy string

const (
	// TerminationStrict surfaces the termination error and keeps the record.
	TerminationStrict TerminationPolicy = "strict"
	// TerminationBestEffort logs the termination error and removes the record anyway.
	TerminationBestEffort TerminationPolicy = "best_effort"
)

type Config struct {
	Port          string
	Environment   string
	CorsOrigins   string
	ProxyProtocol bool

	// Logging
	LogLevel string
	LogPath  string

	// Scratch space for clones and archives
	WorkDir string

	// AWS
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSSessionToken    string
	AWSEndpointURL     string
	AWSMaxAttempts     int

	// Collaborators
	ArtifactBucket        string
	ArtifactPrefix        string
	BuildProject          string
	LaunchTemplateID      string
	LaunchTemplateVersion string
	DeployFunction        string
	InstanceTagKey        string

	// Pipeline timing
	CloneTimeout          time.Duration
	InstanceRunningWait   time.Duration
	SettleWait            time.Duration
	ReadinessPath         string
	ReadinessTimeout      time.Duration
	BuildPollInterval     time.Duration
	BuildTimeout          time.Duration
	TerminateOnFailure    bool
	DeleteTerminationMode TerminationPolicy
	// 0 means unlimited
	MaxConcurrentDeployments int

	// GitHub preflight
	GitHubPreflight bool
	GitHubToken     string

	// Redis (optional, status fan-out across replicas)
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
}

func Load() *Config {
	once.Do(func() {
		_ = godotenv.Load()
		instance = FromEnv()
	})
	return instance
}

// FromEnv builds a Config from the current environment without touching the singleton.
func FromEnv() *Config {
	return &Config{
		Port:                     getEnv("PORT", "8080"),
		Environment:              getEnv("APP_ENV", "development"),
		CorsOrigins:              getEnv("CORS_ORIGINS", "*"),
		ProxyProtocol:            getBool("PROXY_PROTOCOL", false),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		LogPath:                  getEnv("LOG_PATH", ""),
		WorkDir:                  getEnv("WORK_DIR", os.TempDir()),
		AWSRegion:                getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:           getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:       getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSSessionToken:          getEnv("AWS_SESSION_TOKEN", ""),
		AWSEndpointURL:           getEnv("AWS_ENDPOINT_URL", ""),
		AWSMaxAttempts:           getInt("AWS_MAX_ATTEMPTS", 3),
		ArtifactBucket:           getEnv("ARTIFACT_BUCKET", ""),
		ArtifactPrefix:           getEnv("ARTIFACT_PREFIX", "deployments"),
		BuildProject:             getEnv("BUILD_PROJECT", ""),
		LaunchTemplateID:         getEnv("LAUNCH_TEMPLATE_ID", ""),
		LaunchTemplateVersion:    getEnv("LAUNCH_TEMPLATE_VERSION", "$Default"),
		DeployFunction:           getEnv("DEPLOY_FUNCTION", ""),
		InstanceTagKey:           getEnv("INSTANCE_TAG_KEY", "DeploymentId"),
		CloneTimeout:             getSeconds("CLONE_TIMEOUT_SECONDS", 300),
		InstanceRunningWait:      getSeconds("INSTANCE_RUNNING_TIMEOUT_SECONDS", 600),
		SettleWait:               getSeconds("SETTLE_SECONDS", 90),
		ReadinessPath:            getEnv("READINESS_PATH", ""),
		ReadinessTimeout:         getSeconds("READINESS_TIMEOUT_SECONDS", 180),
		BuildPollInterval:        getSeconds("BUILD_POLL_INTERVAL_SECONDS", 15),
		BuildTimeout:             getSeconds("BUILD_TIMEOUT_SECONDS", 600),
		TerminateOnFailure:       getBool("TERMINATE_ON_FAILURE", false),
		DeleteTerminationMode:    parsePolicy(getEnv("DELETE_TERMINATION_POLICY", string(TerminationStrict))),
		MaxConcurrentDeployments: getInt("MAX_CONCURRENT_DEPLOYMENTS", 0),
		GitHubPreflight:          getBool("GITHUB_PREFLIGHT", false),
		GitHubToken:              getEnv("GITHUB_TOKEN", ""),
		RedisHost:                getEnv("REDIS_HOST", ""),
		RedisPort:                getEnv("REDIS_PORT", "6379"),
		RedisUsername:            getEnv("REDIS_USERNAME", ""),
		RedisPassword:            getEnv("REDIS_PASSWORD", ""),
	}
}

// Validate reports every missing collaborator identifier at once.
func (c *Config) Validate() error {
	var errs []error
	required := map[string]string{
		"ARTIFACT_BUCKET":    c.ArtifactBucket,
		"BUILD_PROJECT":      c.BuildProject,
		"LAUNCH_TEMPLATE_ID": c.LaunchTemplateID,
		"DEPLOY_FUNCTION":    c.DeployFunction,
	}
	for _, key := range []string{"ARTIFACT_BUCKET", "BUILD_PROJECT", "LAUNCH_TEMPLATE_ID", "DEPLOY_FUNCTION"} {
		if strings.TrimSpace(required[key]) == "" {
			errs = append(errs, errors.New(key+" is not set"))
		}
	}
	if c.BuildPollInterval <= 0 {
		errs = append(errs, errors.New("BUILD_POLL_INTERVAL_SECONDS must be positive"))
	}
	return errors.Join(errs...)
}

// RedisEnabled reports whether status events should go through Redis.
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getInt(key, defaultSeconds)) * time.Second
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parsePolicy(value string) TerminationPolicy {
	switch TerminationPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case TerminationBestEffort, "best-effort":
		return TerminationBestEffort
	default:
		return TerminationStrict
	}
}
