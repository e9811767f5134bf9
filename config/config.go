// Package config loads Launchpad configuration from defaults, an optional YAML file,
// LAUNCHPAD_* environment variables and CLI overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	TmpDir       = "tmp"
	BuildsDir    = "builds"
	DatabaseFile = "launchpad.db"
	EnvFile      = ".env"

	EnvPrefix        = "LAUNCHPAD_"
	EncryptionKeyEnv = EnvPrefix + "ENCRYPTION_KEY"
)

// EnvProvider abstracts environment variable access for testing
type EnvProvider interface {
	Getenv(key string) string
	UserHomeDir() (string, error)
}

// DefaultEnvProvider implements EnvProvider using real OS functions
type DefaultEnvProvider struct{}

func (p *DefaultEnvProvider) Getenv(key string) string {
	return os.Getenv(key)
}

func (p *DefaultEnvProvider) UserHomeDir() (string, error) {
	return os.UserHomeDir()
}

// GetDefaultDataDir returns the default data directory following the XDG Base Directory specification
func GetDefaultDataDir() string {
	return getDefaultDataDirWithEnv(&DefaultEnvProvider{})
}

func getDefaultDataDirWithEnv(env EnvProvider) string {
	if xdgDataHome := env.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
		return filepath.Join(xdgDataHome, "launchpad")
	}

	homeDir, _ := env.UserHomeDir()
	return filepath.Join(homeDir, ".local", "share", "launchpad")
}

// Config holds configuration for all services
type Config struct {
	// Core paths
	DataDir      string
	DatabasePath string
	TmpDir       string
	BuildsDir    string

	// Logging
	LogLevel     string
	LogFormat    string
	ColorEnabled bool

	// HTTP server
	HTTPHost string
	HTTPPort int

	// Git
	GitTimeout time.Duration

	// Container-build strategy
	DockerCommand    string
	DockerHost       string
	DefaultNamespace string

	// Managed-platform strategy
	ManagedCommand string
	ManagedArgs    []string

	// Simulated strategy
	SimulatedBuildDelay  time.Duration
	SimulatedDeployDelay time.Duration
	SimulatedFailureRate float64
	LiveDomain           string

	// Analysis
	InferenceURL     string
	InferenceModel   string
	InferenceTimeout time.Duration

	// JobTimeout bounds a single strategy run. Zero disables it.
	JobTimeout time.Duration

	// Build directory sweeping. A zero interval disables the sweeper,
	// a zero retention keeps directories of finished deployments.
	BuildSweepInterval time.Duration
	BuildRetention     time.Duration

	// Encryption
	EncryptionKey string

	env EnvProvider
}

// fileConfig mirrors the YAML layout. Zero values leave the defaults untouched.
type fileConfig struct {
	DataDir      string `yaml:"data_dir"`
	DatabasePath string `yaml:"database_path"`
	LogLevel     string `yaml:"log_level"`
	LogFormat    string `yaml:"log_format"`
	ColorEnabled *bool  `yaml:"color_enabled"`
	HTTP         struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"http"`
	Git struct {
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"git"`
	Docker struct {
		Command   string `yaml:"command"`
		Host      string `yaml:"host"`
		Namespace string `yaml:"namespace"`
	} `yaml:"docker"`
	Managed struct {
		Command string   `yaml:"command"`
		Args    []string `yaml:"args"`
	} `yaml:"managed"`
	Simulated struct {
		BuildDelay  time.Duration `yaml:"build_delay"`
		DeployDelay time.Duration `yaml:"deploy_delay"`
		FailureRate *float64      `yaml:"failure_rate"`
		LiveDomain  string        `yaml:"live_domain"`
	} `yaml:"simulated"`
	Inference struct {
		URL     string        `yaml:"url"`
		Model   string        `yaml:"model"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"inference"`
	Builds struct {
		SweepInterval *time.Duration `yaml:"sweep_interval"`
		Retention     *time.Duration `yaml:"retention"`
	} `yaml:"builds"`
	JobTimeout    time.Duration `yaml:"job_timeout"`
	EncryptionKey string        `yaml:"encryption_key"`
}

// NewConfig loads configuration from the YAML file at path (optional, "" skips it)
// and the process environment
func NewConfig(path string) (*Config, error) {
	return NewConfigWithEnv(path, &DefaultEnvProvider{})
}

// NewConfigWithEnv is NewConfig with a custom environment provider (for testing)
func NewConfigWithEnv(path string, env EnvProvider) (*Config, error) {
	return newConfig(path, env, "")
}

// NewConfigForCLI is NewConfig with an optional data directory override from the command line
func NewConfigForCLI(path, cliDataDir string) (*Config, error) {
	return newConfig(path, &DefaultEnvProvider{}, cliDataDir)
}

// NewConfigForCLIWithEnv is NewConfigForCLI with a custom environment provider (for testing)
func NewConfigForCLIWithEnv(path string, env EnvProvider, cliDataDir string) (*Config, error) {
	return newConfig(path, env, cliDataDir)
}

func newConfig(path string, env EnvProvider, cliDataDir string) (*Config, error) {
	c := &Config{env: env}

	c.setDefaults()

	if path != "" {
		if err := c.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	c.loadFromEnv()

	if cliDataDir != "" {
		c.DataDir = cliDataDir
	}

	c.derivePaths()

	// Fall back to the .env file in the data directory for the encryption key
	if c.EncryptionKey == "" {
		c.EncryptionKey = c.readEncryptionKeyFromEnvFile()
	}

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return c, nil
}

func (c *Config) setDefaults() {
	c.DataDir = getDefaultDataDirWithEnv(c.env)
	c.LogLevel = "info"
	c.LogFormat = "text"
	c.ColorEnabled = true
	c.HTTPHost = "127.0.0.1"
	c.HTTPPort = 5000
	c.GitTimeout = 5 * time.Minute
	c.DockerCommand = "docker"
	c.DefaultNamespace = "localuser"
	c.ManagedCommand = "npx"
	c.ManagedArgs = []string{"vercel", "deploy", "--prod"}
	c.SimulatedBuildDelay = 2 * time.Second
	c.SimulatedDeployDelay = 3 * time.Second
	c.SimulatedFailureRate = 0.3
	c.LiveDomain = "vercel.app"
	c.InferenceURL = "http://localhost:11434"
	c.InferenceModel = "tinyllama"
	c.InferenceTimeout = 60 * time.Second
	c.BuildSweepInterval = time.Hour
	c.BuildRetention = 24 * time.Hour
	// Don't set default encryption key - it must be provided explicitly
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	setString(&c.DataDir, f.DataDir)
	setString(&c.DatabasePath, f.DatabasePath)
	setString(&c.LogLevel, f.LogLevel)
	setString(&c.LogFormat, f.LogFormat)
	if f.ColorEnabled != nil {
		c.ColorEnabled = *f.ColorEnabled
	}
	setString(&c.HTTPHost, f.HTTP.Host)
	if f.HTTP.Port != 0 {
		c.HTTPPort = f.HTTP.Port
	}
	setDuration(&c.GitTimeout, f.Git.Timeout)
	setString(&c.DockerCommand, f.Docker.Command)
	setString(&c.DockerHost, f.Docker.Host)
	setString(&c.DefaultNamespace, f.Docker.Namespace)
	setString(&c.ManagedCommand, f.Managed.Command)
	if len(f.Managed.Args) > 0 {
		c.ManagedArgs = f.Managed.Args
	}
	setDuration(&c.SimulatedBuildDelay, f.Simulated.BuildDelay)
	setDuration(&c.SimulatedDeployDelay, f.Simulated.DeployDelay)
	if f.Simulated.FailureRate != nil {
		c.SimulatedFailureRate = *f.Simulated.FailureRate
	}
	setString(&c.LiveDomain, f.Simulated.LiveDomain)
	setString(&c.InferenceURL, f.Inference.URL)
	setString(&c.InferenceModel, f.Inference.Model)
	setDuration(&c.InferenceTimeout, f.Inference.Timeout)
	setDuration(&c.JobTimeout, f.JobTimeout)
	if f.Builds.SweepInterval != nil {
		c.BuildSweepInterval = *f.Builds.SweepInterval
	}
	if f.Builds.Retention != nil {
		c.BuildRetention = *f.Builds.Retention
	}
	setString(&c.EncryptionKey, f.EncryptionKey)

	return nil
}

func (c *Config) loadFromEnv() {
	c.envString("DATA_DIR", &c.DataDir)
	c.envString("DATABASE_PATH", &c.DatabasePath)
	c.envString("LOG_LEVEL", &c.LogLevel)
	c.envString("LOG_FORMAT", &c.LogFormat)
	if v := c.getenv("COLOR_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.ColorEnabled = enabled
		}
	}
	c.envString("HTTP_HOST", &c.HTTPHost)
	if v := c.getenv("HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HTTPPort = port
		}
	}
	c.envDuration("GIT_TIMEOUT", &c.GitTimeout)
	c.envString("DOCKER_COMMAND", &c.DockerCommand)
	c.envString("DOCKER_HOST", &c.DockerHost)
	c.envString("DEFAULT_NAMESPACE", &c.DefaultNamespace)
	c.envString("MANAGED_COMMAND", &c.ManagedCommand)
	if v := c.getenv("MANAGED_ARGS"); v != "" {
		c.ManagedArgs = strings.Fields(v)
	}
	c.envDuration("SIMULATED_BUILD_DELAY", &c.SimulatedBuildDelay)
	c.envDuration("SIMULATED_DEPLOY_DELAY", &c.SimulatedDeployDelay)
	if v := c.getenv("SIMULATED_FAILURE_RATE"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil {
			c.SimulatedFailureRate = rate
		}
	}
	c.envString("LIVE_DOMAIN", &c.LiveDomain)
	c.envString("INFERENCE_URL", &c.InferenceURL)
	c.envString("INFERENCE_MODEL", &c.InferenceModel)
	c.envDuration("INFERENCE_TIMEOUT", &c.InferenceTimeout)
	c.envDuration("JOB_TIMEOUT", &c.JobTimeout)
	c.envDuration("BUILD_SWEEP_INTERVAL", &c.BuildSweepInterval)
	c.envDuration("BUILD_RETENTION", &c.BuildRetention)
	c.envString("ENCRYPTION_KEY", &c.EncryptionKey)
}

func (c *Config) getenv(name string) string {
	return c.env.Getenv(EnvPrefix + name)
}

func (c *Config) envString(name string, dst *string) {
	setString(dst, c.getenv(name))
}

func (c *Config) envDuration(name string, dst *time.Duration) {
	if v := c.getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// readEncryptionKeyFromEnvFile reads LAUNCHPAD_ENCRYPTION_KEY from the .env file in the data directory
func (c *Config) readEncryptionKeyFromEnvFile() string {
	envVars, err := godotenv.Read(filepath.Join(c.DataDir, EnvFile))
	if err != nil {
		// .env file doesn't exist or can't be read, that's okay
		return ""
	}
	return envVars[EncryptionKeyEnv]
}

func (c *Config) derivePaths() {
	c.TmpDir = filepath.Join(c.DataDir, TmpDir)
	c.BuildsDir = filepath.Join(c.TmpDir, BuildsDir)

	if c.DatabasePath == "" {
		c.DatabasePath = filepath.Join(c.DataDir, DatabaseFile)
	}
}

func (c *Config) validate() error {
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warning": true, "error": true, "silent": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warning, error or silent)", c.LogLevel)
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.LogFormat)
	}

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d (must be 1-65535)", c.HTTPPort)
	}

	if c.GitTimeout <= 0 {
		return fmt.Errorf("git timeout must be positive, got: %v", c.GitTimeout)
	}

	if c.DockerCommand == "" {
		return fmt.Errorf("docker command cannot be empty")
	}

	if c.ManagedCommand == "" {
		return fmt.Errorf("managed deploy command cannot be empty")
	}

	if c.SimulatedBuildDelay < 0 || c.SimulatedDeployDelay < 0 {
		return fmt.Errorf("simulated delays cannot be negative")
	}

	if c.SimulatedFailureRate < 0 || c.SimulatedFailureRate > 1 {
		return fmt.Errorf("simulated failure rate must be between 0 and 1, got: %v", c.SimulatedFailureRate)
	}

	if c.InferenceModel == "" {
		return fmt.Errorf("inference model cannot be empty")
	}

	if c.InferenceTimeout <= 0 {
		return fmt.Errorf("inference timeout must be positive, got: %v", c.InferenceTimeout)
	}

	if c.JobTimeout < 0 {
		return fmt.Errorf("job timeout cannot be negative, got: %v", c.JobTimeout)
	}

	if c.BuildSweepInterval < 0 || c.BuildRetention < 0 {
		return fmt.Errorf("build sweep interval and retention cannot be negative")
	}

	if c.EncryptionKey == "" {
		return fmt.Errorf(
			"encryption key is required - set %s environment variable or ensure %s file exists in data directory (%s)",
			EncryptionKeyEnv, EnvFile, c.DataDir,
		)
	}

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
