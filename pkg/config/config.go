package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Env       string `yaml:"env"`
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
	Port      int    `yaml:"port"`

	LogsDir               string `yaml:"logsDir"`
	CircuitDir            string `yaml:"circuitDir"`
	StateDir              string `yaml:"stateDir"`
	SnapshotGlob          string `yaml:"snapshotGlob"`
	EventLogGlob          string `yaml:"eventLogGlob"`
	AmplitudeGlob         string `yaml:"amplitudeGlob"`
	CombinedAmplitudeFile string `yaml:"combinedAmplitudeFile"`
	CircuitTemplate       string `yaml:"circuitTemplate"`
	Qubits                int    `yaml:"qubits"`

	SetupTaskType       string `yaml:"setupTaskType"`
	MeasurementTaskType string `yaml:"measurementTaskType"`
	TargetSamples       int64  `yaml:"targetSamples"`
	// Rounding digits per export. SummaryDigits applies to the phase
	// statistics table; zero means whole seconds.
	SummaryDigits  *int `yaml:"summaryDigits"`
	SamplingDigits *int `yaml:"samplingDigits"`
	DurationDigits *int `yaml:"durationDigits"`

	Backend        BackendConfig     `yaml:"backend"`
	Tracing        TracingConfig     `yaml:"tracing"`
	PushgatewayURL string            `yaml:"pushgatewayUrl"`
	Persistence    PersistenceConfig `yaml:"persistence"`
}

type BackendConfig struct {
	Command        string `yaml:"command"`
	SetupDevice    string `yaml:"setupDevice"`
	SamplingDevice string `yaml:"samplingDevice"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sampleRatio"`
}

// PersistenceConfig selects the report store. An empty Type disables it.
type PersistenceConfig struct {
	Type   string         `yaml:"type"`
	Config map[string]any `yaml:"config"`
}

// RawConfig returns the provider config as JSON for the plugin factory.
func (p PersistenceConfig) RawConfig() (json.RawMessage, error) {
	if len(p.Config) == 0 {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(p.Config)
}

// WorkerIdentity names one worker process. JobID keys both output files.
type WorkerIdentity struct {
	JobID  string
	TaskID string
	Node   string
}

// ResolveIdentity reads scheduler ids from the environment. When no job id
// is available a random one is generated.
func ResolveIdentity() WorkerIdentity {
	id := WorkerIdentity{
		JobID:  strings.TrimSpace(os.Getenv("SLURM_JOB_ID")),
		TaskID: strings.TrimSpace(os.Getenv("SLURM_ARRAY_TASK_ID")),
		Node:   strings.TrimSpace(os.Getenv("SLURMD_NODENAME")),
	}
	if v := strings.TrimSpace(os.Getenv("XEBENCH_JOB_ID")); v != "" {
		id.JobID = v
	}
	if id.JobID == "" {
		id.JobID = "local-" + uuid.NewString()
	}
	return id
}

// LoadConfigOptional loads filePath when it exists; otherwise it starts from
// an empty config. Env overrides and defaults apply either way.
func LoadConfigOptional(filePath string) (*Config, error) {
	filePath = strings.TrimSpace(filePath)
	if filePath == "" {
		return finish(&Config{}), nil
	}
	cfg, err := LoadConfig(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return finish(&Config{}), nil
	}
	return cfg, err
}

func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filePath, err)
	}
	return finish(&c), nil
}

func finish(c *Config) *Config {
	applyEnv(c)
	applyDefaults(c)
	log.Printf("xebench config: {Logs:%s Circuits:%s State:%s Qubits:%d Setup:%q Measurement:%q}\n",
		c.LogsDir, c.CircuitDir, c.StateDir, c.Qubits, c.SetupTaskType, c.MeasurementTaskType)
	return c
}

func applyEnv(c *Config) {
	if v := os.Getenv("XEBENCH_ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("XEBENCH_LOGS_DIR"); v != "" {
		c.LogsDir = v
	}
	if v := os.Getenv("XEBENCH_CIRCUIT_DIR"); v != "" {
		c.CircuitDir = v
	}
	if v := os.Getenv("XEBENCH_STATE_DIR"); v != "" {
		c.StateDir = v
	}
	if v := os.Getenv("XEBENCH_QUBITS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Qubits = n
		}
	}
	if v := os.Getenv("XEBENCH_TARGET_SAMPLES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.TargetSamples = n
		}
	}
	if v := os.Getenv("XEBENCH_SUMMARY_DIGITS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.SummaryDigits = &n
		}
	}
	if v := os.Getenv("XEBENCH_BACKEND_COMMAND"); v != "" {
		c.Backend.Command = v
	}
	if v := os.Getenv("XEBENCH_PUSHGATEWAY_URL"); v != "" {
		c.PushgatewayURL = v
	}
	if v := os.Getenv("XEBENCH_PERSISTENCE"); v != "" {
		c.Persistence.Type = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		if c.Persistence.Config == nil {
			c.Persistence.Config = map[string]any{}
		}
		c.Persistence.Config["addr"] = v
	}
	if v := os.Getenv("OTEL_TRACING_ENABLED"); v != "" {
		c.Tracing.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
}

func intPtr(n int) *int { return &n }

func applyDefaults(c *Config) {
	if c.Env == "" {
		c.Env = "dev"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.LogsDir == "" {
		c.LogsDir = "./logs"
	}
	if c.CircuitDir == "" {
		c.CircuitDir = "./qasm"
	}
	if c.StateDir == "" {
		c.StateDir = "./state"
	}
	if c.SnapshotGlob == "" {
		c.SnapshotGlob = "*.json"
	}
	if c.EventLogGlob == "" {
		c.EventLogGlob = "*.log"
	}
	if c.AmplitudeGlob == "" {
		c.AmplitudeGlob = "qr_amplitudes_circuit_*.txt"
	}
	if c.CombinedAmplitudeFile == "" {
		c.CombinedAmplitudeFile = "qr_amplitudes_combined.txt"
	}
	if c.CircuitTemplate == "" {
		c.CircuitTemplate = "circuit_n%d_m14_s0_e0_pEFGH.qasm"
	}
	if c.Qubits <= 0 {
		c.Qubits = 53
	}
	if c.SetupTaskType == "" {
		c.SetupTaskType = "First Shot Overall"
	}
	if c.MeasurementTaskType == "" {
		c.MeasurementTaskType = "Subsequent Shots Overall"
	}
	if c.TargetSamples <= 0 {
		c.TargetSamples = 2_500_000
	}
	if c.SummaryDigits == nil {
		c.SummaryDigits = intPtr(0)
	}
	if c.SamplingDigits == nil {
		c.SamplingDigits = intPtr(1)
	}
	if c.DurationDigits == nil {
		c.DurationDigits = intPtr(4)
	}
	if c.Backend.SetupDevice == "" {
		c.Backend.SetupDevice = "amber_quantum_rings"
	}
	if c.Backend.SamplingDevice == "" {
		c.Backend.SamplingDevice = "scarlet_quantum_rings"
	}
	if c.Tracing.SampleRatio <= 0 || c.Tracing.SampleRatio > 1 {
		c.Tracing.SampleRatio = 1
	}
}

func (c *Config) Validate() error {
	var errs []string
	if strings.TrimSpace(c.SetupTaskType) == strings.TrimSpace(c.MeasurementTaskType) {
		errs = append(errs, "setupTaskType and measurementTaskType must differ")
	}
	if !strings.Contains(c.CircuitTemplate, "%d") {
		errs = append(errs, "circuitTemplate must contain %d for the qubit count")
	}
	for name, d := range map[string]*int{"summaryDigits": c.SummaryDigits, "samplingDigits": c.SamplingDigits, "durationDigits": c.DurationDigits} {
		if d != nil && (*d < 0 || *d > 9) {
			errs = append(errs, name+" must be between 0 and 9")
		}
	}
	if c.PushgatewayURL != "" {
		u, err := url.Parse(c.PushgatewayURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, "pushgatewayUrl must be a valid http(s) URL")
		}
	}
	switch c.Persistence.Type {
	case "", "memory":
	case "redis":
		if addr, _ := c.Persistence.Config["addr"].(string); strings.TrimSpace(addr) == "" {
			errs = append(errs, "persistence.config.addr is required for redis")
		}
	default:
		errs = append(errs, "persistence.type must be one of: memory, redis")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
