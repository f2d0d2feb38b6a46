package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when neither the project file nor the environment sets a value.
const (
	DefaultBaseURL     = "https://api.groq.com/openai/v1"
	DefaultTextModel   = "openai/gpt-oss-120b"
	DefaultVisionModel = "meta-llama/llama-4-maverick-17b-128e-instruct"
	DefaultPython      = "python3"
	DefaultOutputDir   = ".chartwise"
	DefaultKPITemplate = "For the given KPI, plot a graph highlighting the specific datapoints"
)

// Duration is a time.Duration that unmarshals from YAML strings such as "30s".
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// LLMConfig configures the OpenAI-compatible generation endpoint.
type LLMConfig struct {
	BaseURL        string   `yaml:"baseURL,omitempty"`
	APIKeyEnv      string   `yaml:"apiKeyEnv,omitempty"`
	TextModel      string   `yaml:"textModel,omitempty"`
	VisionModel    string   `yaml:"visionModel,omitempty"`
	Temperature    *float64 `yaml:"temperature,omitempty"`
	MaxRetries     int      `yaml:"maxRetries,omitempty"`
	RequestTimeout Duration `yaml:"requestTimeout,omitempty"`

	// APIKey is resolved from the environment, never from the file.
	APIKey string `yaml:"-"`
}

// RenderConfig configures the chart rendering sandbox.
type RenderConfig struct {
	Python  string   `yaml:"python,omitempty"`
	Timeout Duration `yaml:"timeout,omitempty"`
}

// ProjectConfig holds settings loaded from chartwise.yml.
type ProjectConfig struct {
	Database    string       `yaml:"database,omitempty"`
	LLM         LLMConfig    `yaml:"llm,omitempty"`
	Render      RenderConfig `yaml:"render,omitempty"`
	RunTimeout  Duration     `yaml:"runTimeout,omitempty"`
	Workers     int          `yaml:"workers,omitempty"`
	IdeaCount   int          `yaml:"ideaCount,omitempty"`
	KPICount    int          `yaml:"kpiCount,omitempty"`
	KPITemplate string       `yaml:"kpiTemplate,omitempty"`
	OutputDir   string       `yaml:"outputDir,omitempty"`
}

// Load reads chartwise.yml or chartwise.yaml from dir, applies environment
// overrides and fills defaults. A missing file is not an error.
func Load(dir string) (*ProjectConfig, error) {
	cfg := &ProjectConfig{}
	for _, name := range []string{"chartwise.yml", "chartwise.yaml"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", name, err)
		}
		break
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *ProjectConfig) applyEnv() {
	c.Database = getEnv("CHARTWISE_DB", c.Database)
	c.LLM.BaseURL = getEnv("CHARTWISE_BASE_URL", c.LLM.BaseURL)
	c.Render.Python = getEnv("CHARTWISE_PYTHON", c.Render.Python)
	if v := getEnv("CHARTWISE_WORKERS", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}

	keys := []string{"CHARTWISE_API_KEY", "GROQ_API_KEY", "OPENAI_API_KEY"}
	if c.LLM.APIKeyEnv != "" {
		keys = append([]string{c.LLM.APIKeyEnv}, keys...)
	}
	for _, k := range keys {
		if v := getEnv(k, ""); v != "" {
			c.LLM.APIKey = v
			break
		}
	}
}

func (c *ProjectConfig) applyDefaults() {
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = DefaultBaseURL
	}
	if c.LLM.TextModel == "" {
		c.LLM.TextModel = DefaultTextModel
	}
	if c.LLM.VisionModel == "" {
		c.LLM.VisionModel = DefaultVisionModel
	}
	if c.LLM.MaxRetries == 0 {
		c.LLM.MaxRetries = 2
	}
	if c.LLM.RequestTimeout == 0 {
		c.LLM.RequestTimeout = Duration(90 * time.Second)
	}
	if c.Render.Python == "" {
		c.Render.Python = DefaultPython
	}
	if c.Render.Timeout == 0 {
		c.Render.Timeout = Duration(30 * time.Second)
	}
	if c.RunTimeout == 0 {
		c.RunTimeout = Duration(3 * time.Minute)
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.IdeaCount <= 0 {
		c.IdeaCount = 5
	}
	if c.KPICount <= 0 {
		c.KPICount = 3
	}
	if c.KPITemplate == "" {
		c.KPITemplate = DefaultKPITemplate
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
}

// getEnv returns the environment value for key, or fallback when unset.
func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
