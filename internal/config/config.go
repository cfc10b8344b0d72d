// Package config provides configuration loading and management for TrueScore.
package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration for TrueScore.
type Config struct {
	Harness   HarnessConfig   `toml:"harness"`
	Sandbox   SandboxConfig   `toml:"sandbox"`
	Linter    LinterConfig    `toml:"linter"`
	LLM       LLMConfig       `toml:"llm"`
	Scoring   ScoringConfig   `toml:"scoring"`
	Consensus ConsensusConfig `toml:"consensus"`
	Audit     AuditConfig     `toml:"audit"`
}

// HarnessConfig contains harness-wide settings.
type HarnessConfig struct {
	ProblemsDir string `toml:"problems_dir"`
	OutputDir   string `toml:"output_dir"`
	Workers     int    `toml:"workers"`
}

// SandboxConfig contains sandbox executor settings.
type SandboxConfig struct {
	Python         string   `toml:"python"`          // Interpreter binary name or path
	TimeoutSeconds int      `toml:"timeout_seconds"` // Per-invocation wall-clock timeout
	BudgetSeconds  int      `toml:"budget_seconds"`  // Whole-suite wall-clock budget
	SafeImports    []string `toml:"safe_imports"`    // Import allow-list for submissions
}

// LinterConfig contains static-analysis collaborator settings.
type LinterConfig struct {
	Command        string   `toml:"command"`
	Args           []string `toml:"args"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// LLMConfig contains LLM provider and routing settings.
type LLMConfig struct {
	Enabled        bool     `toml:"enabled"`
	BaseURL        string   `toml:"base_url"`
	APIKeyEnv      string   `toml:"api_key_env"` // Environment variable holding the key
	Models         []string `toml:"models"`      // Ordered fallback list
	Attempts       int      `toml:"attempts"`    // Transport attempts per model
	TimeoutSeconds int      `toml:"timeout_seconds"`
	MaxTokens      int      `toml:"max_tokens"`
	Temperature    float64  `toml:"temperature"`
	BackoffMillis  int      `toml:"backoff_ms"` // Initial retry backoff
}

// Weights holds the per-dimension weights for the aggregate score.
type Weights struct {
	Correctness float64 `toml:"correctness" json:"correctness"`
	EdgeCases   float64 `toml:"edge_cases"  json:"edge_cases"`
	Complexity  float64 `toml:"complexity"  json:"complexity"`
	Style       float64 `toml:"style"       json:"style"`
	Clarity     float64 `toml:"clarity"     json:"clarity"`
}

// Sum returns the total of all dimension weights.
func (w Weights) Sum() float64 {
	return w.Correctness + w.EdgeCases + w.Complexity + w.Style + w.Clarity
}

// ScoringConfig contains rubric weighting and blend settings.
type ScoringConfig struct {
	Weights     Weights `toml:"weights"`
	LLMWeight   float64 `toml:"llm_weight"`   // Base fraction of the final score from the LLM
	FlagPenalty float64 `toml:"flag_penalty"` // LLM weight multiplier when an evaluation is flagged
}

// ConsensusConfig contains consensus-merge settings.
type ConsensusConfig struct {
	SpreadThreshold float64 `toml:"spread_threshold"` // Inter-agent spread that triggers an uncertainty flag
}

// AuditConfig contains hallucination-audit thresholds.
type AuditConfig struct {
	HighCorrectness float64 `toml:"high_correctness"` // Claim at or above this is "high"
	LowPassRate     float64 `toml:"low_pass_rate"`    // Pass rate at or below this is "low"
	HighStyle       float64 `toml:"high_style"`
	MaxFindings     int     `toml:"max_findings"` // Finding count above this contradicts a high style claim
	HighConfidence  float64 `toml:"high_confidence"`
	MinCitations    int     `toml:"min_citations"`
}

// Default configuration values.
var Default = Config{
	Harness: HarnessConfig{
		ProblemsDir: "./problems",
		OutputDir:   "./results",
		Workers:     4,
	},
	Sandbox: SandboxConfig{
		Python:         "python3",
		TimeoutSeconds: 3,
		BudgetSeconds:  15,
		SafeImports: []string{
			"math", "collections", "itertools", "functools", "heapq",
			"bisect", "string", "re", "typing", "dataclasses", "enum",
			"copy", "operator", "statistics",
		},
	},
	Linter: LinterConfig{
		Command:        "ruff",
		Args:           []string{"check", "--output-format", "json", "--select", "E,W,F,C,N,B"},
		TimeoutSeconds: 10,
	},
	LLM: LLMConfig{
		Enabled:        true,
		BaseURL:        "https://router.huggingface.co/v1",
		APIKeyEnv:      "HF_TOKEN",
		Models:         []string{"Qwen/Qwen2.5-Coder-7B-Instruct", "Qwen/Qwen2.5-Coder-1.5B-Instruct"},
		Attempts:       3,
		TimeoutSeconds: 120,
		MaxTokens:      800,
		Temperature:    0.2,
		BackoffMillis:  1000,
	},
	Scoring: ScoringConfig{
		Weights: Weights{
			Correctness: 0.35,
			EdgeCases:   0.20,
			Complexity:  0.15,
			Style:       0.15,
			Clarity:     0.15,
		},
		LLMWeight:   0.4,
		FlagPenalty: 0.5,
	},
	Consensus: ConsensusConfig{
		SpreadThreshold: 2.0,
	},
	Audit: AuditConfig{
		HighCorrectness: 8.0,
		LowPassRate:     0.5,
		HighStyle:       8.0,
		MaxFindings:     5,
		HighConfidence:  0.8,
		MinCitations:    2,
	},
}

// configPaths returns the list of paths to search for config files.
func configPaths() []string {
	paths := []string{"./truescore.toml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".truescore.toml"))
		paths = append(paths, filepath.Join(home, ".config", "truescore", "config.toml"))
	}

	return paths
}

// Load loads configuration from a file or discovers it automatically.
// If configFile is empty, it searches standard locations.
// Returns default config if no file is found.
func Load(configFile string) (*Config, error) {
	cfg := Default // Start with defaults

	var path string
	if configFile != "" {
		path = configFile
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
	} else {
		for _, p := range configPaths() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	if path == "" {
		return &cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	// Ensure critical fields aren't zeroed out by partial config
	if cfg.Harness.ProblemsDir == "" {
		cfg.Harness.ProblemsDir = Default.Harness.ProblemsDir
	}
	if cfg.Harness.OutputDir == "" {
		cfg.Harness.OutputDir = Default.Harness.OutputDir
	}
	if cfg.Harness.Workers <= 0 {
		cfg.Harness.Workers = Default.Harness.Workers
	}
	if cfg.Sandbox.Python == "" {
		cfg.Sandbox.Python = Default.Sandbox.Python
	}
	if cfg.Sandbox.TimeoutSeconds <= 0 {
		cfg.Sandbox.TimeoutSeconds = Default.Sandbox.TimeoutSeconds
	}
	if cfg.Sandbox.BudgetSeconds <= 0 {
		cfg.Sandbox.BudgetSeconds = Default.Sandbox.BudgetSeconds
	}
	if len(cfg.Sandbox.SafeImports) == 0 {
		cfg.Sandbox.SafeImports = Default.Sandbox.SafeImports
	}
	if cfg.Linter.Command == "" {
		cfg.Linter = Default.Linter
	}
	if cfg.Linter.TimeoutSeconds <= 0 {
		cfg.Linter.TimeoutSeconds = Default.Linter.TimeoutSeconds
	}
	if cfg.LLM.Attempts <= 0 {
		cfg.LLM.Attempts = Default.LLM.Attempts
	}
	if cfg.LLM.TimeoutSeconds <= 0 {
		cfg.LLM.TimeoutSeconds = Default.LLM.TimeoutSeconds
	}
	if cfg.LLM.MaxTokens <= 0 {
		cfg.LLM.MaxTokens = Default.LLM.MaxTokens
	}
	if cfg.LLM.BackoffMillis <= 0 {
		cfg.LLM.BackoffMillis = Default.LLM.BackoffMillis
	}

	return &cfg, nil
}

// Validate checks the configuration for faults and degrades rather than
// failing: invalid values are reset to defaults and a warning is returned
// for each adjustment. Evaluation proceeds in the most degraded mode that is
// still well-defined (deterministic-only at worst).
func (c *Config) Validate(logger *slog.Logger) []string {
	var warnings []string

	warn := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		warnings = append(warnings, msg)
		if logger != nil {
			logger.Warn(msg)
		}
	}

	if sum := c.Scoring.Weights.Sum(); math.Abs(sum-1.0) > 0.001 {
		warn("dimension weights sum to %.3f, not 1.0; using defaults", sum)
		c.Scoring.Weights = Default.Scoring.Weights
	}
	if c.Scoring.LLMWeight < 0 || c.Scoring.LLMWeight > 1 {
		warn("llm_weight %.2f outside [0,1]; using default %.2f", c.Scoring.LLMWeight, Default.Scoring.LLMWeight)
		c.Scoring.LLMWeight = Default.Scoring.LLMWeight
	}
	if c.Scoring.FlagPenalty <= 0 || c.Scoring.FlagPenalty > 1 {
		warn("flag_penalty %.2f outside (0,1]; using default %.2f", c.Scoring.FlagPenalty, Default.Scoring.FlagPenalty)
		c.Scoring.FlagPenalty = Default.Scoring.FlagPenalty
	}
	if c.Consensus.SpreadThreshold <= 0 {
		c.Consensus.SpreadThreshold = Default.Consensus.SpreadThreshold
	}

	if c.LLM.Enabled {
		if len(c.LLM.Models) == 0 {
			warn("llm enabled but no models configured; evaluating deterministic-only")
			c.LLM.Enabled = false
		} else if c.LLM.APIKeyEnv != "" && os.Getenv(c.LLM.APIKeyEnv) == "" {
			warn("credential %s not set; evaluating deterministic-only", c.LLM.APIKeyEnv)
			c.LLM.Enabled = false
		}
	}

	return warnings
}

// APIKey returns the configured provider credential, or "" if unset.
func (c *Config) APIKey() string {
	if c.LLM.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.LLM.APIKeyEnv)
}
