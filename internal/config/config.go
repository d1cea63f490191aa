package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type ExtractionPrompts struct {
	// Document is a fmt template with two slots: the prior-context section
	// and the chunk text.
	Document string `toml:"document"`
}

type LLMConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
}

type Neo4jConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type PipelineConfig struct {
	BatchSize        int     `toml:"batch_size"`
	ChunkSize        int     `toml:"chunk_size"`
	ChunkOverlap     int     `toml:"chunk_overlap"`
	MatchThreshold   float64 `toml:"match_threshold"`
	AbstainThreshold float64 `toml:"abstain_threshold"`
}

type Config struct {
	LLM        LLMConfig         `toml:"llm"`
	Neo4j      Neo4jConfig       `toml:"neo4j"`
	Pipeline   PipelineConfig    `toml:"pipeline"`
	Extraction ExtractionPrompts `toml:"extraction"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Pipeline.BatchSize <= 0 {
		c.Pipeline.BatchSize = 100
	}
	if c.Pipeline.ChunkSize <= 0 {
		c.Pipeline.ChunkSize = 1500
	}
	if c.Pipeline.ChunkOverlap <= 0 {
		c.Pipeline.ChunkOverlap = 200
	}
	// The 0.8/0.5 similarity bands are policy parameters, not a contract.
	if c.Pipeline.MatchThreshold <= 0 {
		c.Pipeline.MatchThreshold = 0.8
	}
	if c.Pipeline.AbstainThreshold <= 0 {
		c.Pipeline.AbstainThreshold = 0.5
	}
}
