package application

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"gridflow/internal/condition"
	trigger "gridflow/internal/trigger/domain"
)

// ThresholdConfig is one threshold definition in the YAML config file.
type ThresholdConfig struct {
	ID             string `yaml:"id"`
	OrganizationID string `yaml:"organization_id"`
	WorkflowID     string `yaml:"workflow_id"`
	Field          string `yaml:"field"`
	Operator       string `yaml:"operator"`
	Value          any    `yaml:"value"`
	Description    string `yaml:"description"`
}

// Config is the trigger configuration file layout.
type Config struct {
	Thresholds []ThresholdConfig `yaml:"thresholds"`
}

// LoadConfig reads threshold definitions from a YAML file. A missing path
// yields an empty config.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("trigger config: %w", err)
	}
	return cfg, nil
}

// RegisterConfigured registers every configured threshold into the
// coordinator. Returns the number registered.
func (c *Coordinator) RegisterConfigured(ctx context.Context, cfg Config) (int, error) {
	registered := 0
	for _, entry := range cfg.Thresholds {
		threshold := trigger.Threshold{
			ID:             entry.ID,
			OrganizationID: entry.OrganizationID,
			WorkflowID:     entry.WorkflowID,
			MetricField:    entry.Field,
			Operator:       condition.Operator(entry.Operator),
			Value:          entry.Value,
			Description:    entry.Description,
		}
		if err := c.RegisterThreshold(ctx, threshold); err != nil {
			return registered, fmt.Errorf("trigger config: threshold %s: %w", entry.ID, err)
		}
		registered++
	}
	return registered, nil
}
