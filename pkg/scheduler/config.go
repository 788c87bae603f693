// Package scheduler fires system triggers on instances that sit in a state, on a cron schedule.
package scheduler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Job fires Trigger on every instance of the tenant's DefinitionKey currently in State.
type Job struct {
	Name          string         `mapstructure:"name"`
	Cron          string         `mapstructure:"cron"`
	TenantID      string         `mapstructure:"tenant_id"`
	DefinitionKey string         `mapstructure:"definition_key"`
	State         string         `mapstructure:"state"`
	Trigger       string         `mapstructure:"trigger"`
	Payload       map[string]any `mapstructure:"payload"`
}

type Config struct {
	Jobs []Job `mapstructure:"jobs"`
}

// LoadConfig reads the schedule table from a YAML or JSON file.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read schedule file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode schedule file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	var errs []error

	for i, job := range c.Jobs {
		if err := job.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("jobs[%d]: %w", i, err))
		}
	}

	return errors.Join(errs...)
}

func (j Job) Validate() error {
	var missing []string

	for _, field := range []struct{ name, value string }{
		{"name", j.Name},
		{"cron", j.Cron},
		{"tenant_id", j.TenantID},
		{"definition_key", j.DefinitionKey},
		{"state", j.State},
		{"trigger", j.Trigger},
	} {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("job %q is missing %s", j.Name, strings.Join(missing, ", "))
	}

	if _, err := cron.ParseStandard(j.Cron); err != nil {
		return fmt.Errorf("job %q has invalid cron expression: %w", j.Name, err)
	}

	return nil
}
