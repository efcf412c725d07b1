package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration. Struct tags cover field-level rules;
// cross-field constraints are checked explicitly afterwards.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return err
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("invalid configuration: telemetry enabled without endpoint")
	}
	if cfg.Telemetry.Profiling.Enabled && cfg.Telemetry.Profiling.Endpoint == "" {
		return fmt.Errorf("invalid configuration: profiling enabled without endpoint")
	}
	if cfg.Database.Type == "postgres" {
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("invalid configuration: postgres host is required")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("invalid configuration: postgres database is required")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("invalid configuration: postgres user is required")
		}
	}
	if cfg.Hooks.Enabled && cfg.Hooks.SchemaDir == "" && cfg.Hooks.WorkflowCommand == "" {
		return fmt.Errorf("invalid configuration: hooks enabled without schema_dir or workflow_command")
	}
	return nil
}
