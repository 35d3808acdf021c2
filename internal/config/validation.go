package config

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
)

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("field %s failed %q validation (value %v)", first.Namespace(), first.Tag(), first.Value())
		}
		return err
	}

	seen := make(map[string]struct{}, len(c.Supervisor.Bots))
	for _, b := range c.Supervisor.Bots {
		if _, dup := seen[b.Name]; dup {
			return fmt.Errorf("duplicate bot name %q", b.Name)
		}
		seen[b.Name] = struct{}{}
	}

	keys := make(map[string]struct{}, len(c.Records.Movements))
	for _, m := range c.Records.Movements {
		if _, dup := keys[m.Key]; dup {
			return fmt.Errorf("duplicate movement key %q", m.Key)
		}
		keys[m.Key] = struct{}{}
	}

	for name, task := range c.Scheduler.Tasks {
		if !task.Enabled {
			continue
		}
		if task.Schedule == "" && task.Interval <= 0 {
			return fmt.Errorf("task %s needs a schedule or a positive interval", name)
		}
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	return nil
}

// Location returns the timezone used for report dates.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Reports.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid reports.timezone %q: %w", c.Reports.Timezone, err)
	}
	return loc, nil
}

// RequireToken returns the token or an error naming the missing key.
func RequireToken(key, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: %s is required", ErrConfiguration, key)
	}
	return token, nil
}
