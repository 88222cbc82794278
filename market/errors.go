package market

import "fmt"

// ConfigError reports a configuration problem that must be fixed before a
// run can start: a missing contract specification, an unknown policy flag,
// an out of range parameter.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config: %s %s", e.Field, e.Reason)
}
