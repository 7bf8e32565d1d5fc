package config

import (
	"fmt"
	"net"
)

// ValidationIssue describes a single configuration problem.
type ValidationIssue struct {
	Field   string
	Message string
}

// ValidationResult collects configuration errors and warnings.
type ValidationResult struct {
	Errors   []ValidationIssue
	Warnings []ValidationIssue
}

// IsValid returns true when no errors were found.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

func (r *ValidationResult) addError(field, format string, args ...interface{}) {
	r.Errors = append(r.Errors, ValidationIssue{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (r *ValidationResult) addWarning(field, format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, ValidationIssue{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate checks the configuration for problems.
func Validate(cfg *Config) *ValidationResult {
	res := &ValidationResult{}

	relay := cfg.GetRelay()
	if relay.NodeAddress == "" {
		res.addError("relay.node_address", "node address is required")
	} else if _, _, err := net.SplitHostPort(relay.NodeAddress); err != nil {
		res.addError("relay.node_address", "node address must be host:port: %v", err)
	}
	if relay.DialTimeoutSec <= 0 {
		res.addWarning("relay.dial_timeout_sec", "dial timeout not set, using 10s")
	}
	if relay.QueueSize <= 0 {
		res.addWarning("relay.queue_size", "queue size not set, using %d", DefaultQueueSize)
	}

	match := cfg.GetMatch()
	if len(match.Slots) == 0 {
		res.addWarning("match.slots", "no slots configured; sessions will have an empty roster")
	}
	seen := make(map[uint8]bool)
	localFound := false
	for i, slot := range match.Slots {
		if seen[slot.ID] {
			res.addError("match.slots", "duplicate slot id %d at index %d", slot.ID, i)
		}
		seen[slot.ID] = true
		if slot.ID == match.LocalSlot {
			localFound = true
		}
	}
	if len(match.Slots) > 0 && !localFound {
		res.addError("match.local_slot", "local slot %d is not in the roster", match.LocalSlot)
	}

	if cfg.API.Enabled && (cfg.API.Port <= 0 || cfg.API.Port > 65535) {
		res.addError("api.port", "invalid API port %d", cfg.API.Port)
	}
	if cfg.MQTT.Enabled && cfg.MQTT.BrokerURL == "" {
		res.addError("mqtt.broker_url", "broker URL is required when MQTT is enabled")
	}

	return res
}
