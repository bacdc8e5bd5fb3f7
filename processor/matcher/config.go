package matcher

import (
	"fmt"
	"reflect"
	"time"

	"github.com/c360studio/semstreams/component"
)

// matcherSchema defines the configuration schema.
var matcherSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Config holds configuration for the matcher component.
type Config struct {
	// StreamName is the JetStream stream carrying routing events.
	StreamName string `json:"stream_name" schema:"type:string,description:JetStream stream for routing events,category:basic,default:ROUTE"`

	// ConsumerName is the durable consumer name for request consumption.
	ConsumerName string `json:"consumer_name" schema:"type:string,description:Durable consumer name for request consumption,category:basic,default:matcher"`

	// RequestSubject is the subject carrying request events.
	RequestSubject string `json:"request_subject" schema:"type:string,description:Subject for incoming request events,category:basic,default:route.request"`

	// SignalSubject is the subject tool signals are published to.
	SignalSubject string `json:"signal_subject" schema:"type:string,description:Subject for emitted tool signals,category:basic,default:route.signal.tool"`

	// RegistryURL is the base URL of the tool registry service.
	RegistryURL string `json:"registry_url" schema:"type:string,description:Base URL of the tool registry service,category:basic"`

	// ConfidenceThreshold is the minimum confidence to accept a match.
	ConfidenceThreshold float64 `json:"confidence_threshold" schema:"type:float,description:Minimum confidence to accept a match,category:advanced,default:0.7,min:0,max:1"`

	// RulesFile is an optional YAML file of routing rules. When empty the
	// built-in rule table is used.
	RulesFile string `json:"rules_file,omitempty" schema:"type:string,description:Optional YAML file of routing rules,category:advanced"`

	// WatchRules enables hot reload of the rules file on change.
	WatchRules bool `json:"watch_rules" schema:"type:bool,description:Reload the rules file when it changes,category:advanced,default:false"`

	// Ports contains input/output port definitions.
	Ports *component.PortConfig `json:"ports,omitempty" schema:"type:ports,description:Input/output port definitions,category:basic"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		StreamName:          "ROUTE",
		ConsumerName:        "matcher",
		RequestSubject:      "route.request",
		SignalSubject:       "route.signal.tool",
		ConfidenceThreshold: 0.7,
		Ports: &component.PortConfig{
			Inputs: []component.PortDefinition{
				{
					Name:        "requests",
					Type:        "jetstream",
					Subject:     "route.request",
					StreamName:  "ROUTE",
					Description: "Receive normalized request events",
					Required:    true,
				},
			},
			Outputs: []component.PortDefinition{
				{
					Name:        "tool-signals",
					Type:        "jetstream",
					Subject:     "route.signal.tool",
					Description: "Publish tool signals for confident matches",
					Required:    true,
				},
			},
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.StreamName == "" {
		return fmt.Errorf("stream_name is required")
	}
	if c.ConsumerName == "" {
		return fmt.Errorf("consumer_name is required")
	}
	if c.RequestSubject == "" {
		return fmt.Errorf("request_subject is required")
	}
	if c.SignalSubject == "" {
		return fmt.Errorf("signal_subject is required")
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be in [0,1]")
	}
	if c.WatchRules && c.RulesFile == "" {
		return fmt.Errorf("watch_rules requires rules_file")
	}
	return nil
}

// seenTTL bounds how long processed request ids are remembered for
// redelivery dedup.
const seenTTL = 5 * time.Minute
