package coordinator

import (
	"fmt"
	"reflect"
	"time"

	"github.com/c360studio/semstreams/component"
)

// coordinatorSchema defines the configuration schema.
var coordinatorSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Config holds configuration for the coordinator component.
type Config struct {
	// StreamName is the JetStream stream carrying routing events.
	StreamName string `json:"stream_name" schema:"type:string,description:JetStream stream for routing events,category:basic,default:ROUTE"`

	// SignalConsumerName is the durable consumer name for tool signals.
	SignalConsumerName string `json:"signal_consumer_name" schema:"type:string,description:Durable consumer name for tool signals,category:basic,default:coordinator-signals"`

	// PlanConsumerName is the durable consumer name for plan events.
	PlanConsumerName string `json:"plan_consumer_name" schema:"type:string,description:Durable consumer name for plan events,category:basic,default:coordinator-plans"`

	// SignalSubject is the subject carrying tool signals.
	SignalSubject string `json:"signal_subject" schema:"type:string,description:Subject for inbound tool signals,category:basic,default:route.signal.tool"`

	// PlanSubject is the subject carrying plan events.
	PlanSubject string `json:"plan_subject" schema:"type:string,description:Subject for inbound plan events,category:basic,default:route.plan"`

	// ResultSubject is the subject result events are published to.
	ResultSubject string `json:"result_subject" schema:"type:string,description:Subject for published result events,category:basic,default:route.result"`

	// InvokerURL is the base URL of the tool invocation service.
	InvokerURL string `json:"invoker_url" schema:"type:string,description:Base URL of the tool invocation service,category:basic"`

	// ClaimTTL is how long a resolution claim blocks re-claiming.
	ClaimTTL string `json:"claim_ttl" schema:"type:string,description:How long a resolution claim blocks re-claiming,category:advanced,default:5m"`

	// Ports contains input/output port definitions.
	Ports *component.PortConfig `json:"ports,omitempty" schema:"type:ports,description:Input/output port definitions,category:basic"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		StreamName:         "ROUTE",
		SignalConsumerName: "coordinator-signals",
		PlanConsumerName:   "coordinator-plans",
		SignalSubject:      "route.signal.tool",
		PlanSubject:        "route.plan",
		ResultSubject:      "route.result",
		ClaimTTL:           "5m",
		Ports: &component.PortConfig{
			Inputs: []component.PortDefinition{
				{
					Name:        "tool-signals",
					Type:        "jetstream",
					Subject:     "route.signal.tool",
					StreamName:  "ROUTE",
					Description: "Receive tool signals from the matcher",
					Required:    true,
				},
				{
					Name:        "plans",
					Type:        "jetstream",
					Subject:     "route.plan",
					StreamName:  "ROUTE",
					Description: "Receive fallback plans from external planners",
					Required:    false,
				},
			},
			Outputs: []component.PortDefinition{
				{
					Name:        "results",
					Type:        "jetstream",
					Subject:     "route.result",
					Description: "Publish one result per resolved request",
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
	if c.SignalConsumerName == "" {
		return fmt.Errorf("signal_consumer_name is required")
	}
	if c.PlanConsumerName == "" {
		return fmt.Errorf("plan_consumer_name is required")
	}
	if c.SignalSubject == "" {
		return fmt.Errorf("signal_subject is required")
	}
	if c.PlanSubject == "" {
		return fmt.Errorf("plan_subject is required")
	}
	if c.ResultSubject == "" {
		return fmt.Errorf("result_subject is required")
	}
	if c.ClaimTTL != "" {
		if _, err := time.ParseDuration(c.ClaimTTL); err != nil {
			return fmt.Errorf("invalid claim_ttl: %w", err)
		}
	}
	return nil
}

// GetClaimTTL returns the claim TTL duration. Returns 5m if unset or invalid.
func (c *Config) GetClaimTTL() time.Duration {
	if c.ClaimTTL == "" {
		return 5 * time.Minute
	}
	d, err := time.ParseDuration(c.ClaimTTL)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}
