package event

import (
	"errors"
	"fmt"

	"github.com/c360studio/semstreams/payloadregistry"
)

// RegisterPayloads registers all semroute payload types with the
// supplied registry. The package-level component.RegisterPayload
// helper was removed in semstreams beta.16; per the upstream
// migration guide, registration is now explicit on a process-owned
// *payloadregistry.Registry.
func RegisterPayloads(reg *payloadregistry.Registry) error {
	registrations := []*payloadregistry.Registration{
		{
			Domain:      "route",
			Category:    "request",
			Version:     "v1",
			Description: "Normalized user request entering the routing pipeline",
			Factory:     func() any { return &RequestEvent{} },
		},
		{
			Domain:      "route",
			Category:    "tool-signal",
			Version:     "v1",
			Description: "Confident tool match emitted by the matcher",
			Factory:     func() any { return &ToolSignal{} },
		},
		{
			Domain:      "route",
			Category:    "plan",
			Version:     "v1",
			Description: "External planner fallback, passed through opaquely",
			Factory:     func() any { return &PlanEvent{} },
		},
		{
			Domain:      "route",
			Category:    "result",
			Version:     "v1",
			Description: "Terminal routing outcome correlated by request id",
			Factory:     func() any { return &ResultEvent{} },
		},
	}

	var errs []error
	for _, r := range registrations {
		if err := reg.Register(r); err != nil {
			errs = append(errs, fmt.Errorf("register %s payload: %w", r.Category, err))
		}
	}
	return errors.Join(errs...)
}
