package matcher

import (
	"fmt"

	"github.com/c360studio/semstreams/component"
)

// RegistryInterface defines the minimal interface needed for registration.
type RegistryInterface interface {
	RegisterWithConfig(component.RegistrationConfig) error
}

// Register registers the matcher component with the given registry.
func Register(registry RegistryInterface) error {
	if registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "matcher",
		Factory:     NewComponent,
		Schema:      matcherSchema,
		Type:        "processor",
		Protocol:    "route",
		Domain:      "semroute",
		Description: "Matches request events to registered tools via rules and similarity scoring",
		Version:     "0.1.0",
	})
}
