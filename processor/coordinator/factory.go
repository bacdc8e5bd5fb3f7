package coordinator

import (
	"fmt"

	"github.com/c360studio/semstreams/component"
)

// RegistryInterface defines the minimal interface needed for registration.
type RegistryInterface interface {
	RegisterWithConfig(component.RegistrationConfig) error
}

// Register registers the coordinator component with the given registry.
func Register(registry RegistryInterface) error {
	if registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "coordinator",
		Factory:     NewComponent,
		Schema:      coordinatorSchema,
		Type:        "processor",
		Protocol:    "route",
		Domain:      "semroute",
		Description: "Claims each request once and resolves it via tool invocation or plan pass-through",
		Version:     "0.1.0",
	})
}
