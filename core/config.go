package core

import (
	"fmt"
	"os"
	"path/filepath"
)

// Basic objects and methods to retrieve configuration resources without yet
// interpreting them.
//
// Resources are JSON files under a base directory. A resource is first looked up
// in a subdirectory named after the instance, so that a general configuration can
// be overriden per instance (mainly for testing), and then in the base directory
// itself.
type ConfigurationManager struct {

	// Prepended to resource names when locating them
	base string

	// Resources are searched for in base/instanceName first
	instanceName string
}

// Creates and initializes a ConfigurationManager.
// If base is empty, the PORTERO_BASE environment variable is used, and
// "resources" as a last resort
func NewConfigurationManager(base string, instanceName string) ConfigurationManager {

	if base == "" {
		base = os.Getenv("PORTERO_BASE")
	}
	if base == "" {
		base = "resources"
	}

	return ConfigurationManager{
		base:         base,
		instanceName: instanceName,
	}
}

// Reads the configuration resource with the specified name, trying the instance
// specific location first
func (c *ConfigurationManager) GetRawBytesConfigObject(objectName string) ([]byte, error) {

	if c.instanceName != "" {
		if object, err := os.ReadFile(filepath.Join(c.base, c.instanceName, objectName)); err == nil {
			return object, nil
		}
	}

	object, err := os.ReadFile(filepath.Join(c.base, objectName))
	if err != nil {
		return nil, fmt.Errorf("could not read configuration object %s: %w", objectName, err)
	}
	return object, nil
}
