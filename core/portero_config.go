package core

import (
	"fmt"
	"os"
)

// Static configuration of the admission server, read from portero.json
type PorteroConfig struct {

	// Radius sockets
	BindAddress string
	AuthPort    int
	AcctPort    int

	// Session and router persistence
	Database struct {
		// "mysql" or "sqlite3"
		Driver       string
		Url          string
		MaxOpenConns int
	}

	// Background jobs
	SweepIntervalSeconds          int
	RegistryReloadIntervalSeconds int

	// Minimum Session-Timeout granted on an accept
	AuthFloorSeconds int

	// Bound for in-flight handlers to finish on shutdown
	ShutdownGraceSeconds int

	// Prometheus endpoint
	MetricsBindAddress string
	MetricsPort        int

	// Read-only status HTTP endpoint
	HttpBindAddress string
	HttpPort        int

	// Accounting CDR files. Empty directory disables CDR writing
	CdrDirectory      string
	CdrFileNameFormat string
	CdrRotateSeconds  int64
}

func (c *PorteroConfig) initialize() error {

	if c.AuthPort == 0 {
		c.AuthPort = 1812
	}
	if c.AcctPort == 0 {
		c.AcctPort = 1813
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.SweepIntervalSeconds == 0 {
		c.SweepIntervalSeconds = 60
	}
	if c.RegistryReloadIntervalSeconds == 0 {
		c.RegistryReloadIntervalSeconds = 300
	}
	if c.AuthFloorSeconds == 0 {
		c.AuthFloorSeconds = 60
	}
	if c.ShutdownGraceSeconds == 0 {
		c.ShutdownGraceSeconds = 5
	}
	if c.MetricsPort == 0 {
		c.MetricsPort = 9090
	}
	if c.HttpPort == 0 {
		c.HttpPort = 8080
	}
	if c.CdrFileNameFormat == "" {
		c.CdrFileNameFormat = "cdr_2006-01-02T15-04-05"
	}
	if c.CdrRotateSeconds == 0 {
		c.CdrRotateSeconds = 3600
	}

	// Credentials are normally kept out of portero.json
	if url := os.Getenv("PORTERO_DATABASE_URL"); url != "" {
		c.Database.Url = url
	}

	if c.Database.Driver == "" || c.Database.Url == "" {
		return fmt.Errorf("database driver and url must be configured")
	}

	return nil
}

// Manages the configuration items of the admission server
type PorteroConfigurationManager struct {
	CM ConfigurationManager

	porteroConfig *ConfigObject[PorteroConfig]
}

// The one instance used outside of tests
var porteroConfig *PorteroConfigurationManager

// Builds a configuration manager reading from the specified base location, and
// initializes the logger. isDefault makes it the process-wide instance returned
// by GetPorteroConfig
func InitPorteroConfigInstance(base string, instanceName string, isDefault bool) *PorteroConfigurationManager {

	pc := PorteroConfigurationManager{
		CM:            NewConfigurationManager(base, instanceName),
		porteroConfig: NewConfigObject[PorteroConfig]("portero.json"),
	}

	if isDefault {
		initLogger(&pc.CM)
		porteroConfig = &pc
	}

	if err := pc.UpdatePorteroConfig(); err != nil {
		panic(err)
	}

	return &pc
}

// Re-reads the server configuration resource
func (c *PorteroConfigurationManager) UpdatePorteroConfig() error {
	return c.porteroConfig.Update(&c.CM)
}

// Retrieves the current server configuration
func (c *PorteroConfigurationManager) PorteroConf() PorteroConfig {
	return c.porteroConfig.Get()
}

// Retrieves the process-wide configuration instance
func GetPorteroConfig() *PorteroConfigurationManager {
	return porteroConfig
}
