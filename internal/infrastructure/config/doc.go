// Package config handles loading and validating r2upnpav configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (R2UPNPAV_*)
//   - Validation of every section, reporting all problems at once
//   - Default value handling
//
// A missing configuration file is not an error: the bridge runs on defaults,
// and command-line flags override whatever was loaded.
//
// Security Considerations:
//   - MQTT passwords and InfluxDB tokens should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("/etc/r2upnpav/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Renderer.Pattern)
package config
