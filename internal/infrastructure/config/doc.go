// Package config handles loading and validating the specification store
// configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with SPECSTORE_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Sensitive values (broker passwords, InfluxDB tokens) should be set via
// environment variables rather than committed to the config file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Store.Backend)
package config
