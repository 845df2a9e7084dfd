// Package config handles loading and validating depthcore configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with DEPTHCORE_* environment variables
//   - Validation of required fields, including per-sensor capture settings
//
// Security Considerations:
//   - Sensitive values (passwords, tokens, the JWT secret) should be set via
//     environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load(config.Path(flagValue))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Capture.Driver)
package config
