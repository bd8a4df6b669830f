// Package config handles loading and validating GaragePi configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (GARAGEPI_*)
//   - Reading broker credentials from a USERNAME=/PASSWORD= file
//   - Validation of pins, doors and broker settings
//
// Security Considerations:
//   - Broker passwords belong in the credentials file or GARAGEPI_MQTT_PASSWORD
//   - The credentials file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("/etc/garagepi/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.Broker.Host)
package config
