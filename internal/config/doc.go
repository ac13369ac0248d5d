// Package config loads the pangandash configuration.
//
// # Configuration Sources
//
// Values are resolved in the following order, later sources winning:
//
//	1. Default values (Default)
//	2. A YAML file: $PANGAN_CONFIG_FILE, else config.yaml or configs/config.yaml
//	3. Environment variables (highest priority)
//
// # Environment Variables
//
// Variables follow the pattern PANGAN_<SECTION>_<FIELD>:
//
//	PANGAN_SERVER_PORT=8080
//	PANGAN_UPLOAD_HEADER_ROW=1
//	PANGAN_SESSION_BACKEND=redis
//	PANGAN_SESSION_REDIS_ADDR=localhost:6379
//	PANGAN_SHEETS_API_KEY=...
//	PANGAN_LOGGING_LEVEL=debug
//
// # Validation
//
// Every section carries validator struct tags; Load rejects a configuration
// that fails any of them.
package config
