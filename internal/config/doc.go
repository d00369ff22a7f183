// Package config handles configuration loading for the ChatWidget relay.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${CHATWIDGET_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	auth:
//	  token_ttl: "24h"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"   # WebSocket and REST API
//
// Database:
//
//	database:
//	  path: "/var/lib/chatwidget/chatwidget.db"
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${CHATWIDGET_JWT_SECRET}"  # Required
//	  token_ttl: "24h"                        # Dev-minted token lifetime
//
// Redis event bridge (optional; standalone when disabled):
//
//	redis:
//	  enabled: true
//	  addr: "localhost:6379"
//	  channel: "chat-events"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - JWT secret presence
//   - Redis address when the bridge is enabled
//   - Duration format validity
//
// # Usage
//
// Load configuration from a path:
//
//	cfg, err := config.Load("/etc/chatwidget/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
