// Package config loads protoguard server configuration from environment variables.
//
// # Overview
//
// Every setting has a default, so an empty environment serves
// ./protoguard.yaml on :8080 (HTTP) and :9090 (gRPC).
//
// # Configuration Structure
//
// Server settings:
//
//	PROTOGUARD_HTTP_ADDR=":8080"
//	PROTOGUARD_GRPC_ADDR=":9090"
//	PROTOGUARD_SHUTDOWN_TIMEOUT="30s"
//
// Rules settings:
//
//	PROTOGUARD_RULES_FILE="protoguard.yaml"
//	PROTOGUARD_MODE="accumulate_all"  # overrides the manifest default
//	PROTOGUARD_MAX_DEPTH="32"
//	PROTOGUARD_WATCH="true"
//	PROTOGUARD_RELOAD_SCHEDULE="@every 10m"
//	PROTOGUARD_GRPC_STRICT="false"
//
// Check endpoint settings:
//
//	PROTOGUARD_SCHEMA_CACHE_SIZE="64"
//	PROTOGUARD_SCHEMA_CACHE_TTL="10m"
//	PROTOGUARD_CHECK_RATE_LIMIT="60"  # per minute per client, 0 disables
//	PROTOGUARD_TRUST_PROXY_HEADERS="false"  # key clients by X-Forwarded-For
//	PROTOGUARD_REDIS_URL="redis://localhost:6379/0"
//
// Audit settings:
//
//	PROTOGUARD_AUDIT_DRIVER="postgres"  # file, postgres, sqlite3
//	PROTOGUARD_AUDIT_DSN="postgres://localhost/protoguard?sslmode=disable"
//	PROTOGUARD_AUDIT_DIR="/var/log/protoguard"  # with a database driver, also keeps a local copy
//
// Observability settings:
//
//	PROTOGUARD_LOG_LEVEL="info"  # debug, info, warn, error
//	PROTOGUARD_LOG_FORMAT="json"  # json, text
//	PROTOGUARD_METRICS_ENABLED="true"
//	PROTOGUARD_OTEL_ENABLED="true"
//	PROTOGUARD_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
package config
