// Package config loads the hostdata configuration file.
//
// The file is YAML. Top-level keys are loader, script and the telemetry
// sections (service_name, logging, tracing, metrics), all optional:
//
//	loader:
//	  max_document_bytes: 1048576
//	  formats: [json, yaml]
//	logging:
//	  level: debug
//	script:
//	  timeout: 10s
//
// Missing keys keep the values from Default. The merged result is
// validated with struct tags before it is returned.
package config
