// Package config loads the single YAML file a runtime binary built on this
// module reads at startup: which app name sessions are scoped under, how
// history compaction behaves, and the agent checkpoint policy. RetryConfig
// is a YAML-decodable type alongside them but is not a field of the root
// Config, so the file does not configure node retries. It intentionally does not reach for the teacher's full
// multi-backend provider chain (file/env/Consul/Zookeeper) — one file is
// enough for this runtime's scope — but keeps its loading pipeline
// (parse -> expand env vars -> decode -> defaults -> validate) and its
// hot-reload-by-watching-a-file behavior.
package config
