// Package config loads and watches the agent configuration file (config.yaml).
//
// Top-level types:
//   - Config{Agent}: full config tree parsed from YAML
//   - AgentConfig: id, http_port, log_level, sensor, forwarder, liveness,
//     display, sink
//   - SensorConfig: type (prometheus|mqtt|stdin), access
//     (granted|denied|prompt), endpoint, metric, topic, poll_interval, auth, tls
//   - SinkConfig: type (grpc|firebase|redis), endpoint, path, auth, tls
//   - AuthConfig: mode (mtls|apikey|bearer|basic|none), cert/key/ca files,
//     header, key_env, token_env, password_env; Key(), Token() and Password()
//     resolve from environment variables
//
// Load(path) reads the YAML file, applies defaults (10s throttle window, 3s
// stale threshold, 1s liveness tick, port 9090), fills a random agent id when
// none is configured, then validates required fields and enums.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. The agent uses it to resolve a
// "prompt" sensor access decision and to change the log level at runtime.
package config
