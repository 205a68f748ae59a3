// Package config loads the server-side configuration from the `server:` section
// of config.yaml (the `agent:` key is ignored by the server binary).
//
// Config fields:
//   - GRPCPort         port for the gRPC receiver (default 50051)
//   - HTTPPort         port for the REST API and WebSocket hub (default 8080)
//   - LogLevel         debug | info | warn | error
//   - Auth.Mode        "apikey" or "none"
//   - Auth.KeyEnv      environment variable holding the expected API key
//   - Auth.Header      gRPC metadata/HTTP header name (default "x-api-key")
//   - RTDBPath         collection served under /db/ (default "heartrate")
//   - Retention.TTL    how long a reading is kept (default 24h, 0 = forever)
//   - Storage.Backend  memory | sqlite; Storage.Path is the database file
//   - Stream.Interval  WebSocket broadcast cadence (default 1s)
//   - Alerts.Rules     name, condition ("bpm > 120"), severity, cooldown
//   - Alerts.Webhooks  slack | teams | http targets, URL read from url_env
//
// Load(path) applies defaults before unmarshalling, then validates.
package config
