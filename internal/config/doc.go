// Package config loads the pipeline configuration file of iot2db.
//
// A configuration declares three named sections:
//   - frontend: data sources (http-rest, homematic-ccu3, mqtt, nats, shell, journald)
//   - backend: sinks (postgres, sqlite; "stdout" is built in)
//   - data: pipelines binding one frontend to one backend through a mapping
//
// Files may be TOML, YAML, JSON or JSONC. A directory is loaded by merging
// every configuration file below it; a name defined twice is an error.
// The order in which keys appear is kept: data entries start in that order
// and mapping values produce columns in that order.
//
// Example Usage:
//
//	cfg, err := config.Load(os.Getenv("IOT2DB_CONFIG_FILE"))
//	if err != nil {
//		return err
//	}
//	for _, data := range cfg.Data {
//		fmt.Println(data.Name, data.Frontend.Name, data.Backend.Name)
//	}
package config
