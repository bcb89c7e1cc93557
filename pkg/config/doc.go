// Package config loads environment variables into tagged structs.
//
// Load parses env tags with caarlos0/env after loading the default .env file
// once per process. Each config type is parsed a single time and cached, so
// every component asking for the same struct sees the same values.
//
//	var cfg queue.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
// MustLoad panics on failure, for configuration the service cannot start
// without.
package config
