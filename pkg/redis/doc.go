// Package redis provides helpers for connecting to a Redis server.
//
// It wraps the go-redis client with a Connect function that retries until
// the server becomes available, plus a health check for readiness probes.
// The queue package builds its Redis-backed task storage on the client this
// package produces.
//
// Configuration is described by the Config struct whose fields are populated
// from environment variables via github.com/caarlos0/env.
//
// # Usage
//
//	var cfg redis.Config
//	if err := env.Parse(&cfg); err != nil {
//	    panic(err)
//	}
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    panic(err)
//	}
//	defer client.Close()
package redis
