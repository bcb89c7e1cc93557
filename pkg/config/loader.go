package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// cache holds one parsed value per configuration type, so every caller of
// Load for the same type observes the same snapshot of the environment.
type cache struct {
	mu     sync.RWMutex
	values map[string]any
	onces  map[string]*sync.Once
}

var (
	loaded = &cache{
		values: make(map[string]any),
		onces:  make(map[string]*sync.Once),
	}

	dotenvOnce sync.Once
)

// Load parses environment variables into v based on its `env` struct tags.
// Each configuration type is parsed at most once per process; later calls
// for the same type return the cached value. A .env file in the working
// directory is applied on the first call, if present.
//
//	type HTTPConfig struct {
//		Addr string `env:"HTTP_ADDR" envDefault:":8080"`
//	}
//
//	var cfg HTTPConfig
//	if err := config.Load(&cfg); err != nil { ... }
func Load[T any](v *T) error {
	dotenvOnce.Do(func() {
		// A missing .env file is not an error.
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}

	key := typeKey[T]()

	loaded.mu.RLock()
	if cached, ok := loaded.values[key]; ok {
		*v = cached.(T)
		loaded.mu.RUnlock()
		return nil
	}
	loaded.mu.RUnlock()

	loaded.mu.Lock()
	once, ok := loaded.onces[key]
	if !ok {
		once = new(sync.Once)
		loaded.onces[key] = once
	}
	loaded.mu.Unlock()

	var err error
	once.Do(func() {
		if parseErr := env.Parse(v); parseErr != nil {
			err = errors.Join(ErrParsingConfig, parseErr)
			return
		}

		loaded.mu.Lock()
		loaded.values[key] = *v
		loaded.mu.Unlock()
	})
	if err != nil {
		return err
	}

	// Concurrent callers that lost the once race read the winner's value.
	loaded.mu.RLock()
	defer loaded.mu.RUnlock()
	if cached, ok := loaded.values[key]; ok {
		*v = cached.(T)
		return nil
	}
	return ErrConfigNotLoaded
}

// MustLoad is Load for configuration the process cannot start without; it
// panics on failure.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

func typeKey[T any]() string {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return fmt.Sprintf("%T", *new(T))
	}
	return t.String()
}
