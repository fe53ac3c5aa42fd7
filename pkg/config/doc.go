// Package config loads typed configuration from environment variables.
//
// Structs are annotated with github.com/caarlos0/env tags. A .env file in the
// working directory, when present, is read with github.com/joho/godotenv
// before the first parse; variables already set in the process win.
//
//	var rc revenuecat.Config
//	if err := config.Load(&rc); err != nil {
//		return err
//	}
//
// Each configuration type is parsed once per process and the result, error
// included, is cached. Load on the same type afterwards copies the cached
// value, so services can load their own config without coordinating.
//
// MustLoad panics on failure and is meant for main packages.
package config
