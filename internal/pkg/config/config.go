// Package config exposes typed, read-only access to runtime settings.
package config

import (
	"io"
	"time"
)

// Config reads settings by dotted key, e.g. "modules.auth.otp_ttl_seconds".
// Missing keys yield the zero value so callers apply their own defaults.
type Config interface {
	io.Closer

	GetBool(key string) bool
	GetString(key string) string
	GetInt(key string) int
	GetInt32(key string) int32
	GetInt64(key string) int64
	GetUint(key string) uint
	GetUint64(key string) uint64
	GetFloat64(key string) float64

	// GetSecond reads an integer number of seconds.
	GetSecond(key string) time.Duration

	// GetArray reads a comma separated list; blank elements are dropped.
	GetArray(key string) []string
}
