package config

import (
	"bytes"
	"errors"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// EnvPrefix scopes environment overrides, e.g. OTPGATE_DATABASE_DRIVER
// overrides database.driver.
const EnvPrefix = "OTPGATE"

// Viper is a Config implementation backed by github.com/spf13/viper.
type Viper struct {
	v *viper.Viper
}

// NewViper loads configuration from the given file and watches it for changes.
//
// The config file type is inferred from the filename extension. Every key can
// be overridden from the environment (see EnvPrefix). A missing file is not an
// error: the returned Config then reads the environment only, which suits
// container deployments configured purely through OTPGATE_ variables.
func NewViper(pathFile string) (*Viper, error) {
	v := newViper()
	v.SetConfigFile(pathFile)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, err
		}

		slog.Warn("config file not found, reading environment only", "path", pathFile)
		return &Viper{v: v}, nil
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		if err := v.ReadInConfig(); err != nil {
			slog.Error("config reload failed", "path", pathFile, "err", err)
			return
		}
		slog.Info("config success reloaded", "path", pathFile)
	})
	v.WatchConfig()

	return &Viper{v: v}, nil
}

// NewViperFromBytes loads configuration from memory and returns a Viper-backed Config.
// configType should be a format supported by Viper (e.g. "yaml", "json", "toml").
func NewViperFromBytes(configType string, data []byte) (*Viper, error) {
	if strings.TrimSpace(configType) == "" {
		return nil, errors.New("config type is required")
	}

	v := newViper()
	v.SetConfigType(configType)

	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, err
	}

	return &Viper{v: v}, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// GetInt returns the value for key as int.
func (vc *Viper) GetInt(key string) int {
	return vc.v.GetInt(key)
}

// GetInt32 returns the value for key as int32.
func (vc *Viper) GetInt32(key string) int32 {
	return vc.v.GetInt32(key)
}

// GetInt64 returns the value for key as int64.
func (vc *Viper) GetInt64(key string) int64 {
	return vc.v.GetInt64(key)
}

// GetUint returns the value for key as uint.
func (vc *Viper) GetUint(key string) uint {
	return vc.v.GetUint(key)
}

// GetUint64 returns the value for key as uint64.
func (vc *Viper) GetUint64(key string) uint64 {
	return vc.v.GetUint64(key)
}

// GetBool returns the value for key as bool.
func (vc *Viper) GetBool(key string) bool {
	return vc.v.GetBool(key)
}

// GetFloat64 returns the value for key as float64.
func (vc *Viper) GetFloat64(key string) float64 {
	return vc.v.GetFloat64(key)
}

// GetSecond returns the value for key as seconds.
func (vc *Viper) GetSecond(key string) time.Duration {
	return time.Duration(vc.v.GetInt64(key)) * time.Second
}

// GetString returns the value for key as string.
func (vc *Viper) GetString(key string) string {
	return vc.v.GetString(key)
}

// GetArray returns the value for key split by commas, with blanks dropped.
func (vc *Viper) GetArray(key string) []string {
	parts := lo.Map(strings.Split(vc.v.GetString(key), ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})

	return lo.Compact(parts)
}

// Close implements io.Closer for interface compatibility.
func (vc *Viper) Close() error {
	return nil
}
