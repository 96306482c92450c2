/*
Package config loads the process configuration.

Values are read from an optional configuration file (JSON, YAML or TOML,
detected by the file extension) and can be overridden with environment
variables prefixed with PAYSTREAM_. Nested keys use an underscore, so
store.backend is overridden by PAYSTREAM_STORE_BACKEND.
*/
package config

import (
	"io"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tendermint/tendermint/libs/log"

	"github.com/iov-one/paystream/amount"
	"github.com/iov-one/paystream/errors"
	"github.com/iov-one/paystream/store"
	"github.com/iov-one/paystream/store/iavl"
	"github.com/iov-one/paystream/store/leveldb"
	"github.com/iov-one/paystream/x/paychan"
	"github.com/iov-one/paystream/x/stream"
)

// EnvPrefix is the prefix of environment variables overriding the
// configuration.
const EnvPrefix = "PAYSTREAM"

// Supported store backends.
const (
	BackendLevelDB = "leveldb"
	BackendIAVL    = "iavl"
	BackendMemory  = "memory"
)

// Config is the complete process configuration.
type Config struct {
	Store    StoreConfig
	Ledger   LedgerConfig
	Stream   StreamConfig
	Finalize FinalizeConfig
	Log      LogConfig
}

// StoreConfig selects where the ledger is kept.
type StoreConfig struct {
	Backend string
	Dir     string
	Name    string
}

// LedgerConfig configures the channel ledger.
type LedgerConfig struct {
	HistoryRetention int
}

// StreamConfig configures streaming sessions.
type StreamConfig struct {
	Mode               string
	MaxClaimsPerMinute int
	RateWindow         time.Duration
}

// FinalizeConfig configures the finalization policy. The minimum amount is
// given in major units.
type FinalizeConfig struct {
	UnitsPerMajor uint64
	MinMajor      uint64
	MaxInterval   time.Duration
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, error or none.
	Level string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.backend", BackendLevelDB)
	v.SetDefault("store.dir", "data")
	v.SetDefault("store.name", "paychan")
	v.SetDefault("ledger.history_retention", paychan.DefaultRetention)
	v.SetDefault("stream.mode", stream.ModeChannel.String())
	v.SetDefault("stream.max_claims_per_minute", stream.DefaultMaxClaimsPerMinute)
	v.SetDefault("stream.rate_window", stream.DefaultRateWindow.String())
	v.SetDefault("finalize.units_per_major", paychan.UnitsPerMajor)
	v.SetDefault("finalize.min_major", 100)
	v.SetDefault("finalize.max_interval", paychan.DefaultMaxInterval.String())
	v.SetDefault("log.level", "info")
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	return fromViper(v)
}

// Load reads the configuration file at path, applies environment overrides
// and validates the result. An empty path loads defaults and environment
// overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "read config %q: %s", path, err)
		}
	}

	conf := fromViper(v)
	if err := conf.Validate(); err != nil {
		return nil, errors.Wrap(err, "config")
	}
	return &conf, nil
}

func fromViper(v *viper.Viper) Config {
	return Config{
		Store: StoreConfig{
			Backend: strings.ToLower(v.GetString("store.backend")),
			Dir:     v.GetString("store.dir"),
			Name:    v.GetString("store.name"),
		},
		Ledger: LedgerConfig{
			HistoryRetention: v.GetInt("ledger.history_retention"),
		},
		Stream: StreamConfig{
			Mode:               v.GetString("stream.mode"),
			MaxClaimsPerMinute: v.GetInt("stream.max_claims_per_minute"),
			RateWindow:         v.GetDuration("stream.rate_window"),
		},
		Finalize: FinalizeConfig{
			UnitsPerMajor: uint64(v.GetInt64("finalize.units_per_major")),
			MinMajor:      uint64(v.GetInt64("finalize.min_major")),
			MaxInterval:   v.GetDuration("finalize.max_interval"),
		},
		Log: LogConfig{
			Level: strings.ToLower(v.GetString("log.level")),
		},
	}
}

// Validate returns all configuration errors found. Errors are reported for
// the dotted path of the invalid key, for example Store.Dir.
func (c Config) Validate() error {
	return errors.Append(
		errors.Nest("Store", c.Store.Validate()),
		errors.Nest("Ledger", c.Ledger.Validate()),
		errors.Nest("Stream", c.Stream.Validate()),
		errors.Nest("Finalize", c.Finalize.Validate()),
		errors.Nest("Log", c.Log.Validate()),
	)
}

// Validate returns an error if the store cannot be opened with this
// configuration.
func (c StoreConfig) Validate() error {
	var errs error
	switch c.Backend {
	case BackendLevelDB, BackendIAVL:
		if c.Dir == "" {
			errs = errors.Append(errs,
				errors.Field("Dir", errors.ErrEmpty, "required by %s backend", c.Backend))
		}
		if c.Name == "" {
			errs = errors.Append(errs,
				errors.Field("Name", errors.ErrEmpty, "required by %s backend", c.Backend))
		}
	case BackendMemory:
	default:
		errs = errors.Append(errs,
			errors.Field("Backend", errors.ErrInvalidInput, "unknown backend %q", c.Backend))
	}
	return errs
}

func (c LedgerConfig) Validate() error {
	if c.HistoryRetention <= 0 {
		return errors.Field("HistoryRetention", errors.ErrInvalidInput, "must be positive")
	}
	return nil
}

func (c StreamConfig) Validate() error {
	var errs error
	if _, err := stream.ParseMode(c.Mode); err != nil {
		errs = errors.AppendField(errs, "Mode", err)
	}
	if c.MaxClaimsPerMinute <= 0 {
		errs = errors.Append(errs,
			errors.Field("MaxClaimsPerMinute", errors.ErrInvalidInput, "must be positive"))
	}
	if c.RateWindow <= 0 {
		errs = errors.Append(errs,
			errors.Field("RateWindow", errors.ErrInvalidInput, "must be positive"))
	}
	return errs
}

func (c FinalizeConfig) Validate() error {
	var errs error
	if c.UnitsPerMajor == 0 {
		errs = errors.Append(errs,
			errors.Field("UnitsPerMajor", errors.ErrInvalidInput, "must be positive"))
	}
	if c.MinMajor == 0 {
		errs = errors.Append(errs,
			errors.Field("MinMajor", errors.ErrInvalidAmount, "must be positive"))
	}
	if c.MaxInterval <= 0 {
		errs = errors.Append(errs,
			errors.Field("MaxInterval", errors.ErrInvalidInput, "must be positive"))
	}
	return errs
}

func (c LogConfig) Validate() error {
	if _, err := log.AllowLevel(c.Level); err != nil {
		return errors.Field("Level", errors.ErrInvalidInput, "%s", err)
	}
	return nil
}

// Policy returns the configured finalization policy.
func (c Config) Policy() paychan.Policy {
	return paychan.Policy{
		MinAmount:   amount.FromMajor(c.Finalize.MinMajor, c.Finalize.UnitsPerMajor),
		MaxInterval: c.Finalize.MaxInterval,
	}
}

// ServiceConfig returns the configured streaming session defaults.
func (c Config) ServiceConfig() (stream.ServiceConfig, error) {
	mode, err := stream.ParseMode(c.Stream.Mode)
	if err != nil {
		return stream.ServiceConfig{}, errors.Nest("Stream.Mode", err)
	}
	return stream.ServiceConfig{
		Mode:               mode,
		MaxClaimsPerMinute: c.Stream.MaxClaimsPerMinute,
		RateWindow:         c.Stream.RateWindow,
	}, nil
}

// Logger returns a logger writing to w, filtered by the configured level.
func (c Config) Logger(w io.Writer) (log.Logger, error) {
	logger := log.NewTMLogger(log.NewSyncWriter(w))
	level, err := log.AllowLevel(c.Log.Level)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, err.Error())
	}
	return log.NewFilter(logger, level), nil
}

// OpenStore opens the configured store. The caller must close it.
func (c Config) OpenStore() (store.CommitKVStore, error) {
	switch c.Store.Backend {
	case BackendLevelDB:
		db, err := leveldb.NewStore(c.Store.Dir, c.Store.Name)
		if err != nil {
			return nil, err
		}
		return db, nil
	case BackendIAVL:
		db, err := iavl.NewStore(c.Store.Dir, c.Store.Name)
		if err != nil {
			return nil, err
		}
		return db, nil
	case BackendMemory:
		return memStore{store.NewMemStore()}, nil
	default:
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unknown store backend %q", c.Store.Backend)
	}
}

type memStore struct {
	*store.MemStore
}

func (memStore) Close() error { return nil }
