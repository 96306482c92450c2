package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iov-one/paystream/errors"
	"github.com/iov-one/paystream/paytest/assert"
	"github.com/iov-one/paystream/x/stream"
)

func TestDefault(t *testing.T) {
	conf := Default()
	require.NoError(t, conf.Validate())
	require.Equal(t, BackendLevelDB, conf.Store.Backend)
	require.Equal(t, 1000, conf.Ledger.HistoryRetention)
	require.Equal(t, 60, conf.Stream.MaxClaimsPerMinute)
	require.Equal(t, time.Minute, conf.Stream.RateWindow)
	require.Equal(t, "info", conf.Log.Level)

	p := conf.Policy()
	require.Equal(t, "100000000", p.MinAmount.String())
	require.Equal(t, time.Hour, p.MaxInterval)

	sc, err := conf.ServiceConfig()
	require.NoError(t, err)
	require.Equal(t, 60, sc.MaxClaimsPerMinute)
	require.Equal(t, stream.ModeChannel, sc.Mode)

	conf.Stream.Mode = "direct"
	sc, err = conf.ServiceConfig()
	require.NoError(t, err)
	require.Equal(t, stream.ModeDirect, sc.Mode)

	conf.Stream.Mode = "pigeon"
	_, err = conf.ServiceConfig()
	assert.FieldError(t, err, "Stream.Mode", errors.ErrInvalidInput)
}

func TestLoadFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "paystream-config-")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "paystream.json")
	raw := `{
		"store": {"backend": "memory"},
		"ledger": {"history_retention": 10},
		"stream": {"max_claims_per_minute": 5, "rate_window": "30s"},
		"finalize": {"units_per_major": 100, "min_major": 2, "max_interval": "10m"},
		"log": {"level": "debug"}
	}`
	require.NoError(t, ioutil.WriteFile(path, []byte(raw), 0600))

	conf, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, BackendMemory, conf.Store.Backend)
	require.Equal(t, 10, conf.Ledger.HistoryRetention)
	require.Equal(t, 5, conf.Stream.MaxClaimsPerMinute)
	require.Equal(t, 30*time.Second, conf.Stream.RateWindow)
	require.Equal(t, "200", conf.Policy().MinAmount.String())
	require.Equal(t, 10*time.Minute, conf.Policy().MaxInterval)

	db, err := conf.OpenStore()
	require.NoError(t, err)
	require.NoError(t, db.Set([]byte("a"), []byte("b")))
	require.NoError(t, db.Close())

	logger, err := conf.Logger(ioutil.Discard)
	require.NoError(t, err)
	logger.Debug("configured")
}

func TestLoadEnvironmentOverride(t *testing.T) {
	os.Setenv("PAYSTREAM_STREAM_MAX_CLAIMS_PER_MINUTE", "7")
	os.Setenv("PAYSTREAM_STORE_BACKEND", "IAVL")
	defer os.Unsetenv("PAYSTREAM_STREAM_MAX_CLAIMS_PER_MINUTE")
	defer os.Unsetenv("PAYSTREAM_STORE_BACKEND")

	conf, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7, conf.Stream.MaxClaimsPerMinute)
	require.Equal(t, BackendIAVL, conf.Store.Backend)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(os.TempDir(), "paystream-does-not-exist.yaml"))
	assert.IsErr(t, errors.ErrInvalidInput, err)
}

func TestValidate(t *testing.T) {
	conf := Config{
		Store:  StoreConfig{Backend: "floppy"},
		Stream: StreamConfig{Mode: "pigeon"},
		Log:    LogConfig{Level: "loud"},
	}
	err := conf.Validate()
	assert.FieldError(t, err, "Store.Backend", errors.ErrInvalidInput)
	assert.FieldError(t, err, "Ledger.HistoryRetention", errors.ErrInvalidInput)
	assert.FieldError(t, err, "Stream.Mode", errors.ErrInvalidInput)
	assert.FieldError(t, err, "Stream.MaxClaimsPerMinute", errors.ErrInvalidInput)
	assert.FieldError(t, err, "Stream.RateWindow", errors.ErrInvalidInput)
	assert.FieldError(t, err, "Finalize.UnitsPerMajor", errors.ErrInvalidInput)
	assert.FieldError(t, err, "Finalize.MinMajor", errors.ErrInvalidAmount)
	assert.FieldError(t, err, "Finalize.MaxInterval", errors.ErrInvalidInput)
	assert.FieldError(t, err, "Log.Level", errors.ErrInvalidInput)
	assert.FieldError(t, err, "Store.Dir", nil)
	require.Len(t, errors.FieldErrors(err, "Finalize"), 3)

	conf = Default()
	conf.Store.Dir = ""
	err = conf.Validate()
	assert.FieldError(t, err, "Store.Dir", errors.ErrEmpty)
	assert.FieldError(t, err, "Store.Name", nil)

	conf.Store.Backend = "floppy"
	_, err = conf.OpenStore()
	assert.IsErr(t, errors.ErrInvalidInput, err)
}
