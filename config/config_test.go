package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"HOLD_TTL", "SWEEP_INTERVAL", "ALLOW_PARTIAL_ADMISSION", "PARTIAL_ADMISSION_EVENTS", "STORE_DRIVER", "RETRY_ATTEMPTS"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, 15*time.Minute, cfg.HoldTTL)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.False(t, cfg.AllowPartialAdmission)
	assert.Empty(t, cfg.PartialAdmissionEvents)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, 4, cfg.RetryAttempts)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HOLD_TTL", "5m")
	t.Setenv("ALLOW_PARTIAL_ADMISSION", "true")
	t.Setenv("PARTIAL_ADMISSION_EVENTS", "7, 9,abc,")
	t.Setenv("LOCK_TIMEOUT", "500ms")
	t.Setenv("SWEEP_BATCH", "not-a-number")

	cfg := Load()

	assert.Equal(t, 5*time.Minute, cfg.HoldTTL)
	assert.True(t, cfg.AllowPartialAdmission)
	assert.Equal(t, map[uint]bool{7: true, 9: true}, cfg.PartialAdmissionEvents)
	assert.Equal(t, 500*time.Millisecond, cfg.LockTimeout)
	assert.Equal(t, 100, cfg.SweepBatch)
}

func TestDSN(t *testing.T) {
	cfg := &Config{DBHost: "db", DBPort: "5433", DBUser: "u", DBPassword: "p", DBName: "alloc"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=alloc sslmode=disable", cfg.DSN())
}
