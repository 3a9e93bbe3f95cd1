package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, 100, cfg.Server.RatePerMinute)
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Session.SweepInterval)

	assert.Equal(t, 3, cfg.Fraud.VelocityLimit)
	assert.Equal(t, time.Hour, cfg.Fraud.VelocityWindow)
	assert.Equal(t, "10000", cfg.Fraud.AmountThreshold.String())

	assert.Equal(t, "50000", cfg.Limits.TransferMax.String())
	assert.Equal(t, "20000", cfg.Limits.BillMax.String())

	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenExpiry)
	assert.Equal(t, 10*time.Second, cfg.Ledger.Timeout)
	assert.Equal(t, 5, cfg.Retrieval.TopK)

	assert.False(t, cfg.LLM.Enabled(), "no API key means no delegate")
}

func TestLoad_Overrides(t *testing.T) {
	v := viper.New()
	v.Set("server.port", 9999)
	v.Set("limits.transfer_max", "1000.50")
	v.Set("llm.api_key", "secret")
	v.Set("session.idle_timeout", "5m")

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "1000.5", cfg.Limits.TransferMax.String())
	assert.Equal(t, 5*time.Minute, cfg.Session.IdleTimeout)
	assert.True(t, cfg.LLM.Enabled())
}

func TestLoad_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad amount threshold", key: "fraud.amount_threshold", value: "not-a-number"},
		{name: "bad transfer max", key: "limits.transfer_max", value: "abc"},
		{name: "bad bill max", key: "limits.bill_max", value: ""},
		{name: "zero idle timeout", key: "session.idle_timeout", value: "0s"},
		{name: "zero velocity limit", key: "fraud.velocity_limit", value: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.value)
			_, err := Load(v)
			assert.Error(t, err)
		})
	}
}
