package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/pos")
	t.Setenv("SECRET_KEY", "test-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "pos", cfg.DBNamePrefix)
	assert.Equal(t, 30, cfg.TokenExpireMinutes)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.True(t, cfg.UseItemCache)
	assert.Equal(t, RoundFloor, cfg.RoundMethodForDiscount)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 30*time.Minute, cfg.TokenExpiry())
	assert.Equal(t, 60*time.Second, cfg.ItemCacheTTL())
	assert.Equal(t, 300*time.Second, cfg.AlertCooldown())
}

func TestLoadRequiredVars(t *testing.T) {
	t.Run("missing DATABASE_URL", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		t.Setenv("SECRET_KEY", "test-secret")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DATABASE_URL")
	})

	t.Run("missing SECRET_KEY", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/pos")
		t.Setenv("SECRET_KEY", "")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SECRET_KEY")
	})
}

func TestLoadKafkaBrokerList(t *testing.T) {
	setRequired(t)
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092, ,broker-3:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092", "broker-3:9092"}, cfg.KafkaBrokers)
}

func TestLoadRoundMethod(t *testing.T) {
	tests := []struct {
		value   string
		want    RoundMethod
		wantErr bool
	}{
		{value: "Floor", want: RoundFloor},
		{value: "Round", want: RoundHalf},
		{value: "Ceil", want: RoundCeil},
		{value: "banker", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			setRequired(t)
			t.Setenv("ROUND_METHOD_FOR_DISCOUNT", tt.value)

			cfg, err := Load()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.RoundMethodForDiscount)
		})
	}
}

func TestLoadBadIntFallsBack(t *testing.T) {
	setRequired(t)
	t.Setenv("TOKEN_EXPIRE_MINUTES", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.TokenExpireMinutes)
}
