package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_CONN", "postgres://localhost/campus?sslmode=disable")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:8080", cfg.Server.Address)
	require.Equal(t, 50.0, cfg.Marketplace.MatchRadiusKm)
	require.True(t, cfg.Marketplace.AutoBid)
	require.Equal(t, 10*time.Minute, cfg.Reset.CodeTTL)
	require.Equal(t, []string{"bid_accepted", "interest_accepted"}, cfg.Notify.ExternalTypes)
	require.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("POSTGRES_CONN", "postgres://localhost/campus")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTO_BID_ENABLED", "false")
	t.Setenv("MATCH_RADIUS_KM", "12.5")
	t.Setenv("NOTIFY_CHANNEL", "whatsapp")
	t.Setenv("NOTIFY_EXTERNAL_TYPES", "bid_accepted, new_bid")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("RATE_LIMIT_RPS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.False(t, cfg.Marketplace.AutoBid)
	require.Equal(t, 12.5, cfg.Marketplace.MatchRadiusKm)
	require.Equal(t, "whatsapp", cfg.Notify.Channel)
	require.Equal(t, []string{"bid_accepted", "new_bid"}, cfg.Notify.ExternalTypes)
	require.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	require.Equal(t, 5, cfg.RateLimit.RequestsPerSecond)
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("POSTGRES_CONN", "")
	t.Setenv("JWT_SECRET", "secret")
	_, err := Load()
	require.ErrorContains(t, err, "POSTGRES_CONN")

	t.Setenv("POSTGRES_CONN", "postgres://localhost/campus")
	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	require.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoadRejectsUnknownChannel(t *testing.T) {
	t.Setenv("POSTGRES_CONN", "postgres://localhost/campus")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("NOTIFY_CHANNEL", "pigeon")

	_, err := Load()
	require.Error(t, err)
}
