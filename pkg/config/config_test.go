package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, 30*time.Second, cfg.Mail.RetryDelay)
	assert.Equal(t, 5*time.Minute, cfg.Webhook.Tolerance)
	assert.Equal(t, "info@saveyours.net", cfg.Admin.Email)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("DB_DRIVER", " SQLite ")
	v.Set("ALLOWED_ORIGINS", "https://saveyours.net, ,https://admin.saveyours.net")
	v.Set("MAIL_RETRY_DELAY", "not-a-duration")
	v.Set("ADMIN_EMAIL", "  Owner@SaveYours.net ")

	cfg := fromViper(v)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, []string{"https://saveyours.net", "https://admin.saveyours.net"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.Mail.RetryDelay)
	assert.Equal(t, "owner@saveyours.net", cfg.Admin.Email)
}

func TestFromViperUnknownDriverFallsBackToPostgres(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("DB_DRIVER", "mysql")

	cfg := fromViper(v)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
}
