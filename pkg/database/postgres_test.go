package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/hims-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "hims",
		Password: "secret",
		Name:     "hospital_system",
		SSLMode:  "require",
	})

	assert.Equal(t, "host=db port=5433 user=hims password=secret dbname=hospital_system sslmode=require application_name=hims-api", dsn)
}
