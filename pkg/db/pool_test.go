package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainsSSLMode(t *testing.T) {
	tests := []struct {
		url      string
		expected bool
	}{
		{"postgres://u:p@localhost:5432/db", false},
		{"postgres://u:p@localhost:5432/db?sslmode=disable", false},
		{"postgres://u:p@db:5432/db?sslmode=require", true},
		{"postgres://u:p@db:5432/db?sslmode=verify-ca", true},
		{"postgres://u:p@db:5432/db?sslmode=verify-full", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.expected, containsSSLMode(tt.url))
		})
	}
}

func TestConfigureTLS_LocalDevelopment(t *testing.T) {
	cfg, err := configureTLS("postgres://localhost/db", "certs/ca.crt")
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestConfigureTLS_MissingCertificate(t *testing.T) {
	_, err := configureTLS("postgres://db/db?sslmode=verify-full", "does-not-exist.crt")
	assert.Error(t, err)
}

func TestIsUniqueViolation(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505"}
	other := &pgconn.PgError{Code: "23503"}

	assert.True(t, IsUniqueViolation(unique))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", unique)))
	assert.False(t, IsUniqueViolation(other))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
	assert.False(t, IsUniqueViolation(nil))
}
