package client

import (
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDSN(t *testing.T) {
	cfg := &Database{
		Username:   "cogniview",
		Password:   "secret",
		Host:       "db.internal",
		Port:       3306,
		Name:       "cogniview",
		AuthMethod: AuthMethodUsernamePassword,
	}

	parsed, err := mysql.ParseDSN(FormatDSN(cfg))
	require.NoError(t, err)
	assert.Equal(t, "db.internal:3306", parsed.Addr)
	assert.Equal(t, "cogniview", parsed.DBName)
	assert.Equal(t, "secret", parsed.Passwd)
	assert.True(t, parsed.ParseTime)
}

func TestFormatDSNWithoutPassword(t *testing.T) {
	cfg := &Database{Username: "root", Password: "ignored", Host: "localhost", Port: 3306, Name: "x", AuthMethod: AuthMethodNone}

	parsed, err := mysql.ParseDSN(FormatDSN(cfg))
	require.NoError(t, err)
	assert.Empty(t, parsed.Passwd)
}

func TestMapAuthMethod(t *testing.T) {
	assert.Equal(t, AuthMethodNone, mapAuthMethod("none"))
	assert.Equal(t, AuthMethodUsernamePassword, mapAuthMethod("username_password"))
	assert.Equal(t, AuthMethodUsernamePassword, mapAuthMethod(""))
}
