package testdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetTestDatabaseURL_Precedence(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CARELOOP_TEST_DB_URL", "")
	t.Setenv("CARELOOP_DATABASE_URL", "postgres://fallback/db")
	assert.Equal(t, "postgres://fallback/db", GetTestDatabaseURL())
	assert.False(t, ShouldSkipDatabaseTest())

	t.Setenv("CARELOOP_TEST_DB_URL", "postgres://test/db")
	assert.Equal(t, "postgres://test/db", GetTestDatabaseURL())

	t.Setenv("DATABASE_URL", "postgres://primary/db")
	assert.Equal(t, "postgres://primary/db", GetTestDatabaseURL())
}

func TestShouldSkipDatabaseTest_NoURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CARELOOP_TEST_DB_URL", "")
	t.Setenv("CARELOOP_DATABASE_URL", "")
	assert.True(t, ShouldSkipDatabaseTest())
}
