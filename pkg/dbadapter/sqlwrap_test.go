package dbadapter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapLimit_AddsLimitWhenAbsent(t *testing.T) {
	wrapped := wrapLimit("SELECT * FROM orders", 50)
	assert.Contains(t, wrapped, "LIMIT 50")
	assert.Contains(t, wrapped, "SELECT * FROM orders")
}

func TestWrapLimit_LeavesExistingLimitAlone(t *testing.T) {
	original := "SELECT * FROM orders LIMIT 10"
	assert.Equal(t, original, wrapLimit(original, 50))
}

func TestWrapLimit_TrailingSemicolonStripped(t *testing.T) {
	wrapped := wrapLimit("SELECT * FROM orders;", 50)
	assert.NotContains(t, wrapped, ";")
}

func TestWrapCount_EmbedsCapPlusOne(t *testing.T) {
	probe := wrapCount("SELECT * FROM orders", 1000)
	assert.Contains(t, probe, "LIMIT 1001")
	assert.Contains(t, probe, "COUNT(*)")
}

func TestClassify_DeadlineExceeded(t *testing.T) {
	assert.ErrorIs(t, classify(errors.New("context deadline exceeded")), ErrDBTimeout)
}

func TestClassify_Syntax(t *testing.T) {
	assert.ErrorIs(t, classify(errors.New("no such table: ghosts")), ErrDBSyntax)
}

func TestClassify_Permission(t *testing.T) {
	assert.ErrorIs(t, classify(errors.New("attempt to write a readonly database")), ErrDBPermission)
}

func TestClassify_Nil(t *testing.T) {
	assert.Nil(t, classify(nil))
}
