package database

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationSourceOrdersEmbeddedFiles(t *testing.T) {
	src, err := MigrationSource()
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	next, err := src.Next(first)
	require.NoError(t, err)
	assert.Equal(t, uint(2), next)

	body, _, err := src.ReadUp(next)
	require.NoError(t, err)
	defer body.Close()
	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	sql := string(raw)
	assert.True(t, strings.Contains(sql, "uq_work_orders_building_period_type"))
	assert.True(t, strings.Contains(sql, "ON DELETE CASCADE"))
}
