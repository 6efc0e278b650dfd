package timeseries

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSource(t *testing.T, name string) *Source {
	t.Helper()
	src, err := Open(filepath.Join(t.TempDir(), name))
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })
	return src
}

func TestOpenNamesSourceAfterBasename(t *testing.T) {
	src := openTestSource(t, "lakes.db")
	assert.Equal(t, "lakes.db", src.Name())
}

func TestRangeIsHalfOpen(t *testing.T) {
	src := openTestSource(t, "lakes.db")
	for ts := 1.0; ts <= 5.0; ts++ {
		require.NoError(t, src.Insert(ts, "geojson", `{"n":`+fmt.Sprint(ts)+`}`, false))
	}

	// Lower bound exclusive, upper bound inclusive.
	rows, err := src.Range(context.Background(), 2.0, 4.0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 3.0, rows[0].TS)
	assert.Equal(t, 4.0, rows[1].TS)
}

func TestRangeOrdersAscending(t *testing.T) {
	src := openTestSource(t, "lakes.db")
	for _, ts := range []float64{5, 1, 3, 2, 4} {
		require.NoError(t, src.Insert(ts, "row", `{}`, false))
	}

	rows, err := src.Range(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	for i := 1; i < len(rows); i++ {
		assert.Greater(t, rows[i].TS, rows[i-1].TS)
	}
}

func TestRangeDefaultsNullPath(t *testing.T) {
	src := openTestSource(t, "lakes.db")
	// Insert leaves path NULL.
	require.NoError(t, src.Insert(2.5, "raster", `{"w":64}`, false))

	rows, err := src.Range(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, fmt.Sprintf("lakes.db/%v", 2.5), rows[0].Path)
	assert.Equal(t, "lakes.db", rows[0].DB)
	assert.Equal(t, "raster", rows[0].Type)
	assert.Equal(t, map[string]any{"w": 64.0}, rows[0].Content)
}

func TestInsertOverwrite(t *testing.T) {
	src := openTestSource(t, "lakes.db")
	require.NoError(t, src.Insert(1.0, "a", `1`, false))
	// A plain insert at the same ts violates the primary key.
	require.Error(t, src.Insert(1.0, "a", `2`, false))
	require.NoError(t, src.Insert(1.0, "a", `2`, true))

	rows, err := src.Range(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2.0, rows[0].Content)
}

func TestProperties(t *testing.T) {
	src := openTestSource(t, "lakes.db")
	require.NoError(t, src.SetProperties(`{"title":"Lake survey","epsg":4326}`, 1))

	props, err := src.Properties(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Lake survey", props["title"])
	assert.Equal(t, 4326.0, props["epsg"])
	assert.Equal(t, "lakes.db", props["db"])
}

func TestPropertiesMissingMeta(t *testing.T) {
	src := openTestSource(t, "lakes.db")
	_, err := src.Properties(context.Background())
	assert.Error(t, err)
}

func TestSetAggregatesSources(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.db")
	b := filepath.Join(dir, "b.db")

	srcA, err := Open(a)
	require.NoError(t, err)
	require.NoError(t, srcA.Insert(1.0, "x", `{}`, false))
	require.NoError(t, srcA.SetProperties(`{"name":"a"}`, 1))
	srcA.Close()

	srcB, err := Open(b)
	require.NoError(t, err)
	require.NoError(t, srcB.Insert(2.0, "y", `{}`, false))
	require.NoError(t, srcB.SetProperties(`{"name":"b"}`, 1))
	srcB.Close()

	set, err := OpenSet([]string{a, b})
	require.NoError(t, err)
	defer set.Close()

	rows, err := set.Range(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a.db", rows[0].DB)
	assert.Equal(t, "b.db", rows[1].DB)

	info, err := set.Info(context.Background())
	require.NoError(t, err)
	require.Len(t, info, 2)
	assert.Equal(t, "a", info[0]["name"])
	assert.Equal(t, "a.db", info[0]["db"])
}

func TestEmptySet(t *testing.T) {
	set, err := OpenSet(nil)
	require.NoError(t, err)
	defer set.Close()

	rows, err := set.Range(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 0, set.Len())
}
