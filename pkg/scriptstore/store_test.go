package scriptstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	// one connection, so every query sees the same in-memory database
	s, err := Open("sqlite", ":memory:", 1, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestStoreCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Put(ctx, "Hello World", "lua", `return "hi"`)
	require.NoError(t, err)
	assert.Equal(t, "hello-world", created.Slug)
	assert.Equal(t, "Hello World", created.Name)

	got, err := s.Get(ctx, "hello-world")
	require.NoError(t, err)
	assert.Equal(t, `return "hi"`, got.Source)
	assert.Equal(t, "lua", got.Lang)

	updated, err := s.Put(ctx, "hello world", "expr", "1 + 1")
	require.NoError(t, err)
	assert.Equal(t, "expr", updated.Lang)
	assert.Equal(t, "1 + 1", updated.Source)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	_, err = s.Put(ctx, "Another", "lua", "return 2")
	require.NoError(t, err)

	list, err := s.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "another", list[0].Slug)
	assert.Empty(t, list[0].Source)

	page, err := s.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "hello-world", page[0].Slug)

	require.NoError(t, s.Delete(ctx, "Hello World"))
	_, err = s.Get(ctx, "hello-world")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "hello-world"), ErrNotFound)
}

func TestStoreRejectsEmptyNames(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Put(context.Background(), "!!!", "lua", "return 1")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestOpenFailure(t *testing.T) {
	_, err := Open("no-such-driver", "", 0, 0)
	assert.Error(t, err)
}

func TestDialects(t *testing.T) {
	tests := []struct {
		driver      string
		name        string
		placeholder string
		quoted      string
		limit       string
	}{
		{"mysql", "mysql", "?", "`t`", " LIMIT 5, 10"},
		{"sqlite3", "sqlite", "?", `"t"`, " LIMIT 10 OFFSET 5"},
		{"postgres", "postgres", "$2", `"t"`, " LIMIT 10 OFFSET 5"},
		{"mssql", "sqlserver", "@p2", "[t]", " OFFSET 5 ROWS FETCH NEXT 10 ROWS ONLY"},
		{"unknown", "mysql", "?", "`t`", " LIMIT 5, 10"},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d := GetDialect(tt.driver)
			assert.Equal(t, tt.name, d.Name())
			assert.Equal(t, tt.placeholder, d.Placeholder(2))
			assert.Equal(t, tt.quoted, d.QuoteIdentifier("t"))
			assert.Equal(t, tt.limit, d.Limit(10, 5))
		})
	}

	assert.Equal(t, " LIMIT -1 OFFSET 3", SQLiteDialect{}.Limit(0, 3))
	assert.Contains(t, SQLServerDialect{}.CreateTable("s", "a INT"), "IF OBJECT_ID(N's', N'U') IS NULL")
}
