package postgresutils

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type upsertModel struct {
	bun.BaseModel `bun:"table:things"`
	ID            string `bun:",pk"`
	Name          string
	CreatedAt     time.Time
}

func TestTableSetString(t *testing.T) {
	sqldb, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	defer db.Close()

	assert.Equal(t,
		"created_at = EXCLUDED.created_at, name = EXCLUDED.name",
		TableSetString(db, (*upsertModel)(nil), "id"),
	)
	assert.Equal(t, "name = EXCLUDED.name", TableSetString(db, (*upsertModel)(nil), "id", "created_at"))
}

func TestHostWithPort(t *testing.T) {
	assert.Equal(t, "db:5432", hostWithPort("db"))
	assert.Equal(t, "db:6543", hostWithPort("db:6543"))
	assert.Equal(t, "localhost:5432", hostWithPort(""))
}
