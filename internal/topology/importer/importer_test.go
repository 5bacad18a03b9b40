package importer

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metroroute/internal/common/db"
	"github.com/metroroute/internal/common/logger"
)

func TestBuildInsertQuery(t *testing.T) {
	b := &batchInserter{
		tableName:  "connections",
		columns:    getColumnsForTable("connections"),
		fieldCount: 5,
		valueCount: 2,
	}

	assert.Equal(t,
		"INSERT INTO metro.connections (version_id, position, from_station, to_station, minutes) "+
			"VALUES ($1, $2, $3, $4, $5), ($6, $7, $8, $9, $10) ON CONFLICT DO NOTHING",
		b.buildInsertQuery())
}

func TestImport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metro.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"stations": [
			{"id": "x", "name": "X", "line": "L1", "lat": 41.1, "lon": 29.2},
			{"name": "Y"}
		],
		"connections": [
			{"source": "X", "target": "Y", "time": 5},
			{"source": "Y", "target": "X", "time": 7},
			{"source": "Y", "time": 1}
		]
	}`), 0o644))

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO metro.stations")).
		WithArgs(
			4, 1, "x", "X", "L1", sql.NullFloat64{Float64: 41.1, Valid: true}, sql.NullFloat64{Float64: 29.2, Valid: true},
			4, 2, "Y", "Y", "", sql.NullFloat64{}, sql.NullFloat64{},
		).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO metro.connections")).
		WithArgs(4, 1, "X", "Y", 5, 4, 2, "Y", "X", 7).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	stats, err := NewImporter(db.Wrap(conn, logger.Nop()), 4).Import(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Stations)
	assert.Equal(t, 2, stats.Connections)
	assert.Equal(t, 1, stats.SkippedConnections)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImport_SmallBatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metro.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"stations": [{"name": "A"}, {"name": "B"}, {"name": "C"}],
		"connections": []
	}`), 0o644))

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO metro.stations").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO metro.stations").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err = NewImporter(db.Wrap(conn, logger.Nop()), 1).WithBatchSize(2).Import(context.Background(), path)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImport_RollsBackOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metro.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"stations": [{"name": "A"}], "connections": []}`), 0o644))

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO metro.stations").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, err = NewImporter(db.Wrap(conn, logger.Nop()), 1).Import(context.Background(), path)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}
