package importer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/metroroute/internal/common/db"
	"github.com/metroroute/internal/topology/parser"
	"github.com/metroroute/pkg/topology/models"
)

type Importer struct {
	db        *db.DB
	versionID int
	batchSize int
}

func NewImporter(database *db.DB, versionID int) *Importer {
	return &Importer{
		db:        database,
		versionID: versionID,
		batchSize: 1000,
	}
}

// WithBatchSize overrides the number of rows per INSERT statement.
func (i *Importer) WithBatchSize(n int) *Importer {
	if n > 0 {
		i.batchSize = n
	}
	return i
}

// Import parses the topology at path and stores it under the importer's
// version in a single transaction. Record order is kept in the position
// columns so a network rebuilt from the database matches one built from the file.
func (i *Importer) Import(ctx context.Context, path string) (parser.Stats, error) {
	var stats parser.Stats
	start := time.Now()
	log := i.db.Logger()
	p := parser.New(log)

	tx, err := i.db.BeginTx(ctx)
	if err != nil {
		return stats, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stationBatch := i.newBatchInserter(ctx, tx, "stations")
	connectionBatch := i.newBatchInserter(ctx, tx, "connections")

	stationPos, connectionPos := 0, 0
	callbacks := parser.ParseCallbacks{
		OnStation: func(s *models.StationRecord) error {
			stationPos++
			return stationBatch.Add(
				i.versionID,
				stationPos,
				s.ID,
				s.Name,
				s.Line,
				nullFloat(s.Lat),
				nullFloat(s.Lon),
			)
		},
		OnConnection: func(c *models.ConnectionRecord) error {
			// stations are complete once connections start
			if err := stationBatch.Flush(); err != nil {
				return err
			}
			connectionPos++
			return connectionBatch.Add(
				i.versionID,
				connectionPos,
				c.From,
				c.To,
				c.Minutes,
			)
		},
		OnFileComplete: func(name string, s parser.Stats) error {
			stats = s
			if err := stationBatch.Flush(); err != nil {
				return fmt.Errorf("flushing stations: %w", err)
			}
			if err := connectionBatch.Flush(); err != nil {
				return fmt.Errorf("flushing connections: %w", err)
			}
			return nil
		},
	}

	if err := p.ParseFile(ctx, path, callbacks); err != nil {
		return stats, fmt.Errorf("importing topology: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("committing import: %w", err)
	}

	log.Info("Topology imported",
		"version_id", i.versionID,
		"stations", stats.Stations,
		"connections", stats.Connections,
		"duration", time.Since(start))

	return stats, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

type batchInserter struct {
	ctx        context.Context
	tableName  string
	columns    []string
	values     []interface{}
	valueCount int
	batchSize  int
	tx         *sql.Tx
	fieldCount int
}

func (i *Importer) newBatchInserter(ctx context.Context, tx *sql.Tx, tableName string) *batchInserter {
	columns := getColumnsForTable(tableName)
	return &batchInserter{
		ctx:        ctx,
		tableName:  tableName,
		columns:    columns,
		values:     make([]interface{}, 0, i.batchSize*len(columns)),
		batchSize:  i.batchSize,
		tx:         tx,
		fieldCount: len(columns),
	}
}

func (b *batchInserter) Add(values ...interface{}) error {
	if len(values) != b.fieldCount {
		return fmt.Errorf("%s: got %d values for %d columns", b.tableName, len(values), b.fieldCount)
	}
	b.values = append(b.values, values...)
	b.valueCount++

	if b.valueCount >= b.batchSize {
		return b.Flush()
	}

	return nil
}

func (b *batchInserter) Flush() error {
	if b.valueCount == 0 {
		return nil
	}

	query := b.buildInsertQuery()
	if _, err := b.tx.ExecContext(b.ctx, query, b.values...); err != nil {
		return fmt.Errorf("executing batch insert into %s: %w", b.tableName, err)
	}

	b.values = b.values[:0]
	b.valueCount = 0

	return nil
}

func (b *batchInserter) buildInsertQuery() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "INSERT INTO metro.%s (%s) VALUES ",
		b.tableName,
		strings.Join(b.columns, ", "))

	for i := 0; i < b.valueCount; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j := 0; j < b.fieldCount; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", i*b.fieldCount+j+1)
		}
		sb.WriteString(")")
	}

	sb.WriteString(" ON CONFLICT DO NOTHING")

	return sb.String()
}

func getColumnsForTable(tableName string) []string {
	switch tableName {
	case "stations":
		return []string{"version_id", "position", "station_id", "name", "line", "lat", "lon"}
	case "connections":
		return []string{"version_id", "position", "from_station", "to_station", "minutes"}
	default:
		return nil
	}
}
