// Package postgres stores uploads in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/and161185/gnss-relay/internal/utils"
	"github.com/and161185/gnss-relay/model"
	"github.com/and161185/gnss-relay/storage"
)

const (
	kindMeasurements = "measurements"
	kindNavigation   = "navigation"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS gnss_batches (
		batch_id    TEXT PRIMARY KEY,
		kind        TEXT NOT NULL,
		records     INTEGER NOT NULL,
		received_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS gnss_measurements (
		id                            BIGSERIAL PRIMARY KEY,
		batch_id                      TEXT NOT NULL,
		received_at                   TIMESTAMPTZ NOT NULL,
		svid                          INTEGER NOT NULL,
		constellation_type            INTEGER NOT NULL,
		time_offset_nanos             DOUBLE PRECISION NOT NULL,
		state                         INTEGER NOT NULL,
		received_sv_time_nanos        BIGINT NOT NULL,
		received_sv_time_unc_nanos    BIGINT NOT NULL,
		cn0_db_hz                     DOUBLE PRECISION NOT NULL,
		pseudorange_rate_mps          DOUBLE PRECISION NOT NULL,
		pseudorange_rate_unc_mps      DOUBLE PRECISION NOT NULL,
		adr_state                     INTEGER NOT NULL,
		adr_meters                    DOUBLE PRECISION NOT NULL,
		adr_unc_meters                DOUBLE PRECISION NOT NULL,
		carrier_frequency_hz          DOUBLE PRECISION NOT NULL,
		multipath_indicator           INTEGER NOT NULL,
		code_type                     TEXT,
		time_nanos                    BIGINT NOT NULL,
		full_bias_nanos               BIGINT NOT NULL,
		bias_nanos                    DOUBLE PRECISION NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS gnss_measurements_received_at_idx ON gnss_measurements (received_at)`,
	`CREATE TABLE IF NOT EXISTS gnss_nav_messages (
		id             BIGSERIAL PRIMARY KEY,
		batch_id       TEXT NOT NULL,
		received_at    TIMESTAMPTZ NOT NULL,
		message_type   INTEGER NOT NULL,
		message_id     INTEGER NOT NULL,
		sub_message_id INTEGER NOT NULL,
		data           SMALLINT[] NOT NULL
	)`,
}

var measurementColumns = []string{
	"batch_id", "received_at", "svid", "constellation_type", "time_offset_nanos", "state",
	"received_sv_time_nanos", "received_sv_time_unc_nanos", "cn0_db_hz",
	"pseudorange_rate_mps", "pseudorange_rate_unc_mps", "adr_state", "adr_meters", "adr_unc_meters",
	"carrier_frequency_hz", "multipath_indicator", "code_type", "time_nanos", "full_bias_nanos", "bias_nanos",
}

// PostgresStorage is a storage.Storage backed by PostgreSQL.
type PostgresStorage struct {
	db     *pgxpool.Pool
	logger *zap.SugaredLogger
	delays []time.Duration
	now    func() time.Time
}

var _ storage.Storage = (*PostgresStorage)(nil)

// NewPostgresStorage connects to dsn and creates the tables if needed.
func NewPostgresStorage(ctx context.Context, dsn string, logger *zap.SugaredLogger) (*PostgresStorage, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	store := &PostgresStorage{
		db:     db,
		logger: logger,
		delays: utils.DefaultDelays,
		now:    func() time.Time { return time.Now().UTC() },
	}
	if err := store.bootstrap(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (store *PostgresStorage) bootstrap(ctx context.Context) error {
	return store.retry(ctx, "bootstrap", func() error {
		for _, stmt := range schema {
			if _, err := store.db.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("create schema: %w", err)
			}
		}
		return nil
	})
}

func (store *PostgresStorage) retry(ctx context.Context, op string, fn func() error) error {
	attempts, err := utils.WithRetry(ctx, store.delays, fn)
	if attempts > 1 {
		store.logger.Warnw("database operation retried", "op", op, "attempts", attempts, "error", err)
	}
	return err
}

// claim inserts the batch row. It reports false when the batch id is already known.
func claim(ctx context.Context, tx pgx.Tx, batchID, kind string, records int, at time.Time) (bool, error) {
	tag, err := tx.Exec(ctx,
		`INSERT INTO gnss_batches (batch_id, kind, records, received_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (batch_id) DO NOTHING`,
		batchID, kind, records, at)
	if err != nil {
		return false, fmt.Errorf("insert batch: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (store *PostgresStorage) SaveMeasurements(ctx context.Context, batchID string, records []model.Measurement) (int, bool, error) {
	if len(records) == 0 {
		return 0, false, storage.ErrEmptyBatch
	}

	var accepted int
	var duplicate bool
	err := store.retry(ctx, "save measurements", func() error {
		accepted, duplicate = 0, false
		return pgx.BeginFunc(ctx, store.db, func(tx pgx.Tx) error {
			at := store.now()
			if batchID != "" {
				fresh, err := claim(ctx, tx, batchID, kindMeasurements, len(records), at)
				if err != nil {
					return err
				}
				if !fresh {
					duplicate = true
					return nil
				}
			}
			n, err := tx.CopyFrom(ctx, pgx.Identifier{"gnss_measurements"}, measurementColumns,
				pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
					return measurementRow(batchID, at, records[i]), nil
				}))
			if err != nil {
				return fmt.Errorf("copy measurements: %w", err)
			}
			accepted = int(n)
			return nil
		})
	})
	if err != nil {
		return 0, false, err
	}
	return accepted, duplicate, nil
}

func (store *PostgresStorage) SaveNavMessage(ctx context.Context, batchID string, msg model.NavMessage) (bool, error) {
	var duplicate bool
	err := store.retry(ctx, "save nav message", func() error {
		duplicate = false
		return pgx.BeginFunc(ctx, store.db, func(tx pgx.Tx) error {
			at := store.now()
			if batchID != "" {
				fresh, err := claim(ctx, tx, batchID, kindNavigation, 1, at)
				if err != nil {
					return err
				}
				if !fresh {
					duplicate = true
					return nil
				}
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO gnss_nav_messages (batch_id, received_at, message_type, message_id, sub_message_id, data)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				batchID, at, msg.MessageType, msg.MessageID, msg.SubMessageID, navDataToDB(msg.Data))
			if err != nil {
				return fmt.Errorf("insert nav message: %w", err)
			}
			return nil
		})
	})
	return duplicate, err
}

func (store *PostgresStorage) Recent(ctx context.Context, limit int) ([]model.StoredMeasurement, error) {
	var out []model.StoredMeasurement
	err := store.retry(ctx, "recent", func() error {
		rows, err := store.db.Query(ctx,
			`SELECT `+joinColumns(measurementColumns)+`
			FROM gnss_measurements ORDER BY id DESC LIMIT $1`, storage.ClampLimit(limit))
		if err != nil {
			return fmt.Errorf("query measurements: %w", err)
		}
		out, err = pgx.CollectRows(rows, scanMeasurement)
		return err
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

func (store *PostgresStorage) RecentNav(ctx context.Context, limit int) ([]model.StoredNavMessage, error) {
	var out []model.StoredNavMessage
	err := store.retry(ctx, "recent nav", func() error {
		rows, err := store.db.Query(ctx,
			`SELECT batch_id, received_at, message_type, message_id, sub_message_id, data
			FROM gnss_nav_messages ORDER BY id DESC LIMIT $1`, storage.ClampLimit(limit))
		if err != nil {
			return fmt.Errorf("query nav messages: %w", err)
		}
		out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.StoredNavMessage, error) {
			var s model.StoredNavMessage
			var data []int16
			err := row.Scan(&s.BatchID, &s.ReceivedAt, &s.Message.MessageType, &s.Message.MessageID, &s.Message.SubMessageID, &data)
			s.Message.Data = navDataFromDB(data)
			return s, err
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

func (store *PostgresStorage) Ping(ctx context.Context) error {
	if store == nil || store.db == nil {
		return errors.New("postgres: nil pool")
	}
	return store.db.Ping(ctx)
}

// Close releases the pool.
func (store *PostgresStorage) Close() {
	store.db.Close()
}
