// Package sqlite implements the message log on an embedded sqlite
// database. One append-only table holds statuses and commands; the
// (company, car, message_type, ts) index serves the list access pattern.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fleethub-io/fleethub/internal/pkg/metrics"
	"github.com/fleethub-io/fleethub/internal/pkg/util"
	"github.com/fleethub-io/fleethub/internal/relay/core"
	"github.com/fleethub-io/fleethub/internal/relay/core/model"
	"github.com/fleethub-io/fleethub/pkg/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	ts           BIGINT NOT NULL,
	company      TEXT NOT NULL,
	car          TEXT NOT NULL,
	module_id    INTEGER NOT NULL,
	device_type  INTEGER NOT NULL,
	device_role  TEXT NOT NULL,
	device_name  TEXT NOT NULL,
	message_type TEXT NOT NULL,
	encoding     TEXT NOT NULL,
	data         BLOB
);
CREATE INDEX IF NOT EXISTS idx_messages_query ON messages (company, car, message_type, ts);
CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages (ts);
`

// Store is the sqlite-backed MessageRepository. Operational errors trigger
// one automatic reopen-and-retry; a successful restart fires the registered
// hook so the owner can drop in-memory state derived from the log.
type Store struct {
	mu        sync.Mutex
	db        *sql.DB
	path      string
	logger    log.Logger
	onRestart func()
}

var _ core.MessageRepository = (*Store)(nil)

// Open opens (or creates) the database and bootstraps the schema.
func Open(path string, logger log.Logger) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, path: path, logger: logger}, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %q: %w", path, err)
	}
	// The modernc driver serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent appends and the retention sweep.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return db, nil
}

// OnRestart registers the hook invoked after an automatic restart.
func (s *Store) OnRestart(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRestart = fn
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func (s *Store) handle() *sql.DB {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db
}

// restart reopens the database if the failing handle is still current.
// Concurrent failures restart at most once.
func (s *Store) restart(failed *sql.DB) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != failed {
		return nil
	}
	s.db.Close()
	db, err := openDB(s.path)
	if err != nil {
		return err
	}
	s.db = db
	metrics.StoreRestarts.Inc()
	s.logger.Warn("message store restarted after operational error", "path", s.path)
	if s.onRestart != nil {
		s.onRestart()
	}
	return nil
}

// withRetry runs fn, restarting the connection and retrying exactly once on
// an operational failure. Persistent failures surface as ErrUnavailable.
func (s *Store) withRetry(ctx context.Context, op string, fn func(db *sql.DB) error) error {
	start := time.Now()
	defer func() {
		metrics.StoreOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	db := s.handle()
	err := fn(db)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	s.logger.Warn("store operation failed, restarting connection", "op", op, "error", err)
	if rerr := s.restart(db); rerr != nil {
		return fmt.Errorf("%w: %s: restart failed: %v", util.ErrUnavailable, op, rerr)
	}
	if err = fn(s.handle()); err != nil {
		return fmt.Errorf("%w: %s: %v", util.ErrUnavailable, op, err)
	}
	return nil
}

// Append persists the batch in one transaction.
func (s *Store) Append(ctx context.Context, company, car string, messages []model.Message) error {
	if len(messages) == 0 {
		return nil
	}
	return s.withRetry(ctx, "append", func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO messages (ts, company, car, module_id, device_type, device_role, device_name, message_type, encoding, data)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, m := range messages {
			if _, err := stmt.ExecContext(ctx,
				m.Timestamp, company, car,
				m.DeviceID.ModuleID, m.DeviceID.Type, m.DeviceID.Role, m.DeviceID.Name,
				string(m.Payload.Type), string(m.Payload.Encoding), []byte(m.Payload.Data),
			); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// Query lists matching messages ordered by timestamp, insertion order
// breaking ties.
func (s *Store) Query(ctx context.Context, company, car string, types []model.MessageType, since int64) ([]model.Message, error) {
	if len(types) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(types)), ",")
	query := fmt.Sprintf(`
		SELECT ts, module_id, device_type, device_role, device_name, message_type, encoding, data
		FROM messages
		WHERE company = ? AND car = ? AND message_type IN (%s) AND ts >= ?
		ORDER BY ts ASC, id ASC`, placeholders)

	args := make([]any, 0, len(types)+3)
	args = append(args, company, car)
	for _, t := range types {
		args = append(args, string(t))
	}
	args = append(args, since)

	var out []model.Message
	err := s.withRetry(ctx, "query", func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var m model.Message
			var msgType, encoding string
			var data []byte
			if err := rows.Scan(
				&m.Timestamp,
				&m.DeviceID.ModuleID, &m.DeviceID.Type, &m.DeviceID.Role, &m.DeviceID.Name,
				&msgType, &encoding, &data,
			); err != nil {
				return err
			}
			m.Payload.Type = model.MessageType(msgType)
			m.Payload.Encoding = model.PayloadEncoding(encoding)
			m.Payload.Data = data
			out = append(out, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PurgeOlderThan deletes all messages, statuses and commands alike, with a
// timestamp before the cutoff.
func (s *Store) PurgeOlderThan(ctx context.Context, cutoff int64) error {
	return s.withRetry(ctx, "purge", func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, "DELETE FROM messages WHERE ts < ?", cutoff)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			s.logger.Debug("purged expired messages", "count", n, "cutoff", cutoff)
		}
		return nil
	})
}

// InvalidateCommandsBeforeReconnect deletes every pending command for the
// device. Commands stamped after the reconnect timestamp should not exist;
// they are deleted as well and reported back as warnings.
func (s *Store) InvalidateCommandsBeforeReconnect(ctx context.Context, company, car string, id model.DeviceID, reconnect int64) ([]string, error) {
	var warnings []string
	err := s.withRetry(ctx, "invalidate_commands", func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		rows, err := tx.QueryContext(ctx, `
			SELECT ts, data FROM messages
			WHERE company = ? AND car = ? AND module_id = ? AND device_type = ? AND device_role = ? AND message_type = ?
			ORDER BY ts ASC, id ASC`,
			company, car, id.ModuleID, id.Type, id.Role, string(model.MessageTypeCommand))
		if err != nil {
			return err
		}

		warnings = warnings[:0]
		deleted := 0
		for rows.Next() {
			var ts int64
			var data []byte
			if err := rows.Scan(&ts, &data); err != nil {
				rows.Close()
				return err
			}
			deleted++
			if ts > reconnect {
				warnings = append(warnings, fmt.Sprintf(
					"removing command newer than device reconnect: company=%s car=%s device=%s command_timestamp=%d reconnect_timestamp=%d payload=%s",
					company, car, id, ts, reconnect, data))
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if deleted == 0 {
			return tx.Commit()
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM messages
			WHERE company = ? AND car = ? AND module_id = ? AND device_type = ? AND device_role = ? AND message_type = ?`,
			company, car, id.ModuleID, id.Type, id.Role, string(model.MessageTypeCommand)); err != nil {
			return err
		}
		metrics.CommandsInvalidated.Add(float64(deleted))
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return warnings, nil
}

// ConnectedSince summarizes the devices with surviving statuses at or after
// the cutoff, one row per device identity.
func (s *Store) ConnectedSince(ctx context.Context, cutoff int64) ([]core.DeviceObservation, error) {
	var out []core.DeviceObservation
	err := s.withRetry(ctx, "connected_since", func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `
			SELECT company, car, module_id, device_type, device_role, MAX(device_name), MIN(ts), MAX(ts)
			FROM messages
			WHERE message_type IN (?, ?) AND ts >= ?
			GROUP BY company, car, module_id, device_type, device_role`,
			string(model.MessageTypeStatus), string(model.MessageTypeStatusError), cutoff)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var obs core.DeviceObservation
			if err := rows.Scan(
				&obs.Company, &obs.Car,
				&obs.DeviceID.ModuleID, &obs.DeviceID.Type, &obs.DeviceID.Role, &obs.DeviceID.Name,
				&obs.FirstSeen, &obs.LastSeen,
			); err != nil {
				return err
			}
			out = append(out, obs)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.withRetry(ctx, "ping", func(db *sql.DB) error {
		return db.PingContext(ctx)
	})
}
