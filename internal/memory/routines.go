package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rrclaw/rrclaw/pkg/models"
)

// SaveRoutine inserts or replaces a routine definition (spec §4.12's
// dynamic add persists immediately to the routines table).
func (m *Manager) SaveRoutine(ctx context.Context, r models.Routine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO routines (name, schedule, message, channel, enabled, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET schedule = excluded.schedule, message = excluded.message,
			channel = excluded.channel, enabled = excluded.enabled
	`, r.Name, r.Schedule, r.Message, r.Channel, boolToInt(r.Enabled), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save routine: %w", err)
	}
	return nil
}

// ListRoutines returns every routine saved in the routines table, each
// reported with Source "dynamic".
func (m *Manager) ListRoutines(ctx context.Context) ([]models.Routine, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT name, schedule, message, channel, enabled FROM routines ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list routines: %w", err)
	}
	defer rows.Close()

	var out []models.Routine
	for rows.Next() {
		var r models.Routine
		var enabled int
		if err := rows.Scan(&r.Name, &r.Schedule, &r.Message, &r.Channel, &enabled); err != nil {
			return nil, fmt.Errorf("scan routine: %w", err)
		}
		r.Enabled = enabled != 0
		r.Source = "dynamic"
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteRoutine removes a routine by name.
func (m *Manager) DeleteRoutine(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.db.ExecContext(ctx, `DELETE FROM routines WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete routine: %w", err)
	}
	return nil
}

// SetRoutineEnabled flips a routine's enabled flag.
func (m *Manager) SetRoutineEnabled(ctx context.Context, name string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, err := m.db.ExecContext(ctx, `UPDATE routines SET enabled = ? WHERE name = ?`, boolToInt(enabled), name)
	if err != nil {
		return fmt.Errorf("set routine enabled: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("routine %q not found", name)
	}
	return nil
}

// AppendRoutineLog records one completed execution to routines_log.
func (m *Manager) AppendRoutineLog(ctx context.Context, id string, exec models.RoutineExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO routines_log (id, routine_name, started_at, finished_at, success, output, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, exec.RoutineName, exec.StartedAt, exec.FinishedAt, boolToInt(exec.Success), exec.OutputPreview, exec.Error)
	if err != nil {
		return fmt.Errorf("append routine log: %w", err)
	}
	return nil
}

// RoutineLogs returns the most recent execution records for a routine,
// newest first.
func (m *Manager) RoutineLogs(ctx context.Context, name string, limit int) ([]models.RoutineExecution, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := m.db.QueryContext(ctx, `
		SELECT routine_name, started_at, finished_at, success, output, error
		FROM routines_log WHERE routine_name = ?
		ORDER BY started_at DESC LIMIT ?
	`, name, limit)
	if err != nil {
		return nil, fmt.Errorf("routine logs: %w", err)
	}
	defer rows.Close()

	var out []models.RoutineExecution
	for rows.Next() {
		var e models.RoutineExecution
		var success int
		var output, errMsg sql.NullString
		if err := rows.Scan(&e.RoutineName, &e.StartedAt, &e.FinishedAt, &success, &output, &errMsg); err != nil {
			return nil, fmt.Errorf("scan routine log: %w", err)
		}
		e.Success = success != 0
		e.OutputPreview = output.String
		e.Error = errMsg.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
