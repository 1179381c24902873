package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/soochol/blogforge/internal/blog"
)

// stepInsert numbers the record after the workflow's current maximum in the
// same statement, so callers never read-then-write.
func stepInsert(rec *blog.StepRecord) (string, []any, error) {
	meta := rec.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", nil, fmt.Errorf("marshal step metadata: %w", err)
	}

	next := psql.Select().
		Column("?::text", rec.ID).
		Column("?::text", rec.WorkflowID).
		Column("?::text", string(rec.StepName)).
		Column("COALESCE(MAX(step_number), 0) + 1").
		Column("?::text", string(rec.Status)).
		Column("?::jsonb", string(metaJSON)).
		Column("?::text", nullString(rec.ErrorMessage)).
		Column("?::text", nullString(rec.ErrorStack)).
		Column("?::bigint", rec.DurationMs).
		From("workflow_logs").
		Where(sq.Eq{"workflow_id": rec.WorkflowID})

	return psql.Insert("workflow_logs").
		Columns("id", "workflow_id", "step_name", "step_number", "status",
			"metadata", "error_message", "error_stack", "duration_ms").
		Select(next).
		Suffix("RETURNING step_number, created_at").
		ToSql()
}

// AppendStep inserts one step record, assigning ID, StepNumber and CreatedAt.
func (d *DB) AppendStep(ctx context.Context, rec *blog.StepRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	query, args, err := stepInsert(rec)
	if err != nil {
		return err
	}
	if err := d.Pool.QueryRowContext(ctx, query, args...).Scan(&rec.StepNumber, &rec.CreatedAt); err != nil {
		return fmt.Errorf("insert workflow log: %w", err)
	}
	return nil
}

// ListSteps returns the records of one workflow in creation order.
func (d *DB) ListSteps(ctx context.Context, workflowID string) ([]blog.StepRecord, error) {
	query, args, err := psql.
		Select("id", "workflow_id", "step_name", "step_number", "status", "metadata",
			"error_message", "error_stack", "duration_ms", "created_at").
		From("workflow_logs").
		Where(sq.Eq{"workflow_id": workflowID}).
		OrderBy("created_at", "step_number").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list workflow logs: %w", err)
	}

	rows, err := d.Pool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list workflow logs: %w", err)
	}
	defer rows.Close()

	var out []blog.StepRecord
	for rows.Next() {
		var (
			rec              blog.StepRecord
			name, status     string
			metaJSON         []byte
			errMsg, errStack sql.NullString
			duration         sql.NullInt64
		)
		if err := rows.Scan(&rec.ID, &rec.WorkflowID, &name, &rec.StepNumber, &status, &metaJSON,
			&errMsg, &errStack, &duration, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan workflow log: %w", err)
		}
		rec.StepName = blog.StepName(name)
		rec.Status = blog.StepStatus(status)
		rec.ErrorMessage = errMsg.String
		rec.ErrorStack = errStack.String
		if duration.Valid {
			ms := duration.Int64
			rec.DurationMs = &ms
		}
		rec.Metadata = decodeMetadata(rec.ID, metaJSON)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workflow logs: %w", err)
	}
	return out, nil
}

// decodeMetadata parses a stored metadata document. Corrupt documents are
// logged and dropped so the rest of the history stays readable.
func decodeMetadata(recID string, raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var meta map[string]any
	if err := json.Unmarshal(raw, &meta); err != nil {
		slog.Warn("db: dropping unreadable workflow log metadata", "id", recID, "err", err)
		return nil
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
