package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/fieldops/remindd/store"
)

func (d *DB) CreateTask(ctx context.Context, create *store.ConfirmedTask) (*store.ConfirmedTask, error) {
	fields := []string{
		"uid", "raw_text", "task", "assignee_id", "assigner_id",
		"due_ts", "reminder_ts", "timezone", "provenance",
		"repeat_interval", "recurrence_rule", "site", "confidence", "correction_history",
	}
	placeholderValues := []any{
		create.UID, create.RawText, create.Task, create.AssigneeID, create.AssignerID,
		create.DueTs, create.ReminderTs, create.Timezone, create.Provenance,
		create.RepeatInterval, create.RecurrenceRule, create.Site, create.Confidence, create.CorrectionHistory,
	}

	if create.CreatedTs != 0 {
		fields = append(fields, "created_ts")
		placeholderValues = append(placeholderValues, create.CreatedTs)
	}

	stmt := `INSERT INTO task (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(placeholderValues)) + `)
		RETURNING id, created_ts`

	if err := d.db.QueryRowContext(ctx, stmt, placeholderValues...).Scan(
		&create.ID,
		&create.CreatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return create, nil
}

func (d *DB) ListTasks(ctx context.Context, find *store.FindTask) ([]*store.ConfirmedTask, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "task.id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "task.uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.AssigneeID; v != nil {
		where, args = append(where, "task.assignee_id = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `
		SELECT
			id, uid, created_ts, raw_text, task, assignee_id, assigner_id,
			due_ts, reminder_ts, timezone, provenance,
			repeat_interval, recurrence_rule, site, confidence, correction_history
		FROM task
		WHERE ` + strings.Join(where, " AND ") + ` ORDER BY task.due_ts ASC`

	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
		if find.Offset != nil {
			query = fmt.Sprintf("%s OFFSET %d", query, *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	list := make([]*store.ConfirmedTask, 0)
	for rows.Next() {
		var task store.ConfirmedTask
		var recurrenceRule, correctionHistory sql.NullString

		if err := rows.Scan(
			&task.ID,
			&task.UID,
			&task.CreatedTs,
			&task.RawText,
			&task.Task,
			&task.AssigneeID,
			&task.AssignerID,
			&task.DueTs,
			&task.ReminderTs,
			&task.Timezone,
			&task.Provenance,
			&task.RepeatInterval,
			&recurrenceRule,
			&task.Site,
			&task.Confidence,
			&correctionHistory,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		if recurrenceRule.Valid {
			task.RecurrenceRule = &recurrenceRule.String
		}
		if correctionHistory.Valid {
			task.CorrectionHistory = &correctionHistory.String
		}

		list = append(list, &task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return list, nil
}
