package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/fieldops/remindd/store"
)

func (d *DB) CreateScheduleEntry(ctx context.Context, create *store.ScheduleEntry) (*store.ScheduleEntry, error) {
	fields := []string{
		"uid", "task_id", "recipient_id", "fire_ts", "status", "reason",
		"attempts", "idempotency_token", "parent_uid",
	}
	placeholderValues := []any{
		create.UID, create.TaskID, create.RecipientID, create.FireTs, create.Status, create.Reason,
		create.Attempts, create.IdempotencyToken, create.ParentUID,
	}

	if create.CreatedTs != 0 {
		fields = append(fields, "created_ts")
		placeholderValues = append(placeholderValues, create.CreatedTs)
	}
	if create.UpdatedTs != 0 {
		fields = append(fields, "updated_ts")
		placeholderValues = append(placeholderValues, create.UpdatedTs)
	}

	stmt := `INSERT INTO schedule_entry (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(placeholderValues)) + `)
		RETURNING id, created_ts, updated_ts, status`

	if err := d.db.QueryRowContext(ctx, stmt, placeholderValues...).Scan(
		&create.ID,
		&create.CreatedTs,
		&create.UpdatedTs,
		&create.Status,
	); err != nil {
		return nil, fmt.Errorf("failed to create schedule entry: %w", err)
	}

	return create, nil
}

func (d *DB) ListScheduleEntries(ctx context.Context, find *store.FindScheduleEntry) ([]*store.ScheduleEntry, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "schedule_entry.id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "schedule_entry.uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.TaskID; v != nil {
		where, args = append(where, "schedule_entry.task_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.RecipientID; v != nil {
		where, args = append(where, "schedule_entry.recipient_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.FireBefore; v != nil {
		where, args = append(where, "schedule_entry.fire_ts < "+placeholder(len(args)+1)), append(args, *v)
	}
	if len(find.Statuses) > 0 {
		holders := make([]string, 0, len(find.Statuses))
		for _, status := range find.Statuses {
			holders = append(holders, placeholder(len(args)+1))
			args = append(args, status)
		}
		where = append(where, "schedule_entry.status IN ("+strings.Join(holders, ", ")+")")
	}

	query := `
		SELECT
			id, uid, created_ts, updated_ts, task_id, recipient_id,
			fire_ts, status, reason, attempts, idempotency_token, parent_uid,
			delivered_ts, ack_ts
		FROM schedule_entry
		WHERE ` + strings.Join(where, " AND ") + ` ORDER BY schedule_entry.fire_ts ASC`

	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
		if find.Offset != nil {
			query = fmt.Sprintf("%s OFFSET %d", query, *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule entries: %w", err)
	}
	defer rows.Close()

	list := make([]*store.ScheduleEntry, 0)
	for rows.Next() {
		var entry store.ScheduleEntry
		var parentUID sql.NullString
		var deliveredTs, ackTs sql.NullInt64

		if err := rows.Scan(
			&entry.ID,
			&entry.UID,
			&entry.CreatedTs,
			&entry.UpdatedTs,
			&entry.TaskID,
			&entry.RecipientID,
			&entry.FireTs,
			&entry.Status,
			&entry.Reason,
			&entry.Attempts,
			&entry.IdempotencyToken,
			&parentUID,
			&deliveredTs,
			&ackTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan schedule entry: %w", err)
		}

		if parentUID.Valid {
			entry.ParentUID = &parentUID.String
		}
		if deliveredTs.Valid {
			entry.DeliveredTs = &deliveredTs.Int64
		}
		if ackTs.Valid {
			entry.AckTs = &ackTs.Int64
		}

		list = append(list, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate schedule entries: %w", err)
	}

	return list, nil
}

func (d *DB) UpdateScheduleEntry(ctx context.Context, update *store.UpdateScheduleEntry) error {
	set, args := []string{}, []any{}

	if v := update.Status; v != nil {
		set, args = append(set, "status = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.FireTs; v != nil {
		set, args = append(set, "fire_ts = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Attempts; v != nil {
		set, args = append(set, "attempts = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.DeliveredTs; v != nil {
		set, args = append(set, "delivered_ts = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.AckTs; v != nil {
		set, args = append(set, "ack_ts = "+placeholder(len(args)+1)), append(args, *v)
	}

	if len(set) == 0 {
		return nil
	}

	updatedTs := update.UpdatedTs
	if updatedTs == nil {
		now := time.Now().Unix()
		updatedTs = &now
	}
	set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *updatedTs)

	args = append(args, update.ID)

	stmt := `UPDATE schedule_entry SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args))
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to update schedule entry: %w", err)
	}

	return nil
}
