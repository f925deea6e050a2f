// Package memory implements the store driver on in-process maps. It backs
// tests and the demo mode; nothing survives a restart.
package memory

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/fieldops/remindd/store"
)

type DB struct {
	mu sync.RWMutex

	tasks   []*store.ConfirmedTask
	entries []*store.ScheduleEntry

	nextTaskID  int32
	nextEntryID int32
}

// NewDB creates an empty in-memory driver.
func NewDB() *DB {
	return &DB{nextTaskID: 1, nextEntryID: 1}
}

func (d *DB) GetDB() *sql.DB {
	return nil
}

func (d *DB) Close() error {
	return nil
}

func (d *DB) IsInitialized(_ context.Context) (bool, error) {
	return true, nil
}

func (d *DB) CreateTask(_ context.Context, create *store.ConfirmedTask) (*store.ConfirmedTask, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cloned := *create
	cloned.ID = d.nextTaskID
	d.nextTaskID++
	if cloned.CreatedTs == 0 {
		cloned.CreatedTs = time.Now().Unix()
	}
	d.tasks = append(d.tasks, &cloned)

	out := cloned
	return &out, nil
}

func (d *DB) ListTasks(_ context.Context, find *store.FindTask) ([]*store.ConfirmedTask, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	list := make([]*store.ConfirmedTask, 0)
	for _, t := range d.tasks {
		if find.ID != nil && t.ID != *find.ID {
			continue
		}
		if find.UID != nil && t.UID != *find.UID {
			continue
		}
		if find.AssigneeID != nil && t.AssigneeID != *find.AssigneeID {
			continue
		}
		cloned := *t
		list = append(list, &cloned)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].DueTs < list[j].DueTs })
	return paginate(list, find.Limit, find.Offset), nil
}

func (d *DB) CreateScheduleEntry(_ context.Context, create *store.ScheduleEntry) (*store.ScheduleEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cloned := *create
	cloned.ID = d.nextEntryID
	d.nextEntryID++
	now := time.Now().Unix()
	if cloned.CreatedTs == 0 {
		cloned.CreatedTs = now
	}
	if cloned.UpdatedTs == 0 {
		cloned.UpdatedTs = now
	}
	if cloned.Status == "" {
		cloned.Status = store.EntryPending
	}
	d.entries = append(d.entries, &cloned)

	out := cloned
	return &out, nil
}

func (d *DB) ListScheduleEntries(_ context.Context, find *store.FindScheduleEntry) ([]*store.ScheduleEntry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	list := make([]*store.ScheduleEntry, 0)
	for _, e := range d.entries {
		if find.ID != nil && e.ID != *find.ID {
			continue
		}
		if find.UID != nil && e.UID != *find.UID {
			continue
		}
		if find.TaskID != nil && e.TaskID != *find.TaskID {
			continue
		}
		if find.RecipientID != nil && e.RecipientID != *find.RecipientID {
			continue
		}
		if find.FireBefore != nil && e.FireTs >= *find.FireBefore {
			continue
		}
		if len(find.Statuses) > 0 && !statusIn(e.Status, find.Statuses) {
			continue
		}
		cloned := *e
		list = append(list, &cloned)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].FireTs < list[j].FireTs })
	return paginate(list, find.Limit, find.Offset), nil
}

func (d *DB) UpdateScheduleEntry(_ context.Context, update *store.UpdateScheduleEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, e := range d.entries {
		if e.ID != update.ID {
			continue
		}
		if v := update.Status; v != nil {
			e.Status = *v
		}
		if v := update.FireTs; v != nil {
			e.FireTs = *v
		}
		if v := update.Attempts; v != nil {
			e.Attempts = *v
		}
		if v := update.DeliveredTs; v != nil {
			ts := *v
			e.DeliveredTs = &ts
		}
		if v := update.AckTs; v != nil {
			ts := *v
			e.AckTs = &ts
		}
		if v := update.UpdatedTs; v != nil {
			e.UpdatedTs = *v
		} else {
			e.UpdatedTs = time.Now().Unix()
		}
		return nil
	}
	return nil
}

func statusIn(status store.EntryStatus, set []store.EntryStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

func paginate[T any](list []T, limit, offset *int) []T {
	if offset != nil {
		if *offset >= len(list) {
			return nil
		}
		list = list[*offset:]
	}
	if limit != nil && *limit < len(list) {
		list = list[:*limit]
	}
	return list
}

var _ store.Driver = (*DB)(nil)
