// Package stats keeps lightweight local usage statistics for the reminder
// pipeline. It is an operator convenience, not a metrics backend.
package stats

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fieldops/remindd/store"
)

// Stats is a point-in-time snapshot of pipeline activity.
type Stats struct {
	// Task stats, collected from the store.
	TotalTasks     int64
	TasksLastWeek  int64
	RecurringTasks int64

	// Entry stats by lifecycle state.
	PendingEntries      int64
	DeliveredEntries    int64
	AcknowledgedEntries int64
	FailedEntries       int64
	OverduePending      int64

	// Conversation counters, recorded live.
	MessagesHandled int64
	Clarifications  int64
	Confirmations   int64
	Abandonments    int64
	ParserErrors    int64

	LastUpdated time.Time
}

// Collector gathers store-derived stats on a timer and live counters as
// the pipeline reports them.
type Collector struct {
	store *store.Store

	mu    sync.RWMutex
	stats Stats

	messagesHandled atomic.Int64
	clarifications  atomic.Int64
	confirmations   atomic.Int64
	abandonments    atomic.Int64
	parserErrors    atomic.Int64

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCollector creates a collector over the store.
func NewCollector(st *store.Store) *Collector {
	return &Collector{
		store:  st,
		stopCh: make(chan struct{}),
	}
}

// Start collects once immediately, then hourly until the context ends.
func (c *Collector) Start(ctx context.Context) {
	c.collect(ctx)

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.collect(ctx)
			case <-ctx.Done():
				return
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop halts periodic collection.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// RecordMessage counts one handled conversation turn.
func (c *Collector) RecordMessage() { c.messagesHandled.Add(1) }

// RecordClarification counts one clarification round.
func (c *Collector) RecordClarification() { c.clarifications.Add(1) }

// RecordConfirmation counts one confirmed task.
func (c *Collector) RecordConfirmation() { c.confirmations.Add(1) }

// RecordAbandonment counts one abandoned conversation.
func (c *Collector) RecordAbandonment() { c.abandonments.Add(1) }

// RecordParserError counts one failed parser call.
func (c *Collector) RecordParserError() { c.parserErrors.Add(1) }

// GetStats returns the latest snapshot with live counters folded in.
func (c *Collector) GetStats() Stats {
	c.mu.RLock()
	snapshot := c.stats
	c.mu.RUnlock()

	snapshot.MessagesHandled = c.messagesHandled.Load()
	snapshot.Clarifications = c.clarifications.Load()
	snapshot.Confirmations = c.confirmations.Load()
	snapshot.Abandonments = c.abandonments.Load()
	snapshot.ParserErrors = c.parserErrors.Load()
	return snapshot
}

// Refresh forces a store collection outside the hourly tick.
func (c *Collector) Refresh(ctx context.Context) {
	c.collect(ctx)
}

func (c *Collector) collect(ctx context.Context) {
	now := time.Now()
	next := Stats{LastUpdated: now}

	tasks, err := c.store.ListTasks(ctx, &store.FindTask{})
	if err == nil {
		weekAgo := now.AddDate(0, 0, -7).Unix()
		next.TotalTasks = int64(len(tasks))
		for _, task := range tasks {
			if task.CreatedTs >= weekAgo {
				next.TasksLastWeek++
			}
			if task.RecurrenceRule != nil {
				next.RecurringTasks++
			}
		}
	}

	entries, err := c.store.ListScheduleEntries(ctx, &store.FindScheduleEntry{})
	if err == nil {
		nowTs := now.Unix()
		for _, entry := range entries {
			switch entry.Status {
			case store.EntryPending:
				next.PendingEntries++
				if entry.FireTs < nowTs {
					next.OverduePending++
				}
			case store.EntryDelivered:
				next.DeliveredEntries++
			case store.EntryAcknowledged:
				next.AcknowledgedEntries++
			case store.EntryFailed:
				next.FailedEntries++
			}
		}
	}

	c.mu.Lock()
	c.stats = next
	c.mu.Unlock()
}

// Summary renders a one-line operator digest.
func (s Stats) Summary() string {
	return fmt.Sprintf("%d tasks (%d this week), %d pending entries (%d overdue), %d delivered, %d failed",
		s.TotalTasks, s.TasksLastWeek, s.PendingEntries, s.OverduePending, s.DeliveredEntries, s.FailedEntries)
}
