// Package scheduler fires schedule entries at their due instants and walks
// each entry through its delivery lifecycle. A single owner goroutine holds
// a min-heap keyed by UTC fire time and sleeps until the earliest entry;
// every mutation (submit, snooze, ack, cancel, delivery result) arrives as
// a command on a channel, so state transitions never race.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"

	rerrors "github.com/fieldops/remindd/internal/errors"
	"github.com/fieldops/remindd/plugin/delivery"
	"github.com/fieldops/remindd/server/roster"
	"github.com/fieldops/remindd/server/scheduler/rrule"
	"github.com/fieldops/remindd/server/timezone"
	"github.com/fieldops/remindd/store"
)

const (
	// DefaultSnooze is used when a snooze request carries no duration.
	DefaultSnooze = 15 * time.Minute

	defaultRetryBase = 2 * time.Second
	// parkInterval bounds the sleep when the heap is empty.
	parkInterval = time.Hour
)

// Config tunes delivery retries and escalation.
type Config struct {
	// MaxDeliveryRetries is the number of delivery attempts before an
	// entry is marked failed.
	MaxDeliveryRetries int
	// RetryBaseDelay is the first backoff step; each retry doubles it.
	RetryBaseDelay time.Duration
	// EscalationWindow is how long a delivered entry may sit
	// unacknowledged before a duplicate goes to the escalation contact.
	// Zero disables escalation.
	EscalationWindow time.Duration
	// OperatorRecipient receives a notice when an entry exhausts its
	// delivery retries. Empty disables the notice.
	OperatorRecipient string
}

func (c *Config) normalize() {
	if c.MaxDeliveryRetries <= 0 {
		c.MaxDeliveryRetries = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = defaultRetryBase
	}
}

// trackedEntry is the loop-owned state for one live entry.
type trackedEntry struct {
	entry *store.ScheduleEntry
	item  *fireItem
	// delivering is set while a delivery goroutine owns the entry.
	delivering bool
	// cancelRequested defers the CANCELED transition until an in-flight
	// delivery reports back.
	cancelRequested bool
}

// Scheduler owns the fire loop. Construct with New, then Start.
type Scheduler struct {
	store     *store.Store
	deliverer delivery.Deliverer
	roster    *roster.Roster
	cfg       Config
	logger    *slog.Logger

	now func() time.Time

	cmdCh  chan any
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool

	// Loop-owned after Start. tasks caches the task behind each entry so
	// delivery can render a message without a store round trip.
	entries map[string]*trackedEntry
	tasks   map[int32]*store.ConfirmedTask
	heap    fireHeap
}

// Option adjusts a Scheduler at construction time.
type Option func(*Scheduler)

// WithNow injects the clock. Tests pin it.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a stopped scheduler.
func New(st *store.Store, deliverer delivery.Deliverer, r *roster.Roster, cfg Config, logger *slog.Logger, opts ...Option) *Scheduler {
	cfg.normalize()
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		store:     st,
		deliverer: deliverer,
		roster:    r,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "scheduler")),
		now:       time.Now,
		cmdCh:     make(chan any, 16),
		stopCh:    make(chan struct{}),
		entries:   make(map[string]*trackedEntry),
		tasks:     make(map[int32]*store.ConfirmedTask),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Commands handled by the loop.

type submitCmd struct {
	task  *store.ConfirmedTask
	reply chan submitResult
}

type submitResult struct {
	entries []*store.ScheduleEntry
	err     error
}

type snoozeCmd struct {
	uid   string
	delta time.Duration
	reply chan snoozeResult
}

type snoozeResult struct {
	entry *store.ScheduleEntry
	err   error
}

type ackCmd struct {
	uid   string
	reply chan error
}

type cancelCmd struct {
	uid   string
	reply chan error
}

type deliveryResultCmd struct {
	uid      string
	attempts int32
	err      error
}

// Start recovers persisted pending entries and begins firing. It returns
// once recovery is complete.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	if err := s.recover(ctx); err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	}

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("scheduler started",
		slog.Int("recovered_entries", len(s.entries)),
		slog.String("deliverer", s.deliverer.Name()))
	return nil
}

// Stop shuts the loop down and waits for in-flight deliveries.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// IsRunning reports whether the loop is live.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// recover reloads non-terminal entries so a restart drops nothing. Entries
// stuck in FIRED crashed mid-delivery and are re-fired; delivery dedupes on
// the idempotency token.
func (s *Scheduler) recover(ctx context.Context) error {
	list, err := s.store.ListScheduleEntries(ctx, &store.FindScheduleEntry{
		Statuses: []store.EntryStatus{store.EntryPending, store.EntryFired},
	})
	if err != nil {
		return rerrors.Wrap(err, rerrors.CodePersistenceFailure, "failed to reload schedule entries")
	}
	for _, entry := range list {
		if entry.Status == store.EntryFired {
			entry.Status = store.EntryPending
			s.persistUpdate(ctx, entry.ID, &store.UpdateScheduleEntry{
				ID:     entry.ID,
				Status: statusPtr(store.EntryPending),
			})
		}
		if _, err := s.taskFor(ctx, entry.TaskID); err != nil {
			s.logger.Warn("skipping entry with unloadable task",
				slog.String("entry_uid", entry.UID),
				slog.Int("task_id", int(entry.TaskID)))
			continue
		}
		s.track(entry)
	}
	return nil
}

// run is the owner goroutine. All heap and entry mutation happens here.
func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	timer := time.NewTimer(parkInterval)
	defer timer.Stop()

	for {
		s.rearm(timer)
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-timer.C:
			s.fireDue(ctx)
		case cmd := <-s.cmdCh:
			s.handle(ctx, cmd)
		}
	}
}

// rearm points the timer at the earliest pending entry.
func (s *Scheduler) rearm(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	wait := parkInterval
	if head := s.heap.peek(); head != nil {
		wait = time.Unix(head.fireTs, 0).Sub(s.now())
		if wait < 0 {
			wait = 0
		}
	}
	timer.Reset(wait)
}

func (s *Scheduler) handle(ctx context.Context, cmd any) {
	switch c := cmd.(type) {
	case submitCmd:
		entries, err := s.submitTask(ctx, c.task)
		c.reply <- submitResult{entries: entries, err: err}
	case snoozeCmd:
		entry, err := s.snoozeEntry(ctx, c.uid, c.delta)
		c.reply <- snoozeResult{entry: entry, err: err}
	case ackCmd:
		c.reply <- s.ackEntry(ctx, c.uid)
	case cancelCmd:
		c.reply <- s.cancelEntry(ctx, c.uid)
	case deliveryResultCmd:
		s.finishDelivery(ctx, c)
	}
}

// fireDue pops every entry whose fire time has arrived.
func (s *Scheduler) fireDue(ctx context.Context) {
	nowTs := s.now().Unix()
	for {
		head := s.heap.peek()
		if head == nil || head.fireTs > nowTs {
			return
		}
		item := s.heap.pop()
		tracked, ok := s.entries[item.uid]
		if !ok || tracked.entry.Status != store.EntryPending {
			continue
		}
		tracked.item = nil
		s.fire(ctx, tracked)
	}
}

// fire moves a pending entry through quiet-hours deferral or into delivery.
func (s *Scheduler) fire(ctx context.Context, tracked *trackedEntry) {
	entry := tracked.entry

	if deferred := s.quietHoursDeferral(entry); !deferred.IsZero() {
		entry.FireTs = deferred.Unix()
		tracked.item = s.heap.push(entry.UID, entry.FireTs)
		s.persistUpdate(ctx, entry.ID, &store.UpdateScheduleEntry{
			ID:     entry.ID,
			FireTs: &entry.FireTs,
		})
		s.logger.Info("entry deferred to quiet hours end",
			slog.String("entry_uid", entry.UID),
			slog.String("recipient", entry.RecipientID),
			slog.Time("deferred_to", deferred))
		return
	}

	entry.Status = store.EntryFired
	s.persistUpdate(ctx, entry.ID, &store.UpdateScheduleEntry{
		ID:     entry.ID,
		Status: statusPtr(store.EntryFired),
	})

	task := s.tasks[entry.TaskID]
	message := s.renderMessage(task, entry)
	tracked.delivering = true

	s.wg.Add(1)
	go s.deliver(ctx, entry.UID, entry.RecipientID, message, entry.IdempotencyToken, entry.Attempts)
}

// quietHoursDeferral returns the instant delivery may resume, or zero when
// the recipient is not in quiet hours. Escalation entries are never
// deferred; the whole point is to interrupt.
func (s *Scheduler) quietHoursDeferral(entry *store.ScheduleEntry) time.Time {
	if entry.Reason == store.ReasonEscalation || s.roster == nil {
		return time.Time{}
	}
	user, ok := s.roster.Find(entry.RecipientID)
	if !ok {
		return time.Time{}
	}
	now := s.now()
	if !user.InQuietHours(now) {
		return time.Time{}
	}
	return user.QuietHoursEnd(now)
}

// deliver runs outside the loop: it retries with exponential backoff, then
// reports the final outcome back as a command.
func (s *Scheduler) deliver(ctx context.Context, uid, recipientID, message, token string, priorAttempts int32) {
	defer s.wg.Done()

	attempts := priorAttempts
	delay := s.cfg.RetryBaseDelay
	var lastErr error
	for try := 0; try < s.cfg.MaxDeliveryRetries; try++ {
		attempts++
		lastErr = s.deliverer.Deliver(ctx, recipientID, message, token)
		if lastErr == nil {
			break
		}
		s.logger.Warn("delivery attempt failed",
			slog.String("entry_uid", uid),
			slog.Int("attempt", int(attempts)),
			slog.String("error", lastErr.Error()))
		if try == s.cfg.MaxDeliveryRetries-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
		delay *= 2
	}

	result := deliveryResultCmd{uid: uid, attempts: attempts, err: lastErr}
	select {
	case s.cmdCh <- result:
	case <-s.stopCh:
	case <-ctx.Done():
	}
}

// finishDelivery applies the outcome of a delivery goroutine.
func (s *Scheduler) finishDelivery(ctx context.Context, result deliveryResultCmd) {
	tracked, ok := s.entries[result.uid]
	if !ok {
		return
	}
	entry := tracked.entry
	tracked.delivering = false
	entry.Attempts = result.attempts

	if tracked.cancelRequested {
		// Cancel raced the fire. The notification may have gone out, but
		// the entry still lands canceled so no follow-ups spawn.
		entry.Status = store.EntryCanceled
		s.persistUpdate(ctx, entry.ID, &store.UpdateScheduleEntry{
			ID:       entry.ID,
			Status:   statusPtr(store.EntryCanceled),
			Attempts: &entry.Attempts,
		})
		delete(s.entries, entry.UID)
		return
	}

	if result.err != nil {
		entry.Status = store.EntryFailed
		s.persistUpdate(ctx, entry.ID, &store.UpdateScheduleEntry{
			ID:       entry.ID,
			Status:   statusPtr(store.EntryFailed),
			Attempts: &entry.Attempts,
		})
		delete(s.entries, entry.UID)
		s.logger.Error("entry failed after retries",
			slog.String("entry_uid", entry.UID),
			slog.Int("attempts", int(entry.Attempts)),
			slog.String("error", result.err.Error()))
		s.notifyOperator(ctx, entry, result.err)
		return
	}

	deliveredTs := s.now().Unix()
	entry.Status = store.EntryDelivered
	entry.DeliveredTs = &deliveredTs
	s.persistUpdate(ctx, entry.ID, &store.UpdateScheduleEntry{
		ID:          entry.ID,
		Status:      statusPtr(store.EntryDelivered),
		Attempts:    &entry.Attempts,
		DeliveredTs: &deliveredTs,
	})
	s.logger.Info("entry delivered",
		slog.String("entry_uid", entry.UID),
		slog.String("recipient", entry.RecipientID),
		slog.String("reason", entry.Reason))

	s.scheduleEscalation(ctx, entry)
	s.materializeRecurrence(ctx, entry)
}

// notifyOperator sends a best-effort failure notice. No retries; a broken
// channel should not wedge the loop.
func (s *Scheduler) notifyOperator(ctx context.Context, entry *store.ScheduleEntry, cause error) {
	if s.cfg.OperatorRecipient == "" {
		return
	}
	task := s.tasks[entry.TaskID]
	message := fmt.Sprintf("Delivery failed for %s after %d attempts: %s (%s)",
		entry.RecipientID, entry.Attempts, taskSummary(task), cause)
	token := uuid.NewString()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.deliverer.Deliver(ctx, s.cfg.OperatorRecipient, message, token); err != nil {
			s.logger.Error("operator notice failed",
				slog.String("entry_uid", entry.UID),
				slog.String("error", err.Error()))
		}
	}()
}

// scheduleEscalation plans a duplicate notification for the recipient's
// escalation contact, fired only if the entry stays unacknowledged.
func (s *Scheduler) scheduleEscalation(ctx context.Context, entry *store.ScheduleEntry) {
	if s.cfg.EscalationWindow <= 0 || s.roster == nil {
		return
	}
	if entry.Reason == store.ReasonEscalation {
		return
	}
	user, ok := s.roster.Find(entry.RecipientID)
	if !ok || user.EscalationContact == "" {
		return
	}
	contact, ok := s.roster.Find(user.EscalationContact)
	if !ok {
		s.logger.Warn("escalation contact not in roster",
			slog.String("recipient", entry.RecipientID),
			slog.String("contact", user.EscalationContact))
		return
	}

	fireTs := s.now().Add(s.cfg.EscalationWindow).Unix()
	parent := entry.UID
	escalation := &store.ScheduleEntry{
		UID:              shortuuid.New(),
		TaskID:           entry.TaskID,
		RecipientID:      contact.ID,
		FireTs:           fireTs,
		Status:           store.EntryPending,
		Reason:           store.ReasonEscalation,
		IdempotencyToken: uuid.NewString(),
		ParentUID:        &parent,
	}
	s.persistCreate(ctx, escalation)
	s.track(escalation)
}

// materializeRecurrence creates the next occurrence's entry right after
// delivery, keyed off this entry's fire time in the task's zone.
func (s *Scheduler) materializeRecurrence(ctx context.Context, entry *store.ScheduleEntry) {
	if entry.Reason != store.ReasonReminder && entry.Reason != store.ReasonDue && entry.Reason != store.ReasonRecurrence {
		return
	}
	task := s.tasks[entry.TaskID]
	if task == nil || task.RecurrenceRule == nil || *task.RecurrenceRule == "" {
		return
	}
	rule, err := rrule.Parse(*task.RecurrenceRule)
	if err != nil {
		s.logger.Error("unparseable recurrence rule",
			slog.Int("task_id", int(task.ID)),
			slog.String("rule", *task.RecurrenceRule),
			slog.String("error", err.Error()))
		return
	}

	loc, _ := timezone.ParseTimezone(task.Timezone)
	next := rule.Next(entry.FireTime().In(loc))
	if next.IsZero() {
		return
	}
	nextTs := next.Unix()

	// History check: if an entry for this task already exists at the next
	// instant, a sibling entry materialized it first.
	for _, tracked := range s.entries {
		if tracked.entry.TaskID == entry.TaskID && tracked.entry.FireTs == nextTs {
			return
		}
	}

	parent := entry.UID
	occurrence := &store.ScheduleEntry{
		UID:              shortuuid.New(),
		TaskID:           entry.TaskID,
		RecipientID:      entry.RecipientID,
		FireTs:           nextTs,
		Status:           store.EntryPending,
		Reason:           store.ReasonRecurrence,
		IdempotencyToken: uuid.NewString(),
		ParentUID:        &parent,
	}
	s.persistCreate(ctx, occurrence)
	s.track(occurrence)
	s.logger.Info("recurrence materialized",
		slog.Int("task_id", int(task.ID)),
		slog.Time("next_fire", next))
}

// submitTask plans the entries for a freshly confirmed task: one at the
// reminder instant, plus one at the due instant when the two differ.
func (s *Scheduler) submitTask(ctx context.Context, task *store.ConfirmedTask) ([]*store.ScheduleEntry, error) {
	if task == nil {
		return nil, rerrors.New(rerrors.CodeInvalidArgument, "task is nil")
	}
	s.tasks[task.ID] = task

	reminder := &store.ScheduleEntry{
		UID:              shortuuid.New(),
		TaskID:           task.ID,
		RecipientID:      task.AssigneeID,
		FireTs:           task.ReminderTs,
		Status:           store.EntryPending,
		Reason:           store.ReasonReminder,
		IdempotencyToken: uuid.NewString(),
	}
	planned := []*store.ScheduleEntry{reminder}

	if task.DueTs != task.ReminderTs {
		planned = append(planned, &store.ScheduleEntry{
			UID:              shortuuid.New(),
			TaskID:           task.ID,
			RecipientID:      task.AssigneeID,
			FireTs:           task.DueTs,
			Status:           store.EntryPending,
			Reason:           store.ReasonDue,
			IdempotencyToken: uuid.NewString(),
		})
	}

	for _, entry := range planned {
		s.persistCreate(ctx, entry)
		s.track(entry)
	}
	return planned, nil
}

// snoozeEntry closes the original entry and plans a replacement offset from
// the original fire time. The original is kept, not deleted, so history
// shows the snooze.
func (s *Scheduler) snoozeEntry(ctx context.Context, uid string, delta time.Duration) (*store.ScheduleEntry, error) {
	if delta <= 0 {
		delta = DefaultSnooze
	}
	tracked, ok := s.entries[uid]
	if !ok {
		return nil, rerrors.Newf(rerrors.CodeInvalidArgument, "no active entry %s", uid)
	}
	entry := tracked.entry
	if entry.IsTerminal() {
		return nil, rerrors.Newf(rerrors.CodeInvalidArgument, "entry %s is already %s", uid, entry.Status)
	}

	s.heap.remove(tracked.item)
	tracked.item = nil
	entry.Status = store.EntrySnoozed
	s.persistUpdate(ctx, entry.ID, &store.UpdateScheduleEntry{
		ID:     entry.ID,
		Status: statusPtr(store.EntrySnoozed),
	})
	delete(s.entries, uid)

	parent := entry.UID
	replacement := &store.ScheduleEntry{
		UID:              shortuuid.New(),
		TaskID:           entry.TaskID,
		RecipientID:      entry.RecipientID,
		FireTs:           entry.FireTs + int64(delta.Seconds()),
		Status:           store.EntryPending,
		Reason:           store.ReasonSnooze,
		IdempotencyToken: uuid.NewString(),
		ParentUID:        &parent,
	}
	s.persistCreate(ctx, replacement)
	s.track(replacement)

	s.logger.Info("entry snoozed",
		slog.String("entry_uid", uid),
		slog.String("replacement_uid", replacement.UID),
		slog.Duration("delta", delta))
	return replacement, nil
}

// ackEntry marks a delivered entry acknowledged and withdraws any pending
// escalation spawned from it.
func (s *Scheduler) ackEntry(ctx context.Context, uid string) error {
	tracked, ok := s.entries[uid]
	if !ok {
		return rerrors.Newf(rerrors.CodeInvalidArgument, "no active entry %s", uid)
	}
	entry := tracked.entry
	if entry.Status != store.EntryDelivered {
		return rerrors.Newf(rerrors.CodeInvalidArgument, "entry %s is %s, not delivered", uid, entry.Status)
	}

	ackTs := s.now().Unix()
	entry.Status = store.EntryAcknowledged
	entry.AckTs = &ackTs
	s.persistUpdate(ctx, entry.ID, &store.UpdateScheduleEntry{
		ID:     entry.ID,
		Status: statusPtr(store.EntryAcknowledged),
		AckTs:  &ackTs,
	})
	delete(s.entries, uid)

	for childUID, child := range s.entries {
		if child.entry.Reason == store.ReasonEscalation &&
			child.entry.ParentUID != nil && *child.entry.ParentUID == uid &&
			child.entry.Status == store.EntryPending {
			s.heap.remove(child.item)
			child.item = nil
			child.entry.Status = store.EntryCanceled
			s.persistUpdate(ctx, child.entry.ID, &store.UpdateScheduleEntry{
				ID:     child.entry.ID,
				Status: statusPtr(store.EntryCanceled),
			})
			delete(s.entries, childUID)
		}
	}
	return nil
}

// cancelEntry is idempotent: unknown or already-terminal entries succeed
// without effect. An entry mid-delivery is canceled once the delivery
// goroutine reports back.
func (s *Scheduler) cancelEntry(ctx context.Context, uid string) error {
	tracked, ok := s.entries[uid]
	if !ok {
		return nil
	}
	entry := tracked.entry
	if tracked.delivering {
		tracked.cancelRequested = true
		return nil
	}

	s.heap.remove(tracked.item)
	tracked.item = nil
	entry.Status = store.EntryCanceled
	s.persistUpdate(ctx, entry.ID, &store.UpdateScheduleEntry{
		ID:     entry.ID,
		Status: statusPtr(store.EntryCanceled),
	})
	delete(s.entries, uid)
	s.logger.Info("entry canceled", slog.String("entry_uid", uid))
	return nil
}

// track registers an entry with the loop state and, when pending, the heap.
func (s *Scheduler) track(entry *store.ScheduleEntry) {
	tracked := &trackedEntry{entry: entry}
	if entry.Status == store.EntryPending {
		tracked.item = s.heap.push(entry.UID, entry.FireTs)
	}
	s.entries[entry.UID] = tracked
}

// taskFor loads and caches the task behind an entry.
func (s *Scheduler) taskFor(ctx context.Context, taskID int32) (*store.ConfirmedTask, error) {
	if task, ok := s.tasks[taskID]; ok {
		return task, nil
	}
	task, err := s.store.GetTask(ctx, &store.FindTask{ID: &taskID})
	if err != nil {
		return nil, err
	}
	s.tasks[taskID] = task
	return task, nil
}

// renderMessage builds the notification text in the task's zone.
func (s *Scheduler) renderMessage(task *store.ConfirmedTask, entry *store.ScheduleEntry) string {
	if task == nil {
		return "Reminder"
	}
	loc, _ := timezone.ParseTimezone(task.Timezone)
	due := timezone.FormatLocal(task.DueTime(), loc)
	switch entry.Reason {
	case store.ReasonDue:
		return fmt.Sprintf("Due now: %s (due %s)", task.Task, due)
	case store.ReasonEscalation:
		return fmt.Sprintf("Escalation: %s has an unacknowledged reminder: %s (due %s)",
			task.AssigneeID, task.Task, due)
	case store.ReasonSnooze:
		return fmt.Sprintf("Snoozed reminder: %s (due %s)", task.Task, due)
	default:
		return fmt.Sprintf("Reminder: %s (due %s)", task.Task, due)
	}
}

// persistCreate writes a new entry, logging instead of failing so in-memory
// scheduling proceeds through storage outages.
func (s *Scheduler) persistCreate(ctx context.Context, entry *store.ScheduleEntry) {
	created, err := s.store.CreateScheduleEntry(ctx, entry)
	if err != nil {
		s.logger.Error("failed to persist schedule entry",
			slog.String("entry_uid", entry.UID),
			slog.String("error", err.Error()))
		return
	}
	entry.ID = created.ID
	entry.CreatedTs = created.CreatedTs
	entry.UpdatedTs = created.UpdatedTs
}

func (s *Scheduler) persistUpdate(ctx context.Context, id int32, update *store.UpdateScheduleEntry) {
	if id == 0 {
		// Entry never made it to storage. In-memory state is still
		// authoritative for this process.
		return
	}
	if err := s.store.UpdateScheduleEntry(ctx, update); err != nil {
		s.logger.Error("failed to persist entry transition",
			slog.Int("entry_id", int(id)),
			slog.String("error", err.Error()))
	}
}

// Public API. Each call round-trips through the loop; callers block until
// the mutation is applied.

// Submit plans notifications for a confirmed task.
func (s *Scheduler) Submit(ctx context.Context, task *store.ConfirmedTask) ([]*store.ScheduleEntry, error) {
	reply := make(chan submitResult, 1)
	if err := s.send(ctx, submitCmd{task: task, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case res := <-reply:
		return res.entries, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Snooze closes an entry and schedules a replacement delta after its
// original fire time. Zero delta means DefaultSnooze.
func (s *Scheduler) Snooze(ctx context.Context, uid string, delta time.Duration) (*store.ScheduleEntry, error) {
	reply := make(chan snoozeResult, 1)
	if err := s.send(ctx, snoozeCmd{uid: uid, delta: delta, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case res := <-reply:
		return res.entry, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ack acknowledges a delivered entry.
func (s *Scheduler) Ack(ctx context.Context, uid string) error {
	reply := make(chan error, 1)
	if err := s.send(ctx, ackCmd{uid: uid, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel withdraws an entry. Unknown entries are not an error.
func (s *Scheduler) Cancel(ctx context.Context, uid string) error {
	reply := make(chan error, 1)
	if err := s.send(ctx, cancelCmd{uid: uid, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) send(ctx context.Context, cmd any) error {
	select {
	case s.cmdCh <- cmd:
		return nil
	case <-s.stopCh:
		return rerrors.New(rerrors.CodeInvalidArgument, "scheduler is stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func statusPtr(s store.EntryStatus) *store.EntryStatus {
	return &s
}

func taskSummary(task *store.ConfirmedTask) string {
	if task == nil {
		return "unknown task"
	}
	return task.Task
}
