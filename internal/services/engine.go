package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"debtr/internal/core"
	"debtr/internal/ledger"
	dlog "debtr/internal/log"
	"debtr/internal/schema"
	"debtr/internal/storage"
)

var (
	ErrEngineClosed      = errors.New("engine closed")
	ErrUnsupportedAction = errors.New("action is applied by the engine only")
	ErrInvalidCurrency   = errors.New("unsupported currency")
	ErrInvalidLocale     = errors.New("unsupported locale")
)

// Options configures an Engine. Zero values select defaults.
type Options struct {
	Reducer   *ledger.Reducer
	Scheduler Scheduler
	Detector  MonthDetector
	Logger    *slog.Logger
	Now       func() time.Time
	QueueSize int
}

// Result describes the outcome of a write.
type Result struct {
	Snapshot *Snapshot
	// Item is the item the action touched, if any.
	Item *core.Item
	// Rolled is set when a month rollover ran before the request.
	Rolled bool
	// Warning carries a *storage.WriteError when persisting failed. The
	// in-memory change stands and the next write retries.
	Warning error
}

// Engine is the single owner of ledger state. All writes run on one
// goroutine in arrival order; Snapshot reads never block.
type Engine struct {
	gw       *storage.Gateway
	loader   *schema.Loader
	reducer  ledger.Reducer
	sched    Scheduler
	detector MonthDetector
	logger   *slog.Logger
	now      func() time.Time

	requests  chan request
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	snap atomic.Pointer[Snapshot]

	// st is only touched by the run goroutine.
	st engineState
}

type engineState struct {
	loaded   bool
	degraded bool
	// dirty is set once an action changed state after load.
	dirty    bool
	ledger   ledger.State
	year     int
	currency core.Currency
	locale   core.Locale
	notifs   []core.Notification
	version  uint64
}

type request struct {
	ctx   context.Context
	run   func(ctx context.Context) (Result, error)
	reply chan response
}

type response struct {
	res Result
	err error
}

// NewEngine starts the owner goroutine. Call Close to stop it.
func NewEngine(gw *storage.Gateway, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(dlog.FieldComponent, dlog.ComponentEngine)

	e := &Engine{
		gw:       gw,
		loader:   schema.NewLoader(gw, logger),
		reducer:  ledger.New(),
		sched:    opts.Scheduler,
		detector: opts.Detector,
		logger:   logger,
		now:      opts.Now,
		requests: make(chan request, max(opts.QueueSize, 0)),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		st: engineState{
			ledger:   ledger.State{Items: []core.Item{}},
			currency: core.DefaultCurrency,
			locale:   core.DefaultLocale,
		},
	}
	if opts.Reducer != nil {
		e.reducer = *opts.Reducer
	}
	if e.sched == nil {
		e.sched = LogScheduler{Logger: logger}
	}
	if e.detector == nil {
		e.detector = CalendarDetector{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	e.snap.Store(emptySnapshot())

	go e.run()
	return e
}

func (e *Engine) run() {
	defer close(e.done)
	for {
		select {
		case <-e.quit:
			return
		case req := <-e.requests:
			if err := req.ctx.Err(); err != nil {
				req.reply <- response{err: err}
				continue
			}
			// An accepted request finishes its logical write even if the
			// caller goes away.
			res, err := req.run(context.WithoutCancel(req.ctx))
			req.reply <- response{res: res, err: err}
		}
	}
}

func (e *Engine) submit(ctx context.Context, fn func(ctx context.Context) (Result, error)) (Result, error) {
	req := request{ctx: ctx, run: fn, reply: make(chan response, 1)}
	select {
	case e.requests <- req:
	case <-e.quit:
		return Result{}, ErrEngineClosed
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	select {
	case r := <-req.reply:
		return r.res, r.err
	case <-e.done:
		select {
		case r := <-req.reply:
			return r.res, r.err
		default:
			return Result{}, ErrEngineClosed
		}
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Close stops the owner goroutine. Queued requests fail with ErrEngineClosed.
func (e *Engine) Close() {
	e.closeOnce.Do(func() { close(e.quit) })
	<-e.done
}

// Snapshot returns the last fully reconciled state without blocking.
func (e *Engine) Snapshot() *Snapshot {
	return e.snap.Load()
}

// Activate loads state on first use and runs a month rollover when the
// wall clock moved to another month. Call it on start and periodically.
func (e *Engine) Activate(ctx context.Context) (Result, error) {
	return e.submit(ctx, func(ctx context.Context) (Result, error) {
		warn, err := e.ensureLoaded(ctx)
		if err != nil {
			return Result{}, err
		}
		res := e.reconcileMonth(ctx)
		res.Warning = errors.Join(warn, res.Warning)
		return res, nil
	})
}

// Dispatch validates and applies a caller action. SetAmountLeft and
// Rollover are rejected; the engine applies those itself. A pending month
// rollover always runs first so the action sees the current month.
func (e *Engine) Dispatch(ctx context.Context, action ledger.Action) (Result, error) {
	switch action.(type) {
	case ledger.AddItem, ledger.UpdateItem, ledger.ToggleItemPaid, ledger.RemoveItem:
	default:
		return Result{}, fmt.Errorf("%w: %T", ErrUnsupportedAction, action)
	}

	return e.submit(ctx, func(ctx context.Context) (Result, error) {
		loadWarn, err := e.ensureLoaded(ctx)
		if err != nil {
			return Result{}, err
		}
		roll := e.reconcileMonth(ctx)

		act, err := e.prepare(action)
		if err != nil {
			return Result{Snapshot: e.Snapshot(), Rolled: roll.Rolled}, err
		}

		next, eff, err := e.reducer.Reduce(e.st.ledger, act)
		if err != nil {
			return Result{Snapshot: e.Snapshot(), Rolled: roll.Rolled}, err
		}

		e.st.ledger = next
		e.st.dirty = true
		notifs, notifsChanged := applyNotificationEffects(e.st.notifs, eff)
		e.st.notifs = notifs
		snap := e.publish()

		writes := []storage.Write{{Subkey: storage.SubkeyItems, Value: next.Items}}
		if notifsChanged {
			writes = append(writes, storage.Write{Subkey: storage.SubkeyNotifs, Value: notifs})
		}
		writes = append(writes, e.metadataWrite())
		warn := e.persist(ctx, dlog.OpDispatch, writes...)

		e.emit(ctx, eff, next.Items)

		attrs := []any{dlog.FieldAction, ledger.Name(act), dlog.FieldAmountLeft, next.AmountLeft.String()}
		if eff.Item != nil {
			attrs = append(attrs, dlog.FieldItemID, eff.Item.ID)
		}
		e.logger.InfoContext(ctx, "Action applied", attrs...)

		return Result{
			Snapshot: snap,
			Item:     eff.Item,
			Rolled:   roll.Rolled,
			Warning:  errors.Join(loadWarn, roll.Warning, warn),
		}, nil
	})
}

// prepare validates caller input against live state.
func (e *Engine) prepare(action ledger.Action) (ledger.Action, error) {
	switch a := action.(type) {
	case ledger.AddItem:
		if err := a.Item.Validate(); err != nil {
			return nil, err
		}
		months, err := core.NewMonths(a.Item.Months...)
		if err != nil {
			return nil, err
		}
		a.Item.Months = months
		return a, nil
	case ledger.UpdateItem:
		if err := a.Item.Validate(); err != nil {
			return nil, err
		}
		live, ok := e.liveItem(a.Item.ID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ledger.ErrItemNotFound, a.Item.ID)
		}
		months, err := core.NewMonths(a.Item.Months...)
		if err != nil {
			return nil, err
		}
		a.Item.Months = months
		// Paid state changes only through ToggleItemPaid; a stale copy must
		// not undo a rollover reset.
		a.Item.IsPaid = live.IsPaid
		return a, nil
	}
	return action, nil
}

func (e *Engine) liveItem(id core.ItemID) (core.Item, bool) {
	for _, it := range e.st.ledger.Items {
		if it.ID == id {
			return it, true
		}
	}
	return core.Item{}, false
}

// SetCurrency changes the display currency.
func (e *Engine) SetCurrency(ctx context.Context, c core.Currency) (Result, error) {
	if !c.IsValid() {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidCurrency, c)
	}
	return e.submit(ctx, func(ctx context.Context) (Result, error) {
		loadWarn, err := e.ensureLoaded(ctx)
		if err != nil {
			return Result{}, err
		}
		e.st.currency = c
		e.st.dirty = true
		snap := e.publish()
		warn := e.persist(ctx, dlog.OpSettings, storage.Write{Subkey: storage.SubkeyCurrency, Value: string(c)})
		return Result{Snapshot: snap, Warning: errors.Join(loadWarn, warn)}, nil
	})
}

// SetLocale changes the UI language.
func (e *Engine) SetLocale(ctx context.Context, l core.Locale) (Result, error) {
	if !l.IsValid() {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidLocale, l)
	}
	return e.submit(ctx, func(ctx context.Context) (Result, error) {
		loadWarn, err := e.ensureLoaded(ctx)
		if err != nil {
			return Result{}, err
		}
		e.st.locale = l
		e.st.dirty = true
		snap := e.publish()
		warn := e.persist(ctx, dlog.OpSettings, storage.Write{Subkey: storage.SubkeyLocale, Value: string(l)})
		return Result{Snapshot: snap, Warning: errors.Join(loadWarn, warn)}, nil
	})
}

// ensureLoaded reads the store once. A degraded load is retried on later
// calls until it succeeds, as long as nothing was changed in memory.
func (e *Engine) ensureLoaded(ctx context.Context) (warning, err error) {
	if e.st.loaded && (!e.st.degraded || e.st.dirty) {
		return nil, nil
	}

	loaded, err := e.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	now := e.now()
	md := loaded.Metadata
	var writes []storage.Write
	writeMetadata := false

	if !loaded.MetadataFound {
		md = core.Metadata{CurrMonth: core.MonthOf(now), CurrYear: now.Year()}
		writeMetadata = true
	}
	if !loaded.Initialized {
		writes = append(writes, storage.Write{Subkey: storage.SubkeyItems, Value: loaded.Items})
	}

	computed := ledger.AmountLeft(loaded.Items, md.CurrMonth)
	if loaded.MetadataFound && !computed.Equal(md.AmountLeft) {
		e.logger.WarnContext(ctx, "Repaired amount left",
			"stored", md.AmountLeft.String(),
			"computed", computed.String())
		writeMetadata = true
	}
	md.AmountLeft = computed

	if md.CurrYear == 0 && md.CurrMonth == core.MonthOf(now) {
		md.CurrYear = now.Year()
		writeMetadata = true
	}

	notifs, schedule, cancel := reconcileNotifications(loaded.Items, loaded.Notifications)
	if len(schedule) > 0 || len(cancel) > 0 || len(notifs) != len(loaded.Notifications) {
		writes = append(writes, storage.Write{Subkey: storage.SubkeyNotifs, Value: notifs})
	}
	if writeMetadata {
		writes = append(writes, storage.Write{Subkey: storage.SubkeyMetadata, Value: md})
	}

	e.st = engineState{
		loaded:   true,
		degraded: loaded.Degraded,
		ledger: ledger.State{
			Items:      loaded.Items,
			CurrMonth:  md.CurrMonth,
			AmountLeft: md.AmountLeft,
		},
		year:     md.CurrYear,
		currency: loaded.Currency,
		locale:   loaded.Locale,
		notifs:   notifs,
		version:  e.st.version,
	}
	e.publish()

	e.logger.InfoContext(ctx, "Ledger loaded",
		dlog.FieldOperation, dlog.OpLoad,
		"initialized", loaded.Initialized,
		"degraded", loaded.Degraded,
		"source", loaded.Source,
		"variant", loaded.Variant.String(),
		"items", len(loaded.Items),
		dlog.FieldMonth, md.CurrMonth,
		dlog.FieldYear, md.CurrYear,
		dlog.FieldAmountLeft, md.AmountLeft.String())

	if len(writes) > 0 && !loaded.Degraded {
		warning = e.persist(ctx, dlog.OpLoad, writes...)
	}
	e.emit(ctx, ledger.Effects{Schedule: resendPending(notifs, schedule, now), Cancel: cancel}, loaded.Items)
	return warning, nil
}

// reconcileMonth runs a rollover when the ledger is behind the wall clock.
// A gap of several months is a single step into the current month.
func (e *Engine) reconcileMonth(ctx context.Context) Result {
	now := e.now()
	md := core.Metadata{CurrMonth: e.st.ledger.CurrMonth, CurrYear: e.st.year}
	if e.detector.Detect(md, now) == Stable {
		return Result{Snapshot: e.Snapshot()}
	}

	from := e.st.ledger.CurrMonth
	next, eff, err := e.reducer.Reduce(e.st.ledger, ledger.Rollover{Year: now.Year(), Month: core.MonthOf(now)})
	if err != nil {
		// Rollover is total over valid state; keep running on the old month.
		e.logger.ErrorContext(ctx, "Rollover failed", dlog.FieldError, err)
		return Result{Snapshot: e.Snapshot()}
	}

	e.st.ledger = next
	e.st.year = now.Year()
	e.st.notifs, _ = applyNotificationEffects(e.st.notifs, eff)
	snap := e.publish()

	// A degraded load may hold defaults in place of unreadable records;
	// those are not written over the store until the user changes something.
	var warn error
	if e.st.degraded && !e.st.dirty {
		e.logger.WarnContext(ctx, "Rollover kept in memory, store is degraded")
	} else {
		warn = e.persist(ctx, dlog.OpRollover,
			storage.Write{Subkey: storage.SubkeyItems, Value: next.Items},
			storage.Write{Subkey: storage.SubkeyNotifs, Value: e.st.notifs},
			e.metadataWrite(),
		)
	}
	e.emit(ctx, eff, next.Items)

	fields := dlog.NewFields().
		WithOperation(dlog.OpRollover).
		WithRollover(from, next.CurrMonth, MonthsBetween(md, now))
	fields[dlog.FieldAmountLeft] = next.AmountLeft.String()
	fields["reminders_moved"] = len(eff.Schedule)
	e.logger.InfoContext(ctx, "Month rollover", fields.ToSlice()...)

	return Result{Snapshot: snap, Rolled: true, Warning: warn}
}

func (e *Engine) metadataWrite() storage.Write {
	return storage.Write{Subkey: storage.SubkeyMetadata, Value: core.Metadata{
		AmountLeft: e.st.ledger.AmountLeft,
		CurrMonth:  e.st.ledger.CurrMonth,
		CurrYear:   e.st.year,
	}}
}

func (e *Engine) publish() *Snapshot {
	e.st.version++
	snap := newSnapshot(&e.st)
	e.snap.Store(snap)
	return snap
}

// persist writes subkeys as one logical write. Failures are returned as a
// warning and never roll back state.
func (e *Engine) persist(ctx context.Context, op string, writes ...storage.Write) error {
	err := e.gw.SetMany(ctx, writes...)
	if err != nil {
		e.logger.WarnContext(ctx, "Persist failed, keeping in-memory state",
			dlog.FieldOperation, op,
			dlog.FieldError, err)
	}
	return err
}

// emit turns reminder effects into scheduler intents. Intent failures are
// logged only.
func (e *Engine) emit(ctx context.Context, eff ledger.Effects, items []core.Item) {
	byNotif := make(map[string]core.Item, len(items))
	for _, it := range items {
		if it.Notification != nil {
			byNotif[it.Notification.ID] = it
		}
	}
	if eff.Item != nil && eff.Item.Notification != nil {
		if _, ok := byNotif[eff.Item.Notification.ID]; !ok {
			byNotif[eff.Item.Notification.ID] = *eff.Item
		}
	}

	send := func(intent Intent) {
		if it, ok := byNotif[intent.NotificationID]; ok {
			intent.ItemID = it.ID
			intent.Description = it.Description
			intent.Amount = it.Amount
		} else if eff.Item != nil {
			intent.ItemID = eff.Item.ID
			intent.Description = eff.Item.Description
		}
		intent.Currency = e.st.currency
		intent.Locale = e.st.locale
		if err := e.sched.ScheduleOrCancel(ctx, intent); err != nil {
			e.logger.WarnContext(ctx, "Reminder intent not delivered",
				dlog.FieldIntent, intent.Kind,
				dlog.FieldNotificationID, intent.NotificationID,
				dlog.FieldError, err)
		}
	}

	for _, id := range eff.Cancel {
		send(Intent{Kind: IntentCancel, NotificationID: id})
	}
	for _, n := range eff.Schedule {
		send(Intent{Kind: IntentSchedule, NotificationID: n.ID, Due: n.Date})
	}
}
