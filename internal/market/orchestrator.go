package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"propmarket.dapp/pmc/internal/logger"
	"propmarket.dapp/pmc/internal/types"
	"propmarket.dapp/pmc/internal/view"
)

// State is the orchestrator lifecycle state.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateReady         State = "ready"
	StateRefreshing    State = "refreshing"
)

// Snapshot is the result of one successful sync cycle. It is never modified
// after it is published.
type Snapshot struct {
	Session     Session                `json:"session"`
	Owned       []types.PropertyRecord `json:"owned"`
	NotOwned    []types.PropertyRecord `json:"not_owned"`
	OwnedViews  []view.Node            `json:"owned_views"`
	PublicViews []view.Node            `json:"public_views"`
	SyncedAt    time.Time              `json:"synced_at"`
	Cycle       uint64                 `json:"cycle"`
}

// Node finds the rendered node for property id.
func (s *Snapshot) Node(id uint64) (view.Node, bool) {
	if s == nil {
		return view.Node{}, false
	}
	for _, n := range s.OwnedViews {
		if n.ID == id {
			return n, true
		}
	}
	for _, n := range s.PublicViews {
		if n.ID == id {
			return n, true
		}
	}
	return view.Node{}, false
}

// Options configures an Orchestrator.
type Options struct {
	FetchConcurrency int
	// Status receives viewer-facing messages. Defaults to a private buffer.
	Status *logger.Logger
	Log    *slog.Logger
}

// Orchestrator drives sync cycles and routes viewer actions. At most one
// cycle (refresh, or submission followed by refresh) runs at a time;
// overlapping triggers fail with ErrBusy. A failed cycle leaves the last
// published snapshot in place.
type Orchestrator struct {
	ledger     Ledger
	fetcher    *Fetcher
	dispatcher *Dispatcher
	renderer   *view.Renderer
	status     *logger.Logger
	log        *slog.Logger

	// TransitionHook, if set before Start, is called on every state change.
	TransitionHook func(from, to State)

	cycle sync.Mutex

	mu       sync.RWMutex
	state    State
	viewer   string
	snapshot *Snapshot
	lastErr  error
	cycles   uint64

	updates chan struct{}
}

// New creates an orchestrator over l. Call Start before anything else.
func New(l Ledger, opts Options) *Orchestrator {
	if opts.Status == nil {
		opts.Status = logger.New(100)
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	o := &Orchestrator{
		ledger:     l,
		fetcher:    NewFetcher(l, opts.FetchConcurrency),
		dispatcher: NewDispatcher(l),
		status:     opts.Status,
		log:        opts.Log,
		state:      StateUninitialized,
		updates:    make(chan struct{}, 1),
	}
	o.renderer = view.NewRenderer(binder{o})
	return o
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Viewer returns the identity resolved at Start.
func (o *Orchestrator) Viewer() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.viewer
}

// Snapshot returns the last published snapshot, or nil before the first
// successful cycle.
func (o *Orchestrator) Snapshot() *Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.snapshot
}

// LastError returns the error of the most recent failed operation, cleared
// by the next successful cycle.
func (o *Orchestrator) LastError() error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastErr
}

// Updates signals when state, snapshot or error changed. Signals coalesce.
func (o *Orchestrator) Updates() <-chan struct{} {
	return o.updates
}

// Status returns the viewer-facing message log.
func (o *Orchestrator) Status() *logger.Logger {
	return o.status
}

// Start resolves the viewer identity and runs the first sync cycle. If the
// identity cannot be resolved the orchestrator stays uninitialized and Start
// or Refresh may be retried. A failed first read still leaves it ready, with
// no snapshot, so Refresh can retry.
func (o *Orchestrator) Start(ctx context.Context) error {
	if !o.cycle.TryLock() {
		return ErrBusy
	}
	defer o.cycle.Unlock()

	if o.State() != StateUninitialized {
		return errors.New("market: already started")
	}
	return o.start(ctx)
}

// Refresh runs a full sync cycle. Before a successful Start it retries the
// identity resolution first.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	if !o.cycle.TryLock() {
		return ErrBusy
	}
	defer o.cycle.Unlock()

	if o.State() == StateUninitialized {
		return o.start(ctx)
	}
	return o.runCycle(ctx)
}

// start must be called with o.cycle held.
func (o *Orchestrator) start(ctx context.Context) error {
	viewer, err := o.ledger.ActiveIdentity(ctx)
	if err != nil {
		err = fmt.Errorf("resolve active identity: %w", err)
		o.report(err)
		return err
	}
	o.mu.Lock()
	o.viewer = viewer
	o.mu.Unlock()
	o.log.Info("market session started", "viewer", viewer)

	return o.runCycle(ctx)
}

// Buy fires the buy offer on property id.
func (o *Orchestrator) Buy(ctx context.Context, id uint64) error {
	return o.fireOffer(ctx, id, view.ActionBuy)
}

// Rent fires the rent offer on property id.
func (o *Orchestrator) Rent(ctx context.Context, id uint64) error {
	return o.fireOffer(ctx, id, view.ActionRent)
}

// Edit submits the owned form of property id with values.
func (o *Orchestrator) Edit(ctx context.Context, id uint64, values view.EditValues) error {
	n, ok := o.Snapshot().Node(id)
	if !ok {
		return ErrUnknownProperty
	}
	if n.Form == nil || n.Form.Submit == nil {
		return ErrNoAction
	}
	return n.Form.Submit(ctx, values)
}

// CreateListing submits a new property owned by the viewer.
func (o *Orchestrator) CreateListing(ctx context.Context, form ListingForm) error {
	form.PropertyID = nil
	return o.mutate(ctx, "listing", func(ctx context.Context, sess Session) error {
		return o.dispatcher.CreateOrEditListing(ctx, sess, form)
	})
}

func (o *Orchestrator) fireOffer(ctx context.Context, id uint64, action view.Action) error {
	n, ok := o.Snapshot().Node(id)
	if !ok {
		return ErrUnknownProperty
	}
	offer, ok := n.Offer(action)
	if !ok || offer.Trigger == nil {
		return ErrNoAction
	}
	return offer.Trigger(ctx)
}

// mutate submits one intent and, on success, re-syncs. A rejected
// submission leaves the snapshot untouched and does not re-sync. If the
// re-sync fails the returned error says the submission went through, so the
// action is not retried.
func (o *Orchestrator) mutate(ctx context.Context, what string, submit func(context.Context, Session) error) error {
	if o.State() == StateUninitialized {
		return ErrNotStarted
	}
	if !o.cycle.TryLock() {
		return ErrBusy
	}
	defer o.cycle.Unlock()

	if err := submit(ctx, o.session()); err != nil {
		o.report(err)
		return err
	}
	o.status.Info(fmt.Sprintf("%s submitted", what))
	if err := o.runCycle(ctx); err != nil {
		return fmt.Errorf("%s submitted, refresh failed: %w", what, err)
	}
	return nil
}

func (o *Orchestrator) session() Session {
	o.mu.RLock()
	defer o.mu.RUnlock()
	sess := Session{Viewer: o.viewer}
	if o.snapshot != nil {
		sess.Count = o.snapshot.Session.Count
	}
	return sess
}

// runCycle must be called with o.cycle held.
func (o *Orchestrator) runCycle(ctx context.Context) error {
	o.transition(StateRefreshing)
	defer o.transition(StateReady)

	count, err := o.fetcher.FetchCount(ctx)
	if err != nil {
		o.report(err)
		return err
	}
	records, err := o.fetcher.FetchAll(ctx, count)
	if err != nil {
		o.report(err)
		return err
	}

	viewer := o.Viewer()
	owned, notOwned := Classify(records, viewer)
	ownedViews, publicViews := o.renderer.RenderAll(owned, notOwned)

	o.mu.Lock()
	o.cycles++
	o.snapshot = &Snapshot{
		Session:     Session{Viewer: viewer, Count: count},
		Owned:       owned,
		NotOwned:    notOwned,
		OwnedViews:  ownedViews,
		PublicViews: publicViews,
		SyncedAt:    time.Now(),
		Cycle:       o.cycles,
	}
	o.lastErr = nil
	o.mu.Unlock()

	o.log.Debug("sync cycle complete", "count", count, "owned", len(owned))
	o.status.Info(fmt.Sprintf("Loaded %d properties, %d owned", count, len(owned)))
	o.notify()
	return nil
}

func (o *Orchestrator) transition(to State) {
	o.mu.Lock()
	from := o.state
	o.state = to
	hook := o.TransitionHook
	o.mu.Unlock()

	if from == to {
		return
	}
	if hook != nil {
		hook(from, to)
	}
	o.notify()
}

func (o *Orchestrator) report(err error) {
	o.mu.Lock()
	o.lastErr = err
	o.mu.Unlock()

	o.log.Error("market operation failed", "error", err)
	o.status.Error(err.Error())
	o.notify()
}

func (o *Orchestrator) notify() {
	select {
	case o.updates <- struct{}{}:
	default:
	}
}

// binder attaches orchestrator-routed triggers to rendered nodes.
type binder struct {
	o *Orchestrator
}

func (b binder) BindBuy(rec types.PropertyRecord) view.Trigger {
	return func(ctx context.Context) error {
		return b.o.mutate(ctx, "buy", func(ctx context.Context, sess Session) error {
			return b.o.dispatcher.Buy(ctx, sess, rec)
		})
	}
}

func (b binder) BindRent(rec types.PropertyRecord) view.Trigger {
	return func(ctx context.Context) error {
		return b.o.mutate(ctx, "rent", func(ctx context.Context, sess Session) error {
			return b.o.dispatcher.Rent(ctx, sess, rec)
		})
	}
}

func (b binder) BindEdit(rec types.PropertyRecord) view.SubmitTrigger {
	return func(ctx context.Context, values view.EditValues) error {
		id := rec.ID
		form := ListingForm{
			PropertyID:      &id,
			PropertyAddress: rec.PropertyAddress,
			PropertyType:    rec.PropertyType,
			ImageURL:        rec.ImageURL,
			Price:           values.Price,
			ForSale:         values.ForSale,
			RentPayment:     values.RentPayment,
			ForRent:         values.ForRent,
		}
		return b.o.mutate(ctx, "edit", func(ctx context.Context, sess Session) error {
			return b.o.dispatcher.CreateOrEditListing(ctx, sess, form)
		})
	}
}
