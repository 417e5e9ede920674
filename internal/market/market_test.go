package market

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"reflect"
	"strings"
	"sync"
	"testing"

	"pgregory.net/rapid"

	"propmarket.dapp/pmc/internal/ledger"
	"propmarket.dapp/pmc/internal/logger"
	"propmarket.dapp/pmc/internal/types"
	"propmarket.dapp/pmc/internal/units"
	"propmarket.dapp/pmc/internal/view"
)

func newTestOrchestrator(l Ledger) *Orchestrator {
	return New(l, Options{
		FetchConcurrency: 4,
		Status:           logger.New(50),
		Log:              slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func genRecord(owners []string) *rapid.Generator[types.PropertyRecord] {
	return rapid.Custom(func(t *rapid.T) types.PropertyRecord {
		return types.PropertyRecord{
			Owner:        rapid.SampledFrom(owners).Draw(t, "owner"),
			PropertyType: rapid.SampledFrom([]string{"House", "Flat", "Land"}).Draw(t, "type"),
			Price:        big.NewInt(rapid.Int64Range(0, 1<<40).Draw(t, "price")),
			ForSale:      rapid.Bool().Draw(t, "forSale"),
			RentPayment:  big.NewInt(rapid.Int64Range(0, 1<<30).Draw(t, "rent")),
			ForRent:      rapid.Bool().Draw(t, "forRent"),
		}
	})
}

func TestFetchAllIndexOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 40).Draw(t, "n")
		recs := make([]types.PropertyRecord, n)
		for i := range recs {
			recs[i] = types.PropertyRecord{Owner: "0xA", PropertyAddress: fmt.Sprintf("addr-%d", i)}
		}
		f := NewFetcher(&fakeLedger{records: recs}, rapid.IntRange(1, 8).Draw(t, "concurrency"))

		got, err := f.FetchAll(context.Background(), uint64(n))
		if err != nil {
			t.Fatalf("FetchAll: %v", err)
		}
		if len(got) != n {
			t.Fatalf("len = %d, want %d", len(got), n)
		}
		for i, rec := range got {
			if rec.ID != uint64(i) || rec.PropertyAddress != fmt.Sprintf("addr-%d", i) {
				t.Fatalf("record %d out of order: %+v", i, rec)
			}
		}
	})
}

func TestFetchAllFailsWhole(t *testing.T) {
	fl := &fakeLedger{records: []types.PropertyRecord{{Owner: "0xA"}, {Owner: "0xB"}, {Owner: "0xC"}}}
	fl.setReadErr(1, errors.New("node timeout"))

	got, err := NewFetcher(fl, 2).FetchAll(context.Background(), 3)
	var readErr *ledger.ReadError
	if !errors.As(err, &readErr) || readErr.ID != 1 {
		t.Fatalf("expected ReadError for id 1, got %v", err)
	}
	if got != nil {
		t.Fatalf("partial result returned: %+v", got)
	}
}

func TestFetchAllRejectsOwnerless(t *testing.T) {
	fl := &fakeLedger{records: []types.PropertyRecord{{Owner: ""}}}
	_, err := NewFetcher(fl, 1).FetchAll(context.Background(), 1)
	var readErr *ledger.ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected ReadError, got %v", err)
	}
}

func TestClassifyPartition(t *testing.T) {
	owners := []string{"0xA", "0xB", "0xa", ""}
	rapid.Check(t, func(t *rapid.T) {
		recs := rapid.SliceOf(genRecord(owners)).Draw(t, "records")
		for i := range recs {
			recs[i].ID = uint64(i)
		}
		viewer := rapid.SampledFrom(owners).Draw(t, "viewer")

		owned, notOwned := Classify(recs, viewer)
		if len(owned)+len(notOwned) != len(recs) {
			t.Fatalf("partition lost records: %d + %d != %d", len(owned), len(notOwned), len(recs))
		}
		// Merging the two by id must reproduce the input exactly.
		i, j := 0, 0
		for _, rec := range recs {
			switch {
			case rec.Owner == viewer:
				if i >= len(owned) || owned[i].ID != rec.ID {
					t.Fatalf("owned order broken at record %d", rec.ID)
				}
				i++
			default:
				if j >= len(notOwned) || notOwned[j].ID != rec.ID {
					t.Fatalf("not-owned order broken at record %d", rec.ID)
				}
				j++
			}
		}
	})
}

func TestClassifyEmpty(t *testing.T) {
	owned, notOwned := Classify(nil, "0xA")
	if owned == nil || notOwned == nil || len(owned) != 0 || len(notOwned) != 0 {
		t.Fatalf("expected two empty sequences, got %v %v", owned, notOwned)
	}
}

func TestRefreshIsIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		recs := rapid.SliceOfN(genRecord([]string{"0xA", "0xB"}), 0, 20).Draw(t, "records")
		o := newTestOrchestrator(&fakeLedger{viewer: "0xA", records: recs})
		ctx := context.Background()

		if err := o.Start(ctx); err != nil {
			t.Fatalf("Start: %v", err)
		}
		first := o.Snapshot()
		if err := o.Refresh(ctx); err != nil {
			t.Fatalf("Refresh: %v", err)
		}
		second := o.Snapshot()

		if !reflect.DeepEqual(first.Owned, second.Owned) || !reflect.DeepEqual(first.NotOwned, second.NotOwned) {
			t.Fatal("two cycles over an unchanged ledger classified differently")
		}
		if second.Cycle != first.Cycle+1 {
			t.Fatalf("cycle = %d, want %d", second.Cycle, first.Cycle+1)
		}
	})
}

func TestSalePurchase(t *testing.T) {
	price, _ := new(big.Int).SetString("2000000000000000000", 10)
	recs := make([]types.PropertyRecord, 4)
	for i := range recs {
		recs[i] = types.PropertyRecord{Owner: "0xA", PropertyType: "Land", Price: big.NewInt(0), RentPayment: big.NewInt(0)}
	}
	recs[3] = types.PropertyRecord{ID: 3, Owner: "0xA", PropertyType: "House", Price: price, ForSale: true, RentPayment: big.NewInt(0)}

	fl := &fakeLedger{viewer: "0xB", records: recs}
	o := newTestOrchestrator(fl)

	var mu sync.Mutex
	var transitions []State
	o.TransitionHook = func(from, to State) {
		mu.Lock()
		transitions = append(transitions, to)
		mu.Unlock()
	}

	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	n, ok := o.Snapshot().Node(3)
	if !ok || n.Kind != view.KindPublicCard {
		t.Fatalf("expected public card for 3, got %+v", n)
	}
	offer, ok := n.Offer(view.ActionBuy)
	if !ok || offer.Amount != "2" {
		t.Fatalf("expected buy offer of 2, got %+v", offer)
	}

	mu.Lock()
	transitions = nil
	mu.Unlock()

	if err := offer.Trigger(ctx); err != nil {
		t.Fatalf("buy: %v", err)
	}

	subs := fl.submitted()
	if len(subs) != 1 {
		t.Fatalf("expected one submission, got %d", len(subs))
	}
	s := subs[0]
	if s.kind != types.IntentBuy || s.id != 3 || s.sender != "0xB" || s.amount.Cmp(price) != 0 {
		t.Fatalf("unexpected submission: %+v", s)
	}

	mu.Lock()
	got := append([]State(nil), transitions...)
	mu.Unlock()
	if !reflect.DeepEqual(got, []State{StateRefreshing, StateReady}) {
		t.Fatalf("transitions = %v, want [refreshing ready]", got)
	}

	snap := o.Snapshot()
	if len(snap.Owned) != 1 || snap.Owned[0].ID != 3 {
		t.Fatalf("bought property should now be owned: %+v", snap.Owned)
	}
}

func TestRentPayment(t *testing.T) {
	rent := units.MustSmallest("0.25")
	fl := &fakeLedger{viewer: "0xB", records: []types.PropertyRecord{
		{Owner: "0xA", PropertyType: "Land", Price: big.NewInt(0), RentPayment: big.NewInt(0)},
		{Owner: "0xA", PropertyType: "Flat", Price: big.NewInt(0), RentPayment: rent, ForRent: true},
	}}
	o := newTestOrchestrator(fl)

	var mu sync.Mutex
	var transitions []State
	o.TransitionHook = func(from, to State) {
		mu.Lock()
		transitions = append(transitions, to)
		mu.Unlock()
	}

	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	n, ok := o.Snapshot().Node(1)
	if !ok || n.Kind != view.KindPublicCard {
		t.Fatalf("expected public card for 1, got %+v", n)
	}
	if _, ok := n.Offer(view.ActionBuy); ok {
		t.Fatal("buy offered on a property not for sale")
	}
	offer, ok := n.Offer(view.ActionRent)
	if !ok || offer.Amount != "0.25" {
		t.Fatalf("expected rent offer of 0.25, got %+v", offer)
	}

	mu.Lock()
	transitions = nil
	mu.Unlock()

	if err := o.Rent(ctx, 1); err != nil {
		t.Fatalf("rent: %v", err)
	}

	subs := fl.submitted()
	if len(subs) != 1 {
		t.Fatalf("expected one submission, got %d", len(subs))
	}
	s := subs[0]
	if s.kind != types.IntentRent || s.id != 1 || s.sender != "0xB" || s.amount.Cmp(rent) != 0 {
		t.Fatalf("unexpected submission: %+v", s)
	}

	mu.Lock()
	got := append([]State(nil), transitions...)
	mu.Unlock()
	if !reflect.DeepEqual(got, []State{StateRefreshing, StateReady}) {
		t.Fatalf("transitions = %v, want [refreshing ready]", got)
	}

	snap := o.Snapshot()
	if snap.Cycle != 2 || len(snap.Owned) != 0 {
		t.Fatalf("unexpected snapshot after rent: cycle=%d owned=%d", snap.Cycle, len(snap.Owned))
	}
	if n, _ := snap.Node(1); n.Kind != view.KindNoActionCard {
		t.Fatalf("rented property should have no offers left, got %+v", n)
	}
}

func TestReadFailureKeepsPriorSnapshot(t *testing.T) {
	fl := &fakeLedger{viewer: "0xA", records: []types.PropertyRecord{
		{Owner: "0xA", PropertyType: "Flat"},
		{Owner: "0xB", PropertyType: "House", ForSale: true, Price: big.NewInt(10)},
		{Owner: "0xB", PropertyType: "Land"},
	}}
	o := newTestOrchestrator(fl)
	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	before := o.Snapshot()

	fl.setReadErr(2, errors.New("connection reset"))
	err := o.Refresh(ctx)

	var readErr *ledger.ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected ReadError, got %v", err)
	}
	if o.Snapshot() != before {
		t.Fatal("failed refresh replaced the snapshot")
	}
	if o.State() != StateReady {
		t.Fatalf("state = %s, want ready", o.State())
	}
	if o.LastError() == nil {
		t.Fatal("failure not reported")
	}
	if msgs := o.Status().GetRecent(1); len(msgs) != 1 || msgs[0].Level != "error" {
		t.Fatalf("expected error status message, got %+v", msgs)
	}

	fl.mu.Lock()
	delete(fl.readErrs, 2)
	fl.mu.Unlock()
	if err := o.Refresh(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if o.LastError() != nil {
		t.Fatal("successful cycle should clear the error")
	}
}

func TestSubmissionFailureDoesNotRefresh(t *testing.T) {
	fl := &fakeLedger{viewer: "0xA", records: []types.PropertyRecord{
		{Owner: "0xB", ForRent: true, RentPayment: units.MustSmallest("0.5"), Price: big.NewInt(0)},
	}}
	o := newTestOrchestrator(fl)
	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	before := o.Snapshot()
	readsBefore := fl.reads

	fl.submitErr = rejected(types.IntentRent)
	err := o.Rent(ctx, 0)

	var subErr *ledger.SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if fl.reads != readsBefore || o.Snapshot() != before {
		t.Fatal("rejected submission must not re-sync")
	}
	if subs := fl.submitted(); subs[0].amount.Cmp(units.MustSmallest("0.5")) != 0 {
		t.Fatalf("rent paid %s, want exact rent", subs[0].amount)
	}
}

func TestConversionFailureSendsNothing(t *testing.T) {
	fl := &fakeLedger{viewer: "0xA", records: []types.PropertyRecord{
		{Owner: "0xA", Price: big.NewInt(1), RentPayment: big.NewInt(0)},
	}}
	o := newTestOrchestrator(fl)
	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	err := o.Edit(ctx, 0, view.EditValues{Price: "0.0000000000000000001", ForSale: true})
	var convErr *units.ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("expected ConversionError, got %v", err)
	}

	err = o.CreateListing(ctx, ListingForm{PropertyType: "Flat", Price: "abc"})
	if !errors.As(err, &convErr) {
		t.Fatalf("expected ConversionError, got %v", err)
	}

	// A cleared amount cannot be offered.
	for _, values := range []view.EditValues{
		{Price: " ", ForSale: true},
		{Price: "1", RentPayment: "", ForRent: true},
	} {
		if err := o.Edit(ctx, 0, values); !errors.As(err, &convErr) {
			t.Fatalf("Edit(%+v): expected ConversionError, got %v", values, err)
		}
	}
	if n := len(fl.submitted()); n != 0 {
		t.Fatalf("expected no submissions, got %d", n)
	}
}

func TestEditAndCreateListing(t *testing.T) {
	fl := &fakeLedger{viewer: "0xA", records: []types.PropertyRecord{
		{Owner: "0xA", PropertyAddress: "1 Oak", PropertyType: "Flat", Price: big.NewInt(1), RentPayment: big.NewInt(0)},
	}}
	o := newTestOrchestrator(fl)
	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := o.Edit(ctx, 0, view.EditValues{Price: "1.5", ForSale: true, RentPayment: "", ForRent: false}); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if err := o.CreateListing(ctx, ListingForm{PropertyAddress: "2 Pine", PropertyType: "House", Price: "3", ForSale: true}); err != nil {
		t.Fatalf("CreateListing: %v", err)
	}

	subs := fl.submitted()
	if len(subs) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(subs))
	}
	edit := subs[0].listing
	if edit.PropertyID == nil || *edit.PropertyID != 0 || edit.PropertyAddress != "1 Oak" {
		t.Fatalf("edit lost record identity: %+v", edit)
	}
	if edit.Price.Cmp(units.MustSmallest("1.5")) != 0 || edit.RentPayment.Sign() != 0 {
		t.Fatalf("edit amounts wrong: price=%s rent=%s", edit.Price, edit.RentPayment)
	}
	if subs[1].listing.PropertyID != nil || subs[1].sender != "0xA" {
		t.Fatalf("create must carry no id and the viewer: %+v", subs[1])
	}

	snap := o.Snapshot()
	if len(snap.Owned) != 2 || snap.Session.Count != 2 {
		t.Fatalf("expected 2 owned after create, got %+v", snap.Session)
	}
	if f := snap.OwnedViews[0].Form; f.Price != "1.5" || !f.ForSale {
		t.Fatalf("edited form not reflected: %+v", f.EditValues)
	}
}

func TestActionsRouteByNodeKind(t *testing.T) {
	fl := &fakeLedger{viewer: "0xA", records: []types.PropertyRecord{
		{Owner: "0xA", Price: big.NewInt(1), ForSale: true},
		{Owner: "0xB", Price: big.NewInt(1)},
	}}
	o := newTestOrchestrator(fl)
	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := o.Buy(ctx, 0); !errors.Is(err, ErrNoAction) {
		t.Fatalf("buying own property: got %v", err)
	}
	if err := o.Buy(ctx, 1); !errors.Is(err, ErrNoAction) {
		t.Fatalf("buying a property not for sale: got %v", err)
	}
	if err := o.Edit(ctx, 1, view.EditValues{}); !errors.Is(err, ErrNoAction) {
		t.Fatalf("editing someone else's property: got %v", err)
	}
	if err := o.Rent(ctx, 9); !errors.Is(err, ErrUnknownProperty) {
		t.Fatalf("unknown property: got %v", err)
	}
	if len(fl.submitted()) != 0 {
		t.Fatal("no submission expected")
	}
}

func TestOverlappingTriggersRejected(t *testing.T) {
	fl := &fakeLedger{viewer: "0xA", records: []types.PropertyRecord{
		{Owner: "0xB", Price: big.NewInt(5), ForSale: true},
	}}
	o := newTestOrchestrator(fl)
	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	fl.mu.Lock()
	fl.beforeCount = func() {
		once.Do(func() {
			close(entered)
			<-release
		})
	}
	fl.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- o.Refresh(ctx) }()
	<-entered

	if o.State() != StateRefreshing {
		t.Fatalf("state = %s, want refreshing", o.State())
	}
	if err := o.Refresh(ctx); !errors.Is(err, ErrBusy) {
		t.Fatalf("second refresh: got %v, want ErrBusy", err)
	}
	if err := o.Buy(ctx, 0); !errors.Is(err, ErrBusy) {
		t.Fatalf("buy during refresh: got %v, want ErrBusy", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if len(fl.submitted()) != 0 {
		t.Fatal("rejected trigger must not submit")
	}
	if o.State() != StateReady {
		t.Fatalf("state = %s, want ready", o.State())
	}
}

func TestStartRequiresIdentity(t *testing.T) {
	fl := &fakeLedger{identityErr: errors.New("wallet locked")}
	o := newTestOrchestrator(fl)
	ctx := context.Background()

	if err := o.Start(ctx); err == nil {
		t.Fatal("expected identity error")
	}
	if o.State() != StateUninitialized {
		t.Fatalf("state = %s, want uninitialized", o.State())
	}
	if err := o.Buy(ctx, 0); !errors.Is(err, ErrUnknownProperty) {
		t.Fatalf("buy before start: got %v", err)
	}
	if err := o.CreateListing(ctx, ListingForm{PropertyType: "Land"}); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("listing before start: got %v", err)
	}
	if err := o.Refresh(ctx); err == nil || errors.Is(err, ErrNotStarted) {
		t.Fatalf("refresh should retry identity and fail with it, got %v", err)
	}

	fl.identityErr = nil
	fl.viewer = "0xA"
	if err := o.Refresh(ctx); err != nil {
		t.Fatalf("refresh after identity recovered: %v", err)
	}
	if o.State() != StateReady || o.Viewer() != "0xA" {
		t.Fatalf("state=%s viewer=%s", o.State(), o.Viewer())
	}
	if o.Snapshot() == nil || o.Snapshot().Session.Count != 0 {
		t.Fatal("empty ledger should still publish an empty snapshot")
	}
	if err := o.Start(ctx); err == nil {
		t.Fatal("Start after a successful refresh should report already started")
	}
}

func TestResyncFailureAfterSubmission(t *testing.T) {
	fl := &fakeLedger{viewer: "0xB", records: []types.PropertyRecord{
		{Owner: "0xA", Price: big.NewInt(7), ForSale: true, RentPayment: big.NewInt(0)},
	}}
	o := newTestOrchestrator(fl)
	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	before := o.Snapshot()

	fl.setReadErr(0, errors.New("connection reset"))
	err := o.Buy(ctx, 0)

	var readErr *ledger.ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected ReadError, got %v", err)
	}
	if !strings.Contains(err.Error(), "buy submitted") {
		t.Fatalf("error should say the buy went through: %v", err)
	}
	if len(fl.submitted()) != 1 {
		t.Fatal("buy was not submitted")
	}
	if o.Snapshot() != before || o.State() != StateReady {
		t.Fatal("failed re-sync must keep the prior snapshot and return to ready")
	}
}
