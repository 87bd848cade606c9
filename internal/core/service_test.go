package core

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"materialtracker/internal/query"
	"materialtracker/pkg/domain"
)

func ids(reqs []Request) []string {
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.ID
	}
	return out
}

func TestAddAssignsIDsNewestFirst(t *testing.T) {
	svc := NewInMemoryService(nil)
	first := mustAdd(t, svc, cementDraft(t))
	if first.ID != "00001" {
		t.Fatalf("expected 00001, got %s", first.ID)
	}
	second := mustAdd(t, svc, cementDraft(t))
	if second.ID != "00002" {
		t.Fatalf("expected 00002, got %s", second.ID)
	}
	if got := ids(svc.Requests()); !reflect.DeepEqual(got, []string{"00002", "00001"}) {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestAddRejectsIncompleteDraft(t *testing.T) {
	svc := NewInMemoryService(nil)
	cases := []struct {
		name  string
		edit  func(*Draft)
		field string
	}{
		{"date", func(d *Draft) { d.Date = "" }, "date"},
		{"project", func(d *Draft) { d.ProjectTitle = " " }, "projectTitle"},
		{"warehouse", func(d *Draft) { d.Warehouse = "" }, "warehouse"},
		{"items", func(d *Draft) { d.Items = nil }, "items"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := cementDraft(t)
			tc.edit(&d)
			_, _, err := svc.Add(context.Background(), d)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Field != tc.field || vErr.Message != MsgRequestFieldsRequired {
				t.Fatalf("unexpected validation error %+v", vErr)
			}
		})
	}
	if len(svc.Requests()) != 0 {
		t.Fatalf("rejected drafts must not be stored")
	}
}

func TestIDGapsAreNotFilled(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService(nil)
	for i := 0; i < 3; i++ {
		mustAdd(t, svc, cementDraft(t))
	}
	if _, err := svc.Remove(ctx, "00002"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if next := mustAdd(t, svc, cementDraft(t)); next.ID != "00004" {
		t.Fatalf("expected 00004 after removing 00002, got %s", next.ID)
	}
}

func TestUpdateKeepsIDAndPosition(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService(nil)
	mustAdd(t, svc, cementDraft(t))
	mustAdd(t, svc, cementDraft(t))
	mustAdd(t, svc, cementDraft(t))

	stored, _ := svc.Request("00002")
	d := EditDraft(stored)
	d.Warehouse = "W9"
	updated, _, err := svc.Update(ctx, "00002", *d)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != "00002" || updated.Warehouse != "W9" {
		t.Fatalf("unexpected update %+v", updated)
	}
	if got := ids(svc.Requests()); !reflect.DeepEqual(got, []string{"00003", "00002", "00001"}) {
		t.Fatalf("update moved request: %v", got)
	}
}

func TestUpdateAndRemoveUnknownID(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService(nil)
	mustAdd(t, svc, cementDraft(t))
	var nf ErrNotFound
	if _, _, err := svc.Update(ctx, "99999", cementDraft(t)); !errors.As(err, &nf) || nf.ID != "99999" {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
	if _, err := svc.Remove(ctx, "99999"); !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound on remove, got %v", err)
	}
	if len(svc.Requests()) != 1 {
		t.Fatalf("unknown id must not change the collection")
	}
}

func TestRemoveDeletesExactlyOne(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService(nil)
	for i := 0; i < 3; i++ {
		mustAdd(t, svc, cementDraft(t))
	}
	if _, err := svc.Remove(ctx, "00002"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := ids(svc.Requests()); !reflect.DeepEqual(got, []string{"00003", "00001"}) {
		t.Fatalf("unexpected remaining ids %v", got)
	}
}

func TestAddDeliveryTouchesOnlyAddressedItem(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService(nil)
	d := cementDraft(t)
	if err := d.AddItem("Sand", "m3", "20"); err != nil {
		t.Fatalf("add item: %v", err)
	}
	mustAdd(t, svc, d)
	other := mustAdd(t, svc, cementDraft(t))

	updated, _, err := svc.AddDelivery(ctx, SupplyKey{RequestID: "00001", ItemIndex: 1}, DeliveryInput{Date: "2024-01-12", Qty: "5"})
	if err != nil {
		t.Fatalf("add delivery: %v", err)
	}
	if len(updated.Items[0].Supplied) != 0 || len(updated.Items[1].Supplied) != 1 {
		t.Fatalf("delivery leaked across items: %+v", updated.Items)
	}
	if got, _ := svc.Request(other.ID); len(got.Items[0].Supplied) != 0 {
		t.Fatalf("delivery leaked across requests: %+v", got)
	}
}

func TestAddDeliveryAddressingErrors(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService(nil)
	mustAdd(t, svc, cementDraft(t))
	cases := []struct {
		name string
		key  SupplyKey
		in   DeliveryInput
		msg  string
	}{
		{"missing date", SupplyKey{"00001", 0}, DeliveryInput{Qty: "5"}, MsgSupplyInputRequired},
		{"missing qty", SupplyKey{"00001", 0}, DeliveryInput{Date: "2024-01-12"}, MsgSupplyInputRequired},
		{"unknown request", SupplyKey{"00009", 0}, DeliveryInput{Date: "2024-01-12", Qty: "5"}, "unknown request"},
		{"unknown item", SupplyKey{"00001", 3}, DeliveryInput{Date: "2024-01-12", Qty: "5"}, "unknown line item"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.AddDelivery(ctx, tc.key, tc.in)
			var aErr *AddressingError
			if !errors.As(err, &aErr) || aErr.Message != tc.msg || aErr.Key != tc.key {
				t.Fatalf("expected addressing error %q, got %v", tc.msg, err)
			}
		})
	}
	var nf ErrNotFound
	_, _, err := svc.AddDelivery(ctx, SupplyKey{"00009", 0}, DeliveryInput{Date: "d", Qty: "1"})
	if !errors.As(err, &nf) {
		t.Fatalf("expected unknown request to unwrap to ErrNotFound, got %v", err)
	}
	got, _ := svc.Request("00001")
	if len(got.Items[0].Supplied) != 0 {
		t.Fatalf("rejected deliveries must not be stored")
	}
}

func TestAddDeliveryQtyPolicy(t *testing.T) {
	ctx := context.Background()
	log := &captureLogger{}
	svc := NewInMemoryService(nil, WithLogger(log))
	mustAdd(t, svc, cementDraft(t))
	updated, _, err := svc.AddDelivery(ctx, SupplyKey{"00001", 0}, DeliveryInput{Date: "2024-01-12", Qty: "abc"})
	if err != nil {
		t.Fatalf("lenient add: %v", err)
	}
	if updated.Items[0].Supplied[0].Qty != 0 {
		t.Fatalf("expected coercion to 0, got %+v", updated.Items[0].Supplied)
	}
	if !log.has("w:delivery quantity coerced") {
		t.Fatalf("expected coercion warning, got %v", log.calls)
	}

	strict := NewInMemoryService(nil, WithQtyParsePolicy(QtyStrict))
	mustAdd(t, strict, cementDraft(t))
	_, _, err = strict.AddDelivery(ctx, SupplyKey{"00001", 0}, DeliveryInput{Date: "2024-01-12", Qty: "abc"})
	var aErr *AddressingError
	if !errors.As(err, &aErr) {
		t.Fatalf("expected strict policy to reject, got %v", err)
	}
}

func TestSubmitAddsThenUpdatesAndResets(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService(nil)
	d := cementDraft(t)
	created, _, err := svc.Submit(ctx, &d)
	if err != nil {
		t.Fatalf("submit new: %v", err)
	}
	if d.ProjectTitle != "" || len(d.Items) != 0 || d.EditingID() != "" {
		t.Fatalf("expected draft reset after submit, got %+v", d)
	}

	edit := EditDraft(created)
	edit.Notes = "urgent"
	if _, _, err := svc.Submit(ctx, edit); err != nil {
		t.Fatalf("submit edit: %v", err)
	}
	if len(svc.Requests()) != 1 {
		t.Fatalf("edit must replace, not add")
	}
	if got, _ := svc.Request(created.ID); got.Notes != "urgent" {
		t.Fatalf("expected notes updated, got %+v", got)
	}

	bad := NewDraft()
	bad.ProjectTitle = "kept"
	if _, _, err := svc.Submit(ctx, bad); err == nil {
		t.Fatalf("expected validation error")
	}
	if bad.ProjectTitle != "kept" {
		t.Fatalf("rejected submit must leave draft intact")
	}
}

func TestEditPreservesDeliveryHistory(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService(nil)
	created := mustAdd(t, svc, cementDraft(t))
	if _, _, err := svc.AddDelivery(ctx, SupplyKey{created.ID, 0}, DeliveryInput{Date: "2024-01-12", Qty: "40"}); err != nil {
		t.Fatalf("add delivery: %v", err)
	}
	stored, _ := svc.Request(created.ID)
	d := EditDraft(stored)
	d.Items[0].Material = "Cement 42.5"
	updated, _, err := svc.Submit(ctx, d)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if updated.Items[0].SuppliedTotal() != 40 || updated.Items[0].Material != "Cement 42.5" {
		t.Fatalf("unexpected edited request %+v", updated)
	}
}

func TestCommitSupplyClearsStagedInput(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService(nil)
	mustAdd(t, svc, cementDraft(t))
	inputs := NewSupplyInputs()
	key := SupplyKey{RequestID: "00001", ItemIndex: 0}
	inputs.SetDate(key, "2024-01-12")
	if _, _, err := svc.CommitSupply(ctx, inputs, key); err == nil {
		t.Fatalf("expected error with only date staged")
	}
	if inputs.Get(key).Date != "2024-01-12" {
		t.Fatalf("failed commit must keep staged input")
	}
	inputs.SetQty(key, "40")
	if _, _, err := svc.CommitSupply(ctx, inputs, key); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if inputs.Len() != 0 || inputs.Get(key) != (DeliveryInput{}) {
		t.Fatalf("expected staged input cleared")
	}
}

func TestSiteACementScenario(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService(nil)
	created := mustAdd(t, svc, cementDraft(t))
	key := SupplyKey{RequestID: created.ID, ItemIndex: 0}
	if _, res, err := svc.AddDelivery(ctx, key, DeliveryInput{Date: "2024-01-12", Qty: "40"}); err != nil || len(res.Warnings()) != 0 {
		t.Fatalf("first delivery: %v %+v", err, res)
	}
	if rows := svc.Rows(query.Filters{}); rows[0].StatusText != "Partially Supplied" || rows[0].Remaining != 60 {
		t.Fatalf("unexpected partial row %+v", rows[0])
	}
	_, res, err := svc.AddDelivery(ctx, key, DeliveryInput{Date: "2024-01-15", Qty: "75"})
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if w := res.Warnings(); len(w) != 1 || w[0].Rule != "over_supply" {
		t.Fatalf("expected over-supply warning, got %+v", res)
	}
	rows := svc.Rows(query.Filters{Project: "Site A"})
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	r := rows[0]
	if r.Supplied != 115 || r.Remaining != -15 || r.StatusText != "Supplied More" || r.StatusColor != "orange" {
		t.Fatalf("unexpected row %+v", r)
	}
	if got := svc.Projects(); !reflect.DeepEqual(got, []string{"Site A"}) {
		t.Fatalf("unexpected projects %v", got)
	}
	if got := svc.Statuses(); len(got) != 4 {
		t.Fatalf("unexpected statuses %v", got)
	}
}

func TestServiceObservesOperations(t *testing.T) {
	ctx := context.Background()
	log := &captureLogger{}
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}
	svc := NewInMemoryService(nil, WithLogger(log), WithMetricsRecorder(metrics), WithTracer(tracer), WithClock(stubClock{}))

	mustAdd(t, svc, cementDraft(t))
	if _, err := svc.Remove(ctx, "missing"); err == nil {
		t.Fatalf("expected remove error")
	}
	if !metrics.has("add_request", true) || !metrics.has("remove_request", false) {
		t.Fatalf("unexpected metrics %+v", metrics.calls)
	}
	if !tracer.has("add_request", true) || !tracer.has("remove_request", false) {
		t.Fatalf("unexpected spans %+v", tracer.ended)
	}
	if len(tracer.started) != len(tracer.ended) {
		t.Fatalf("every span must end: %v vs %v", tracer.started, tracer.ended)
	}
	if !log.has("i:operation rejected") || log.has("e:") {
		t.Fatalf("input errors should not log at error level: %v", log.calls)
	}
}

type failingBridge struct {
	saves int
}

func (f *failingBridge) Load(context.Context) ([]Request, error) { return []Request{}, nil }

func (f *failingBridge) Save(context.Context, []Request) error {
	f.saves++
	return errors.New("quota exceeded")
}

func TestPersistFailureIsNonFatal(t *testing.T) {
	ctx := context.Background()
	bridge := &failingBridge{}
	store, err := openTestMirror(ctx, bridge)
	if err != nil {
		t.Fatalf("open mirror: %v", err)
	}
	log := &captureLogger{}
	metrics := &captureMetricsRecorder{}
	svc := NewService(store, WithLogger(log), WithMetricsRecorder(metrics))

	created, res, err := svc.Add(ctx, cementDraft(t))
	if err != nil {
		t.Fatalf("expected add to succeed despite persist failure, got %v", err)
	}
	if res.Persisted() || res.Unsaved == nil || res.Unsaved.Err.Error() != "quota exceeded" {
		t.Fatalf("expected result to carry the save failure, got %+v", res.Unsaved)
	}
	if _, ok := svc.Request(created.ID); !ok || bridge.saves != 1 {
		t.Fatalf("expected committed request and one save attempt")
	}
	if !log.has("e:persist failed") || !metrics.has("persist", false) || !metrics.has("add_request", true) {
		t.Fatalf("expected persist failure to be logged and counted: %v %+v", log.calls, metrics.calls)
	}
	removed, err := svc.Remove(ctx, created.ID)
	if err != nil || removed.Persisted() {
		t.Fatalf("expected remove to succeed but report unsaved state, got %+v %v", removed, err)
	}
}

func TestBlockingRuleAbortsTransaction(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(blockAll{})
	svc := NewInMemoryService(engine)
	_, _, err := svc.Add(context.Background(), cementDraft(t))
	var rv domain.RuleViolationError
	if !errors.As(err, &rv) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if len(svc.Requests()) != 0 {
		t.Fatalf("blocked transaction must not commit")
	}
}

type blockAll struct{}

func (blockAll) Name() string { return "block_all" }

func (blockAll) Evaluate(context.Context, domain.RuleView, []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{Rule: "block_all", Severity: domain.SeverityBlock}}}, nil
}
