package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"materialtracker/pkg/domain"
)

func sampleRequest(project string) domain.Request {
	return domain.Request{
		Date:         "2024-01-10",
		ProjectTitle: project,
		Warehouse:    "WH1",
		Items: []domain.LineItem{
			{Material: "Cement", Unit: "bag", RequestedQty: 100},
			{Material: "Sand", Unit: "ton", RequestedQty: 5},
		},
	}
}

func mustCreate(t *testing.T, store *Store, req domain.Request) domain.Request {
	t.Helper()
	var created domain.Request
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateRequest(req)
		return err
	}); err != nil {
		t.Fatalf("create request: %v", err)
	}
	return created
}

func TestStoreRunInTransactionAndSnapshots(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, ok := tx.FindRequest("missing"); ok {
			t.Fatalf("expected missing request lookup")
		}
		created, err := tx.CreateRequest(sampleRequest("Site A"))
		if err != nil {
			return err
		}
		if created.ID != "00001" {
			t.Fatalf("expected generated ID 00001, got %s", created.ID)
		}
		if len(tx.Snapshot().ListRequests()) != 1 {
			t.Fatalf("snapshot mismatch")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}
	if len(store.ListRequests()) != 1 {
		t.Fatalf("expected persisted request")
	}
	snapshot := store.ExportState()
	store.ImportState(Snapshot{})
	if len(store.ListRequests()) != 0 {
		t.Fatalf("expected cleared state")
	}
	store.ImportState(snapshot)
	if _, ok := store.GetRequest("00001"); !ok {
		t.Fatalf("expected restored state")
	}
	if store.RulesEngine() == nil {
		t.Fatalf("expected rules engine")
	}
}

func TestCreatePrependsNewestFirst(t *testing.T) {
	store := NewStore(nil)
	mustCreate(t, store, sampleRequest("Site A"))
	mustCreate(t, store, sampleRequest("Site B"))
	third := mustCreate(t, store, sampleRequest("Site C"))
	if third.ID != "00003" {
		t.Fatalf("expected 00003, got %s", third.ID)
	}
	list := store.ListRequests()
	got := []string{list[0].ID, list[1].ID, list[2].ID}
	want := []string{"00003", "00002", "00001"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected order %v", got)
		}
	}
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	store := NewStore(nil)
	first := mustCreate(t, store, sampleRequest("Site A"))
	dup := sampleRequest("Site B")
	dup.ID = first.ID
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateRequest(dup)
		return err
	})
	if err == nil {
		t.Fatalf("expected duplicate id error")
	}
	if len(store.ListRequests()) != 1 {
		t.Fatalf("expected failed transaction to leave state untouched")
	}
}

func TestReplaceKeepsIDAndPosition(t *testing.T) {
	store := NewStore(nil)
	mustCreate(t, store, sampleRequest("Site A"))
	mustCreate(t, store, sampleRequest("Site B"))
	mustCreate(t, store, sampleRequest("Site C"))
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.ReplaceRequest("00002", func(r *domain.Request) error {
			r.ID = "99999"
			r.ProjectTitle = "Site B2"
			r.Items = r.Items[:1]
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	list := store.ListRequests()
	if list[1].ID != "00002" || list[1].ProjectTitle != "Site B2" || len(list[1].Items) != 1 {
		t.Fatalf("unexpected replaced request %+v", list[1])
	}
}

func TestReplaceMissingAndMutatorError(t *testing.T) {
	store := NewStore(nil)
	mustCreate(t, store, sampleRequest("Site A"))
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.ReplaceRequest("00042", func(*domain.Request) error { return nil })
		return err
	})
	if !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.ReplaceRequest("00001", func(r *domain.Request) error {
			r.ProjectTitle = "mutated"
			return fmt.Errorf("mutator failed")
		})
		return err
	})
	if err == nil {
		t.Fatalf("expected mutator error")
	}
	if got, _ := store.GetRequest("00001"); got.ProjectTitle != "Site A" {
		t.Fatalf("expected rollback, got %q", got.ProjectTitle)
	}
}

func TestDeleteRemovesExactlyOne(t *testing.T) {
	store := NewStore(nil)
	mustCreate(t, store, sampleRequest("Site A"))
	mustCreate(t, store, sampleRequest("Site B"))
	mustCreate(t, store, sampleRequest("Site C"))
	before := store.ListRequests()
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.DeleteRequest("00002")
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	after := store.ListRequests()
	if len(after) != 2 {
		t.Fatalf("expected two requests, got %d", len(after))
	}
	if after[0].ID != before[0].ID || after[1].ID != before[2].ID || after[1].ProjectTitle != "Site A" {
		t.Fatalf("unexpected survivors %+v", after)
	}
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.DeleteRequest("00002")
	}); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	next := mustCreate(t, store, sampleRequest("Site D"))
	if next.ID != "00004" {
		t.Fatalf("expected ids never recycled, got %s", next.ID)
	}
}

func TestAppendDeliveryTouchesOnlyTargetItem(t *testing.T) {
	store := NewStore(nil)
	mustCreate(t, store, sampleRequest("Site A"))
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.AppendDelivery("00001", 0, domain.Delivery{Date: "2024-01-12", Qty: 40})
		return err
	}); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, _ := store.GetRequest("00001")
	if len(got.Items[0].Supplied) != 1 || got.Items[0].Supplied[0].Qty != 40 {
		t.Fatalf("expected delivery on first item, got %+v", got.Items[0])
	}
	if len(got.Items[1].Supplied) != 0 || got.Items[1].RequestedQty != 5 || got.Items[0].RequestedQty != 100 {
		t.Fatalf("unexpected mutation of other fields %+v", got.Items)
	}
}

func TestAppendDeliveryAddressing(t *testing.T) {
	store := NewStore(nil)
	mustCreate(t, store, sampleRequest("Site A"))
	cases := []struct {
		id    string
		index int
		want  error
	}{
		{"00009", 0, ErrRequestNotFound},
		{"00001", 2, ErrItemOutOfRange},
		{"00001", -1, ErrItemOutOfRange},
	}
	for _, tc := range cases {
		_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
			_, err := tx.AppendDelivery(tc.id, tc.index, domain.Delivery{Date: "d", Qty: 1})
			return err
		})
		if !errors.Is(err, tc.want) {
			t.Fatalf("AppendDelivery(%s,%d) = %v, want %v", tc.id, tc.index, err, tc.want)
		}
	}
}

func TestListReturnsClones(t *testing.T) {
	store := NewStore(nil)
	mustCreate(t, store, sampleRequest("Site A"))
	list := store.ListRequests()
	list[0].Items[0].Material = "changed"
	got, _ := store.GetRequest("00001")
	if got.Items[0].Material != "Cement" {
		t.Fatalf("expected store isolation, got %q", got.Items[0].Material)
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block" }

func (blockingRule) Evaluate(context.Context, domain.RuleView, []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{Rule: "block", Severity: domain.SeverityBlock}}}, nil
}

type failingRule struct{}

func (failingRule) Name() string { return "fail" }

func (failingRule) Evaluate(context.Context, domain.RuleView, []domain.Change) (domain.Result, error) {
	return domain.Result{}, fmt.Errorf("rule failure")
}

func TestStoreRuleViolation(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	store.RulesEngine().Register(blockingRule{})
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateRequest(sampleRequest("Site A"))
		return e
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if len(store.ListRequests()) != 0 {
		t.Fatalf("expected blocked transaction to leave state untouched")
	}
}

func TestStoreRuleError(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	store.RulesEngine().Register(failingRule{})
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateRequest(sampleRequest("Site A"))
		return e
	}); err == nil {
		t.Fatalf("expected rule error")
	}
}

func TestViewSnapshot(t *testing.T) {
	store := NewStore(nil)
	mustCreate(t, store, sampleRequest("Site A"))
	err := store.View(context.Background(), func(view domain.TransactionView) error {
		if len(view.ListRequests()) != 1 {
			return fmt.Errorf("expected one request")
		}
		if _, ok := view.FindRequest("00001"); !ok {
			return fmt.Errorf("expected lookup to succeed")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}
