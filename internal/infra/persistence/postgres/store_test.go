package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	"materialtracker/internal/infra/persistence/postgres/testutil"
	"materialtracker/internal/infra/persistence/snapshot"
	"materialtracker/pkg/domain"
)

func openStub(t *testing.T) (*Bridge, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)
	bridge, err := NewBridge(context.Background(), "", "")
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}
	return bridge, conn
}

func sampleRequests() []domain.Request {
	return []domain.Request{{
		ID: "00001", Date: "2024-01-10", ProjectTitle: "Site A", Warehouse: "WH1",
		Items: []domain.LineItem{{Material: "Cement", Unit: "bag", RequestedQty: 100,
			Supplied: []domain.Delivery{{Date: "2024-01-12", Qty: 40}}}},
	}}
}

func TestNewBridgeEnsuresStateTable(t *testing.T) {
	bridge, conn := openStub(t)
	if bridge.Key() != snapshot.StorageKey {
		t.Fatalf("expected default key, got %s", bridge.Key())
	}
	var sawDDL bool
	for _, stmt := range conn.Execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE IF NOT EXISTS STATE") {
			sawDDL = true
		}
	}
	if !sawDDL {
		t.Fatalf("expected state table DDL, got execs: %v", conn.Execs)
	}
	if bridge.DB() == nil {
		t.Fatalf("expected db handle")
	}
}

func TestLoadEmptyWhenRowMissing(t *testing.T) {
	bridge, _ := openStub(t)
	got, err := bridge.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty collection, got %v", got)
	}
}

func TestSaveThenLoad(t *testing.T) {
	ctx := context.Background()
	bridge, conn := openStub(t)
	if err := bridge.Save(ctx, sampleRequests()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := bridge.Save(ctx, sampleRequests()); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if rows := conn.Tables["state"]; len(rows) != 1 {
		t.Fatalf("expected single keyed row, got %d", len(rows))
	}
	got, err := bridge.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 || got[0].Items[0].Supplied[0].Qty != 40 {
		t.Fatalf("unexpected load result %+v", got)
	}
}

func TestLoadMalformedDegrades(t *testing.T) {
	bridge, conn := openStub(t)
	conn.Tables["state"] = []map[string]any{{"bucket": snapshot.StorageKey, "payload": []byte("{broken")}}
	got, err := bridge.Load(context.Background())
	if !errors.Is(err, snapshot.ErrMalformed) {
		t.Fatalf("expected malformed error, got %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty collection, got %v", got)
	}
}

func TestLoadQueryFailure(t *testing.T) {
	bridge, conn := openStub(t)
	conn.FailQuery = true
	if _, err := bridge.Load(context.Background()); err == nil || errors.Is(err, snapshot.ErrMalformed) {
		t.Fatalf("expected query failure, got %v", err)
	}
}

func TestSaveFailures(t *testing.T) {
	cases := []struct {
		name  string
		apply func(*testutil.StubConn)
	}{
		{"begin", func(c *testutil.StubConn) { c.FailBegin = true }},
		{"exec", func(c *testutil.StubConn) { c.FailExec = true }},
		{"commit", func(c *testutil.StubConn) { c.FailCommit = true }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bridge, conn := openStub(t)
			tc.apply(conn)
			if err := bridge.Save(context.Background(), sampleRequests()); err == nil {
				t.Fatalf("expected %s failure", tc.name)
			}
		})
	}
}

func TestNewBridgeErrors(t *testing.T) {
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return nil, fmt.Errorf("dial") })
	if _, err := NewBridge(context.Background(), "postgres://x", "k"); err == nil {
		t.Fatalf("expected open failure")
	}
	restore()

	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore = OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	if _, err := NewBridge(context.Background(), "", ""); err == nil {
		t.Fatalf("expected ping failure")
	}
	restore()

	db, conn = testutil.NewStubDB()
	conn.FailExec = true
	restore = OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewBridge(context.Background(), "", ""); err == nil {
		t.Fatalf("expected ddl failure")
	}
}
