package memstore

import (
	"context"
	"errors"
	"testing"

	"usaha/internal/core"
)

func TestNewFromFileSeed(t *testing.T) {
	s, err := NewFromFile("testdata/seed.yaml")
	if err != nil {
		t.Fatalf("NewFromFile: %v", err)
	}
	ctx := context.Background()
	owners, _ := s.Owners(ctx)
	if len(owners) != 1 || owners[0] != "demo" {
		t.Fatalf("owners = %v", owners)
	}
	bs, _ := s.Load(ctx, "demo")
	if len(bs) != 1 || len(bs[0].Jobs) != 3 || len(bs[0].Labels) != 1 {
		t.Fatalf("businesses = %+v", bs)
	}
	b := bs[0]
	weekly := b.Jobs[0]
	w, ok := weekly.Weekly()
	if !ok || len(w.Completions) != 2 || !w.Exceptions.Has(core.NewDate(2024, 1, 15)) {
		t.Fatalf("weekly job = %+v", weekly)
	}
	if weekly.LabelID != b.Labels[0].ID {
		t.Fatal("label reference not resolved")
	}
	if task := b.Jobs[2]; !task.GrossIncome.IsZero() {
		t.Fatalf("task kept gross %s", task.GrossIncome)
	}
	if !b.OtherExpenses[0].Amount.IsZero() {
		t.Fatal("unparsable amount should be zero")
	}
	r, _ := s.Recipient(ctx, "demo")
	if r.Email != "demo@example.com" || r.ChatID != 4242 {
		t.Fatalf("recipient = %+v", r)
	}
}

func TestNewFromFileMissing(t *testing.T) {
	s, err := NewFromFile("testdata/nope.yaml")
	if err != nil {
		t.Fatalf("missing seed should be fine: %v", err)
	}
	if owners, _ := s.Owners(context.Background()); len(owners) != 0 {
		t.Fatalf("owners = %v", owners)
	}
}

func TestCommitFailureRollsBack(t *testing.T) {
	fail := errors.New("disk full")
	calls := 0
	s := NewWithCommit(func(string, OwnerData) error {
		calls++
		if calls > 1 {
			return fail
		}
		return nil
	})
	ctx := context.Background()
	if err := s.SaveBusiness(ctx, "g", core.NewBusiness("A")); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := s.SaveBusiness(ctx, "g", core.NewBusiness("B")); !errors.Is(err, fail) {
		t.Fatalf("err = %v", err)
	}
	bs, _ := s.Load(ctx, "g")
	if len(bs) != 1 || bs[0].Name != "A" {
		t.Fatalf("rollback failed: %+v", bs)
	}
}

func TestDeleteLabelClearsReferences(t *testing.T) {
	s := New()
	ctx := context.Background()
	b := core.NewBusiness("A")
	l := core.Label{ID: "l1", Title: "VIP"}
	b.Labels = []core.Label{l}
	b.Jobs = []core.Job{{ID: "j1", Title: "x", LabelID: "l1"}, {ID: "j2", Title: "y", LabelID: "other"}}
	s.Seed("u", OwnerData{Businesses: []core.Business{b}})

	if err := s.DeleteLabel(ctx, "u", b.ID, "l1"); err != nil {
		t.Fatalf("DeleteLabel: %v", err)
	}
	got, _ := s.Load(ctx, "u")
	if len(got[0].Labels) != 0 || len(got[0].Jobs) != 2 {
		t.Fatalf("business = %+v", got[0])
	}
	if got[0].Jobs[0].LabelID != "" || got[0].Jobs[1].LabelID != "other" {
		t.Fatalf("jobs = %+v", got[0].Jobs)
	}
}

func TestMarkersAndFeed(t *testing.T) {
	s := New()
	ctx := context.Background()
	feed, cancel := s.Subscribe("u")
	defer cancel()

	if err := s.SaveBusiness(ctx, "u", core.NewBusiness("A")); err != nil {
		t.Fatal(err)
	}
	snap := <-feed
	if len(snap) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}

	if err := s.Mark(ctx, "u", "k1", "k1", "k2"); err != nil {
		t.Fatal(err)
	}
	set, _ := s.Notified(ctx, "u")
	if len(set) != 2 || !set.Has("k1") {
		t.Fatalf("markers = %v", set)
	}
	if d := s.Snapshot("u"); len(d.Notified) != 2 {
		t.Fatalf("stored markers = %v", d.Notified)
	}
}

func TestWriteToMissingBusiness(t *testing.T) {
	s := New()
	err := s.PutJob(context.Background(), "u", "nope", core.Job{ID: "j"})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}
