package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"usaha/internal/core"
)

type fakeSource struct {
	data map[string][]core.Business
}

func (f *fakeSource) Owners(context.Context) ([]string, error) {
	owners := make([]string, 0, len(f.data))
	for k := range f.data {
		owners = append(owners, k)
	}
	return owners, nil
}

func (f *fakeSource) Load(_ context.Context, owner string) ([]core.Business, error) {
	return f.data[owner], nil
}

type memMarkers struct {
	mu   sync.Mutex
	sets map[string]Set
}

func (m *memMarkers) Notified(_ context.Context, owner string) (Set, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := Set{}
	for k := range m.sets[owner] {
		out.Add(k)
	}
	return out, nil
}

func (m *memMarkers) Mark(_ context.Context, owner string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sets == nil {
		m.sets = map[string]Set{}
	}
	if m.sets[owner] == nil {
		m.sets[owner] = Set{}
	}
	m.sets[owner].Add(keys...)
	return nil
}

func dueBusiness(t *testing.T) core.Business {
	b := core.NewBusiness("Bakery")
	b.Jobs = append(b.Jobs, core.Job{
		ID: "A", Title: "Deliver", Date: core.NewDate(2024, 1, 10),
		Deadline: deadline(t, "2024-01-12T09:00"), RemindForDeadline: true,
	})
	return b
}

func TestDispatcherMarksDelivered(t *testing.T) {
	src := &fakeSource{data: map[string][]core.Business{"u1": {dueBusiness(t)}}}
	markers := &memMarkers{}
	var delivered []Event
	sink := SinkFunc(func(_ context.Context, owner string, ev Event) error {
		delivered = append(delivered, ev)
		return nil
	})
	cfg := DispatcherConfig{Location: wib, Now: func() time.Time { return time.Date(2024, 1, 10, 10, 0, 0, 0, wib) }}
	d := NewDispatcher(src, markers, sink, cfg, nil, nil)

	stats, err := d.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if stats.Delivered != 1 || len(delivered) != 1 || delivered[0].BusinessID == "" {
		t.Fatalf("stats = %+v delivered = %+v", stats, delivered)
	}

	stats, _ = d.RunOnce(context.Background())
	if stats.Found != 0 || len(delivered) != 1 {
		t.Fatalf("second run repeated reminder: %+v", stats)
	}
}

func TestDispatcherLeavesFailedUnmarked(t *testing.T) {
	src := &fakeSource{data: map[string][]core.Business{"u1": {dueBusiness(t)}}}
	markers := &memMarkers{}
	fail := true
	sink := SinkFunc(func(context.Context, string, Event) error {
		if fail {
			return errors.New("broker down")
		}
		return nil
	})
	cfg := DispatcherConfig{Location: wib, Now: func() time.Time { return time.Date(2024, 1, 10, 10, 0, 0, 0, wib) }}
	d := NewDispatcher(src, markers, sink, cfg, nil, nil)

	stats, _ := d.RunOnce(context.Background())
	if stats.Failed != 1 || stats.Delivered != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	fail = false
	stats, _ = d.RunOnce(context.Background())
	if stats.Delivered != 1 {
		t.Fatalf("retry stats = %+v", stats)
	}
}

type recordingNotifier struct {
	name string
	err  error
	got  []Message
}

func (r *recordingNotifier) Name() string { return r.name }

func (r *recordingNotifier) Notify(_ context.Context, _ Recipient, msg Message) error {
	r.got = append(r.got, msg)
	return r.err
}

type staticRecipients Recipient

func (s staticRecipients) Recipient(context.Context, string) (Recipient, error) {
	return Recipient(s), nil
}

func TestFanoutSwallowsNotifierErrors(t *testing.T) {
	broken := &recordingNotifier{name: "email", err: errors.New("smtp")}
	ok := &recordingNotifier{name: "chat"}
	f := NewFanout(staticRecipients{Email: "a@b.c"}, nil, broken, ok)

	if err := f.Deliver(context.Background(), "u1", Event{JobTitle: "X", DaysUntil: 2}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(broken.got) != 1 || len(ok.got) != 1 || ok.got[0].Subject != "Reminder: X" {
		t.Fatalf("broken=%v ok=%v", broken.got, ok.got)
	}
}
