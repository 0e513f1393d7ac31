package conns

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
)

func testRegistry() *Registry {
	return NewRegistry(slog.Default())
}

type recordingSender struct {
	mu   sync.Mutex
	sent [][]byte
	fail bool
}

func (s *recordingSender) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("transport closed")
	}
	s.sent = append(s.sent, payload)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func TestRegisterUnregister(t *testing.T) {
	r := testRegistry()

	r.Register("c1", KindDuplex, &recordingSender{}, "10.0.0.1")
	if r.Count() != 1 {
		t.Fatalf("count = %d", r.Count())
	}

	if !r.Unregister("c1") {
		t.Error("unregister should report true for known connection")
	}
	if r.Unregister("c1") {
		t.Error("second unregister should report false")
	}
	if r.Count() != 0 {
		t.Errorf("count = %d after unregister", r.Count())
	}
}

func TestSendTo(t *testing.T) {
	r := testRegistry()
	s := &recordingSender{}
	r.Register("c1", KindDuplex, s, "")

	if err := r.SendTo("c1", []byte("hello")); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if s.count() != 1 {
		t.Errorf("sent = %d", s.count())
	}

	if err := r.SendTo("nope", []byte("x")); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("expected ErrNotRegistered, got %v", err)
	}
}

func TestSendTo_FailurePrunes(t *testing.T) {
	r := testRegistry()
	r.Register("c1", KindDuplex, &recordingSender{fail: true}, "")

	if err := r.SendTo("c1", []byte("x")); err == nil {
		t.Fatal("expected send error")
	}
	if _, ok := r.Get("c1"); ok {
		t.Error("failed connection should be pruned")
	}
}

func TestBroadcast_PartialFailure(t *testing.T) {
	r := testRegistry()

	senders := make([]*recordingSender, 5)
	for i := range senders {
		senders[i] = &recordingSender{fail: i == 2}
		r.Register(fmt.Sprintf("c%d", i), KindDuplex, senders[i], "")
	}

	delivered, pruned := r.Broadcast([]byte("event"))

	if len(delivered) != 4 {
		t.Errorf("delivered = %d, want 4", len(delivered))
	}
	if len(pruned) != 1 || pruned[0] != "c2" {
		t.Errorf("pruned = %v, want [c2]", pruned)
	}
	if _, ok := r.Get("c2"); ok {
		t.Error("c2 should be absent from registry after broadcast")
	}
	if r.Count() != 4 {
		t.Errorf("count = %d, want 4", r.Count())
	}
}

func TestBroadcast_SkipsOneShot(t *testing.T) {
	r := testRegistry()
	s := &recordingSender{}
	r.Register("ws", KindDuplex, s, "")
	r.Register("http", KindOneShot, nil, "")

	delivered, pruned := r.Broadcast([]byte("event"))

	if len(delivered) != 1 || delivered[0] != "ws" {
		t.Errorf("delivered = %v", delivered)
	}
	if len(pruned) != 0 {
		t.Errorf("pruned = %v", pruned)
	}
	// One-shot connection stays registered; it just can't be pushed to.
	if _, ok := r.Get("http"); !ok {
		t.Error("one-shot connection should remain registered")
	}
}

func TestBindSession(t *testing.T) {
	r := testRegistry()
	conn := r.Register("c1", KindDuplex, &recordingSender{}, "")

	r.BindSession("c1", "sess-abc")
	if conn.SessionID() != "sess-abc" {
		t.Errorf("session = %q", conn.SessionID())
	}

	// Unknown connection is a no-op.
	r.BindSession("ghost", "sess-x")
}

func TestConcurrentAccess(t *testing.T) {
	r := testRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			r.Register(id, KindDuplex, &recordingSender{}, "")
			r.Broadcast([]byte("x"))
			r.Unregister(id)
		}(i)
	}
	wg.Wait()

	if r.Count() != 0 {
		t.Errorf("count = %d after concurrent churn", r.Count())
	}
}
