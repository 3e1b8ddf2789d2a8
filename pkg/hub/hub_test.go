package hub_test

import (
	"errors"
	"sync"
	"testing"

	"proxywatch/pkg/hub"
)

type fakeSubscriber struct {
	mu       sync.Mutex
	received [][]byte
	fail     bool
}

func (s *fakeSubscriber) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("send failed")
	}
	s.received = append(s.received, payload)
	return nil
}

func (s *fakeSubscriber) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

func TestConnectIdempotent(t *testing.T) {
	h := hub.New("test")
	sub := &fakeSubscriber{}

	h.Connect(sub)
	h.Connect(sub)

	if h.Count() != 1 {
		t.Errorf("Expected 1 subscriber after double connect, got %d", h.Count())
	}
}

func TestDisconnectUnknownIsNoop(t *testing.T) {
	h := hub.New("test")

	h.Disconnect(&fakeSubscriber{})

	if h.Count() != 0 {
		t.Errorf("Expected 0 subscribers, got %d", h.Count())
	}
}

func TestBroadcastDeliversToAll(t *testing.T) {
	h := hub.New("test")
	subs := []*fakeSubscriber{{}, {}, {}}
	for _, sub := range subs {
		h.Connect(sub)
	}

	delivered := h.Broadcast([]byte("hello"))

	if delivered != 3 {
		t.Errorf("Expected 3 deliveries, got %d", delivered)
	}
	for i, sub := range subs {
		if sub.count() != 1 {
			t.Errorf("Subscriber %d expected 1 message, got %d", i, sub.count())
		}
	}
}

// TestBroadcastFailureIsolation: a failing subscriber must not prevent
// delivery to the others, and must be removed from the registry afterwards.
func TestBroadcastFailureIsolation(t *testing.T) {
	h := hub.New("test")
	good1 := &fakeSubscriber{}
	bad := &fakeSubscriber{fail: true}
	good2 := &fakeSubscriber{}
	h.Connect(good1)
	h.Connect(bad)
	h.Connect(good2)

	delivered := h.Broadcast([]byte("msg"))

	if delivered != 2 {
		t.Errorf("Expected 2 deliveries, got %d", delivered)
	}
	if good1.count() != 1 || good2.count() != 1 {
		t.Error("Healthy subscribers must still receive the broadcast")
	}
	if h.Count() != 2 {
		t.Errorf("Failing subscriber must be evicted, expected 2 remaining, got %d", h.Count())
	}

	// A second broadcast only reaches the survivors.
	h.Broadcast([]byte("again"))
	if good1.count() != 2 || good2.count() != 2 {
		t.Error("Survivors must receive subsequent broadcasts")
	}
}

func TestOnSendFailureCallback(t *testing.T) {
	h := hub.New("test")
	failures := 0
	h.OnSendFailure(func() { failures++ })
	h.Connect(&fakeSubscriber{fail: true})

	h.Broadcast([]byte("msg"))

	if failures != 1 {
		t.Errorf("Expected 1 failure callback, got %d", failures)
	}
}

func TestConcurrentBroadcastAndConnect(t *testing.T) {
	h := hub.New("test")
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := &fakeSubscriber{}
			h.Connect(sub)
			h.Disconnect(sub)
		}()
		go func() {
			defer wg.Done()
			h.Broadcast([]byte("concurrent"))
		}()
	}

	wg.Wait()
}
