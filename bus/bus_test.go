package bus

import (
	"log/slog"
	"os"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestPublishDeliversToAllSubscribersInOrder(t *testing.T) {
	b := New(testLogger())

	var order []string
	b.Subscribe("state-updated", func(detail any) { order = append(order, "first") })
	b.Subscribe("state-updated", func(detail any) { order = append(order, "second") })
	b.Subscribe("other-topic", func(detail any) { order = append(order, "wrong topic") })

	b.Publish("state-updated", StateUpdate{Type: "liked"})

	if len(order) != 2 {
		t.Fatalf("Publish() reached %d handlers, want 2 (got %v)", len(order), order)
	}
	if order[0] != "first" || order[1] != "second" {
		t.Errorf("Publish() delivery order = %v, want [first second]", order)
	}
}

func TestPublishIsSynchronous(t *testing.T) {
	b := New(testLogger())

	delivered := false
	b.Subscribe("toast", func(detail any) { delivered = true })

	b.Publish("toast", Toast{Message: "hola"})

	if !delivered {
		t.Error("Publish() returned before the handler ran")
	}
}

func TestPublishCarriesDetail(t *testing.T) {
	b := New(testLogger())

	var got any
	b.Subscribe("state-updated", func(detail any) { got = detail })

	want := StateUpdate{Type: "watch_later", Context: map[string]string{"video": "1.mp4"}}
	b.Publish("state-updated", want)

	update, ok := got.(StateUpdate)
	if !ok {
		t.Fatalf("handler received %T, want StateUpdate", got)
	}
	if update.Type != want.Type || update.Context["video"] != "1.mp4" {
		t.Errorf("handler received %+v, want %+v", update, want)
	}
}

func TestUnsubscribedHandlerIsNotInvoked(t *testing.T) {
	b := New(testLogger())

	calls := 0
	unsubscribe := b.Subscribe("state-updated", func(detail any) { calls++ })

	b.Publish("state-updated", nil)
	unsubscribe()
	b.Publish("state-updated", nil)

	if calls != 1 {
		t.Errorf("handler ran %d times, want 1 (unsubscribe must stop delivery)", calls)
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := New(testLogger())

	first := 0
	second := 0
	unsubFirst := b.Subscribe("t", func(detail any) { first++ })
	b.Subscribe("t", func(detail any) { second++ })

	unsubFirst()
	unsubFirst()
	b.Publish("t", nil)

	if first != 0 {
		t.Errorf("unsubscribed handler ran %d times, want 0", first)
	}
	if second != 1 {
		t.Errorf("remaining handler ran %d times, want 1", second)
	}
}

func TestPublishWithNoSubscribersIsNoOp(t *testing.T) {
	b := New(testLogger())
	// Must not panic or block.
	b.Publish("state-updated", StateUpdate{Type: "auth"})
}

func TestHandlerRunsExactlyOncePerPublish(t *testing.T) {
	b := New(testLogger())

	calls := 0
	b.Subscribe("t", func(detail any) { calls++ })

	for range 3 {
		b.Publish("t", nil)
	}

	if calls != 3 {
		t.Errorf("handler ran %d times over 3 publishes, want 3", calls)
	}
}

func TestSubscribeDuringPublishDoesNotAffectInFlightFanOut(t *testing.T) {
	b := New(testLogger())

	lateCalls := 0
	b.Subscribe("t", func(detail any) {
		b.Subscribe("t", func(detail any) { lateCalls++ })
	})

	b.Publish("t", nil)
	if lateCalls != 0 {
		t.Errorf("handler subscribed mid-publish ran %d times during that publish, want 0", lateCalls)
	}

	b.Publish("t", nil)
	if lateCalls != 1 {
		t.Errorf("handler subscribed mid-publish ran %d times on next publish, want 1", lateCalls)
	}
}
