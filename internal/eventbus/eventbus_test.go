package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type ping struct{ N int }
type pong struct{}

func TestPublishDispatchesByType(t *testing.T) {
	b := New()
	var got []int
	SubscribeTo(b, func(_ context.Context, p ping) { got = append(got, p.N) })
	SubscribeTo(b, func(_ context.Context, p ping) { got = append(got, p.N*10) })
	SubscribeTo(b, func(_ context.Context, _ pong) { t.Fatal("pong handler called for ping") })

	PublishTo(b, context.Background(), ping{N: 1})
	require.Equal(t, []int{1, 10}, got)
}

func TestUnsubscribeRemovesOnlyThatHandler(t *testing.T) {
	b := New()
	var got []string
	unsubA := SubscribeTo(b, func(_ context.Context, _ ping) { got = append(got, "a") })
	SubscribeTo(b, func(_ context.Context, _ ping) { got = append(got, "b") })

	unsubA()
	unsubA()
	PublishTo(b, context.Background(), ping{})
	require.Equal(t, []string{"b"}, got)
}

func TestGlobalBus(t *testing.T) {
	t.Cleanup(func() { Use(nil) })

	// without a bus, publishing and subscribing are no-ops
	Subscribe(func(_ context.Context, _ ping) { t.Fatal("unexpected call") })()
	Publish(context.Background(), ping{})

	Use(New())
	calls := 0
	unsub := Subscribe(func(_ context.Context, p ping) { calls += p.N })
	Publish(context.Background(), ping{N: 2})
	unsub()
	Publish(context.Background(), ping{N: 2})
	require.Equal(t, 2, calls)
}
