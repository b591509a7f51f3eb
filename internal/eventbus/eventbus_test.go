package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type testEvent struct {
	N int
}

type otherEvent struct{}

func TestPublishReachesSubscribersOfSameType(t *testing.T) {
	Use(New())

	var got []int
	unsubscribe := Subscribe(func(ctx context.Context, e testEvent) {
		got = append(got, e.N)
	})
	defer unsubscribe()

	Publish(context.Background(), testEvent{N: 1})
	Publish(context.Background(), otherEvent{})
	Publish(context.Background(), testEvent{N: 2})

	require.Equal(t, []int{1, 2}, got)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	Use(New())

	calls := 0
	unsubscribe := Subscribe(func(ctx context.Context, e testEvent) { calls++ })

	Publish(context.Background(), testEvent{})
	unsubscribe()
	Publish(context.Background(), testEvent{})

	require.Equal(t, 1, calls)
}

func TestPublishWithoutBusIsNoOp(t *testing.T) {
	Use(New())
	// No subscribers registered at all.
	Publish(context.Background(), testEvent{N: 42})
}
