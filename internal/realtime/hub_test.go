package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket/wsjson"

	"github.com/fineahban/marketplace/internal/model"
)

func TestHub_SelfMessageDeliveredOnce(t *testing.T) {
	hub, srv := newTestGateway(t)

	conn := dial(t, srv, "alice")
	require.Eventually(t, func() bool { return hub.ConnectedCount(1) == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.NotifyMessage(&model.Message{ID: 1, SenderID: 1, RecipientID: 1, Body: "note to self"})
	hub.Publish([]int64{1}, Event{Type: "marker"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var first, second Event
	require.NoError(t, wsjson.Read(ctx, conn, &first))
	require.NoError(t, wsjson.Read(ctx, conn, &second))
	assert.Equal(t, EventMessageNew, first.Type)
	assert.Equal(t, "marker", second.Type, "self-message must not be pushed twice")
}

func TestHub_PublishSkipsOtherUsers(t *testing.T) {
	hub, srv := newTestGateway(t)

	bob := dial(t, srv, "bob")
	require.Eventually(t, func() bool { return hub.ConnectedCount(2) == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish([]int64{1}, Event{Type: "for-alice"})
	hub.Publish([]int64{2}, Event{Type: "for-bob"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var ev Event
	require.NoError(t, wsjson.Read(ctx, bob, &ev))
	assert.Equal(t, "for-bob", ev.Type)
}

func TestHub_PublishToNobodyIsNoop(t *testing.T) {
	hub := NewHub(testLogger())

	assert.NotPanics(t, func() {
		hub.Publish([]int64{42}, Event{Type: "x"})
		hub.NotifyMessage(&model.Message{SenderID: 1, RecipientID: 2})
	})
	assert.Zero(t, hub.ConnectedCount(42))
}

func TestHub_RejectsClientsAfterClose(t *testing.T) {
	hub, srv := newTestGateway(t)
	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn := dial(t, srv, "alice")
	_, _, err := conn.Read(ctx)
	assert.Error(t, err)
	assert.Zero(t, hub.ConnectedCount(1))
}
