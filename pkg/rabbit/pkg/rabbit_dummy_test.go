package rabbit

import (
	"context"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutConfigIsDummy(t *testing.T) {
	_, ok := New(nil).(*Dummy)
	assert.True(t, ok)
}

func TestDummyLoopback(t *testing.T) {
	d := NewDummy()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, d.Publish(ctx, "session.finished", []byte(`{"sessionId":"s1"}`)))

	got := make(chan string, 1)
	go d.Consume(ctx, "session.finished", func(ctx context.Context, msg amqp.Delivery) error {
		got <- string(msg.Body)
		return nil
	})

	select {
	case body := <-got:
		assert.JSONEq(t, `{"sessionId":"s1"}`, body)
	case <-time.After(time.Second):
		t.Fatal("message was not delivered")
	}
}
