package rabbit

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Dummy delivers published messages to in-process consumers of the same queue.
// Messages published while nobody consumes are buffered up to dummyBuffer per queue, then dropped.
type Dummy struct {
	mu     sync.Mutex
	queues map[string]chan []byte
}

const dummyBuffer = 64

func NewDummy() *Dummy {
	return &Dummy{queues: map[string]chan []byte{}}
}

func (n *Dummy) queue(name string) chan []byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	q, ok := n.queues[name]
	if !ok {
		q = make(chan []byte, dummyBuffer)
		n.queues[name] = q
	}
	return q
}

func (n *Dummy) Consume(ctx context.Context, queue string, consumeFunction ConsumeFunc) error {
	q := n.queue(queue)
	for {
		select {
		case <-ctx.Done():
			return nil
		case body := <-q:
			_ = consumeFunction(ctx, amqp.Delivery{RoutingKey: queue, Body: body})
		}
	}
}

func (n *Dummy) Publish(ctx context.Context, queue string, body []byte) error {
	select {
	case n.queue(queue) <- body:
	default:
	}
	return nil
}
