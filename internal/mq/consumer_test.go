package mq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	ierr "github.com/septivank/meter-reading-service/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type ackCall struct {
	acked   bool
	requeue bool
}

type fakeAcknowledger struct {
	mu    sync.Mutex
	calls []ackCall
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ackCall{acked: true})
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ackCall{requeue: requeue})
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func (f *fakeAcknowledger) recorded() []ackCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ackCall(nil), f.calls...)
}

func newTestConsumer(handle MessageHandler) *Consumer {
	return &Consumer{queue: "meter-uploads", logger: zap.NewNop(), handle: handle}
}

func TestProcessMessage_Outcomes(t *testing.T) {
	tests := []struct {
		name        string
		handle      MessageHandler
		redelivered bool
		want        ackCall
	}{
		{"success acks", func(context.Context, []byte) error { return nil }, false, ackCall{acked: true}},
		{"transient error requeues", func(context.Context, []byte) error {
			return ierr.NewError("pool exhausted").Mark(ierr.ErrStorageTransient)
		}, false, ackCall{requeue: true}},
		{"transient redelivery is dead-lettered", func(context.Context, []byte) error {
			return ierr.NewError("pool exhausted").Mark(ierr.ErrStorageTransient)
		}, true, ackCall{}},
		{"permanent error is dead-lettered", func(context.Context, []byte) error {
			return errors.New("bad payload")
		}, false, ackCall{}},
		{"panic is dead-lettered", func(context.Context, []byte) error {
			panic("boom")
		}, false, ackCall{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAcknowledger{}
			c := newTestConsumer(tt.handle)

			c.processMessage(context.Background(), amqp.Delivery{
				Acknowledger: ack,
				Redelivered:  tt.redelivered,
				Body:         []byte(`{}`),
			})

			assert.Equal(t, []ackCall{tt.want}, ack.recorded())
		})
	}
}

func TestConsume_ClosedDeliveriesEndLoop(t *testing.T) {
	ack := &fakeAcknowledger{}
	var handled int
	c := newTestConsumer(func(context.Context, []byte) error {
		handled++
		return nil
	})

	msgs := make(chan amqp.Delivery, 2)
	msgs <- amqp.Delivery{Acknowledger: ack, Body: []byte(`{}`)}
	msgs <- amqp.Delivery{Acknowledger: ack, Body: []byte(`{}`)}
	close(msgs)

	c.consume(context.Background(), msgs)
	waitOrFail(t, c)

	assert.Equal(t, 2, handled)
	assert.Len(t, ack.recorded(), 2)
}

func TestConsume_WaitCoversMessageInProgress(t *testing.T) {
	ack := &fakeAcknowledger{}
	started := make(chan struct{})
	release := make(chan struct{})
	c := newTestConsumer(func(context.Context, []byte) error {
		close(started)
		<-release
		return nil
	})

	msgs := make(chan amqp.Delivery, 1)
	msgs <- amqp.Delivery{Acknowledger: ack, Body: []byte(`{}`)}
	ctx, cancel := context.WithCancel(context.Background())
	c.consume(ctx, msgs)

	<-started
	cancel()

	waited := make(chan struct{})
	go func() {
		c.wait()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("wait returned while a message was still being handled")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatal("wait did not return after the handler finished")
	}
	assert.Equal(t, []ackCall{{acked: true}}, ack.recorded())
}

func TestConsume_CancelledContextEndsLoop(t *testing.T) {
	c := newTestConsumer(func(context.Context, []byte) error { return nil })
	ctx, cancel := context.WithCancel(context.Background())

	c.consume(ctx, make(chan amqp.Delivery))
	cancel()

	waitOrFail(t, c)
}

func TestWait_WithoutConsumeReturns(t *testing.T) {
	c := newTestConsumer(nil)
	c.wait()
	require.NoError(t, c.Close())
}

func waitOrFail(t *testing.T, c *Consumer) {
	t.Helper()
	waited := make(chan struct{})
	go func() {
		c.wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatal("delivery loop did not exit")
	}
}
