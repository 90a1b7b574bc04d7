package broker

import (
	"context"
	"encoding/json"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/task"
)

func TestRetryQueueArgs(t *testing.T) {
	args := retryQueueArgs(30000)
	if got := args["x-message-ttl"]; got != int32(30000) {
		t.Fatalf("ttl = %v", got)
	}
	if got := args["x-dead-letter-exchange"]; got != ExchangeName {
		t.Fatalf("dlx = %v", got)
	}
	if got := args["x-dead-letter-routing-key"]; got != TaskRoutingKey {
		t.Fatalf("expired retries must route back to the tasks queue, got %v", got)
	}
}

func TestTasksQueueArgs(t *testing.T) {
	args := tasksQueueArgs()
	if got := args["x-dead-letter-routing-key"]; got != FailedRoutingKey {
		t.Fatalf("rejected tasks must dead-letter to the dlq, got %v", got)
	}
}

func TestDLQPayloadStamping(t *testing.T) {
	body, err := task.Task{TaskID: "t1", RecordingID: "r1", FileURL: "u", RetryCount: 3}.DLQPayload("corrupted file")
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["status"] != "failed" || decoded["error"] != "corrupted file" {
		t.Fatalf("missing failure stamp: %v", decoded)
	}
	if decoded["task_id"] != "t1" {
		t.Fatalf("task fields lost: %v", decoded)
	}
}

// fakeAcker records acknowledgements on a delivery.
type fakeAcker struct {
	acked    bool
	requeued bool
}

func (f *fakeAcker) Ack(tag uint64, multiple bool) error { f.acked = true; return nil }
func (f *fakeAcker) Nack(tag uint64, multiple, requeue bool) error {
	f.requeued = requeue
	return nil
}
func (f *fakeAcker) Reject(tag uint64, requeue bool) error {
	f.requeued = requeue
	return nil
}

func TestDispatchAcksAfterHandlerPanic(t *testing.T) {
	acker := &fakeAcker{}
	d := amqp.Delivery{Acknowledger: acker, Body: []byte(`{"task_id":"t1"}`)}

	dispatch(t.Context(), logging.NewNop(), d, func(ctx context.Context, body []byte) {
		panic("boom")
	})

	if !acker.acked {
		t.Fatal("delivery must be acked even when the handler panics")
	}
	if acker.requeued {
		t.Fatal("delivery must never be requeued")
	}
}

func TestDispatchShieldsHandlerFromCancellation(t *testing.T) {
	acker := &fakeAcker{}
	d := amqp.Delivery{Acknowledger: acker, Body: []byte(`{"task_id":"t1"}`)}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	ran := false
	dispatch(ctx, logging.NewNop(), d, func(hctx context.Context, body []byte) {
		ran = true
		if hctx.Err() != nil {
			t.Error("in-flight task must finish its pipeline after shutdown begins")
		}
	})

	if !ran {
		t.Fatal("handler did not run")
	}
	if !acker.acked {
		t.Fatal("delivery must be acked")
	}
}

func TestClientStartsDisconnected(t *testing.T) {
	c := New(config.Broker{URL: "amqp://localhost"}, logging.NewNop())
	if c.Connected() {
		t.Fatal("new client must report disconnected")
	}
	if err := c.publish(t.Context(), TaskRoutingKey, []byte("{}")); err == nil {
		t.Fatal("publish without a connection must fail")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("closing an unconnected client: %v", err)
	}
}
