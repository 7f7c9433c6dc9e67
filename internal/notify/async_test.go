package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type chanNotifier struct {
	got chan Alert
}

func (c *chanNotifier) Notify(ctx context.Context, a Alert) error {
	c.got <- a
	return nil
}

func TestAsync_DeliversInBackground(t *testing.T) {
	inner := &chanNotifier{got: make(chan Alert, 1)}
	async := NewAsync(inner, 4, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = async.Run(ctx) }()

	alert := sampleAlert(AlertNearEnd)
	assert.NoError(t, async.Notify(context.Background(), alert))

	select {
	case got := <-inner.got:
		assert.Equal(t, alert.ID, got.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("alert not delivered")
	}
}

func TestAsync_DropsWhenFull(t *testing.T) {
	async := NewAsync(Log{}, 1, time.Second)
	assert.NoError(t, async.Notify(context.Background(), sampleAlert(AlertNearEnd)))
	assert.NoError(t, async.Notify(context.Background(), sampleAlert(AlertEnded)))
	assert.Len(t, async.queue, 1)
}

func TestAsync_DrainDeliversQueuedAlerts(t *testing.T) {
	inner := &chanNotifier{got: make(chan Alert, 4)}
	async := NewAsync(inner, 4, time.Second)
	assert.NoError(t, async.Notify(context.Background(), sampleAlert(AlertNearEnd)))
	assert.NoError(t, async.Notify(context.Background(), sampleAlert(AlertEnded)))

	assert.Equal(t, 2, async.Drain(context.Background()))
	assert.Len(t, inner.got, 2)
	assert.Equal(t, 0, async.Drain(context.Background()))
}
