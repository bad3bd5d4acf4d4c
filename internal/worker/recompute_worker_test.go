package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashrecon/internal/amqp"
)

type fakeRestater struct {
	mu       sync.Mutex
	handled  []string
	sweeps   []int
	sweepErr error
	handle   func(msg *amqp.ReportSubmittedMessage) (bool, error)
}

func (f *fakeRestater) HandleReportSubmitted(_ context.Context, msg *amqp.ReportSubmittedMessage) (bool, error) {
	f.mu.Lock()
	f.handled = append(f.handled, msg.ReportID)
	f.mu.Unlock()
	if f.handle != nil {
		return f.handle(msg)
	}
	return false, nil
}

func (f *fakeRestater) SweepOutdated(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sweepErr != nil {
		return 0, f.sweepErr
	}
	if len(f.sweeps) == 0 {
		return 0, nil
	}
	n := f.sweeps[0]
	f.sweeps = f.sweeps[1:]
	return n, nil
}

func (f *fakeRestater) handledIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.handled...)
}

type fakeConsumer struct {
	msgs []*amqp.ReportSubmittedMessage
	errs []error
	err  error
}

func (c *fakeConsumer) ConsumeReportSubmitted(ctx context.Context, handler func(context.Context, *amqp.ReportSubmittedMessage) error) error {
	for _, m := range c.msgs {
		c.errs = append(c.errs, handler(ctx, m))
	}
	if c.err != nil {
		return c.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestHandleMessage(t *testing.T) {
	r := &fakeRestater{handle: func(msg *amqp.ReportSubmittedMessage) (bool, error) {
		if msg.ReportID == "broken" {
			return false, errors.New("db down")
		}
		return msg.ReportID == "drifted", nil
	}}
	w := NewRecomputeWorker(r, nil, time.Minute, nil)
	ctx := context.Background()

	assert.NoError(t, w.HandleMessage(ctx, &amqp.ReportSubmittedMessage{ReportID: "fresh"}))
	assert.NoError(t, w.HandleMessage(ctx, &amqp.ReportSubmittedMessage{ReportID: "drifted"}))
	err := w.HandleMessage(ctx, &amqp.ReportSubmittedMessage{ReportID: "broken"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Equal(t, []string{"fresh", "drifted", "broken"}, r.handledIDs())
}

func TestStartupSweep(t *testing.T) {
	tests := []struct {
		name      string
		sweeps    []int
		wantLeft  int
		sweepErr  error
		wantError bool
	}{
		{name: "stops on empty batch", sweeps: []int{3, 2, 0, 7}, wantLeft: 1},
		{name: "bounded number of batches", sweeps: []int{1, 1, 1, 1, 1, 1, 1}, wantLeft: 2},
		{name: "nothing to do", sweeps: nil, wantLeft: 0},
		{name: "sweep error", sweepErr: errors.New("db down"), wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRestater{sweeps: tt.sweeps, sweepErr: tt.sweepErr}
			w := NewRecomputeWorker(r, nil, time.Minute, nil)

			err := w.StartupSweep(context.Background())
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, r.sweeps, tt.wantLeft)
		})
	}
}

func TestRunConsumesUntilCancelled(t *testing.T) {
	r := &fakeRestater{}
	c := &fakeConsumer{msgs: []*amqp.ReportSubmittedMessage{{ReportID: "r1"}, {ReportID: "r2"}}}
	w := NewRecomputeWorker(r, c, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return len(r.handledIDs()) == 2 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestRunReturnsConsumerFailure(t *testing.T) {
	c := &fakeConsumer{err: errors.New("channel closed")}
	w := NewRecomputeWorker(&fakeRestater{}, c, time.Hour, nil)

	err := w.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel closed")
}

func TestRunSweepsPeriodicallyWithoutBroker(t *testing.T) {
	r := &fakeRestater{sweeps: []int{0, 4, 0}}
	w := NewRecomputeWorker(r, nil, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.sweeps) == 0
	}, time.Second, 5*time.Millisecond)
}
