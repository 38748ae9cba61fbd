package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BatmanBruc/bat-bot-renamer/internal/batch"
	"github.com/BatmanBruc/bat-bot-renamer/internal/messages"
)

type fakeRunner struct {
	mu      sync.Mutex
	calls   []int64
	err     error
	release chan struct{}
}

func (r *fakeRunner) Process(ctx context.Context, uid, _ int64) (batch.Summary, error) {
	r.mu.Lock()
	r.calls = append(r.calls, uid)
	r.mu.Unlock()
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return batch.Summary{Cancelled: true}, nil
		}
	}
	return batch.Summary{RunID: "run", Success: r.err == nil}, r.err
}

type fakeNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (n *fakeNotifier) Notify(_ context.Context, _ int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
	return nil
}

func (n *fakeNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.texts...)
}

func TestEnqueueBatchRejectsDuplicates(t *testing.T) {
	require := require.New(t)

	runner := &fakeRunner{release: make(chan struct{})}
	s := NewScheduler(runner, &fakeNotifier{}, Config{Workers: 2})
	s.Start()

	require.True(s.EnqueueBatch(1, 10))
	require.False(s.EnqueueBatch(1, 10))
	require.True(s.InFlight(1))
	require.True(s.EnqueueBatch(2, 20))

	close(runner.release)
	require.Eventually(func() bool { return !s.InFlight(1) && !s.InFlight(2) }, time.Second, 5*time.Millisecond)
	require.True(s.EnqueueBatch(1, 10))

	s.Stop()
	require.False(s.EnqueueBatch(3, 30))
}

func TestEnqueueBeforeStart(t *testing.T) {
	s := NewScheduler(&fakeRunner{}, &fakeNotifier{}, Config{})
	require.False(t, s.EnqueueBatch(1, 10))
}

func TestStopCancelsRunningBatches(t *testing.T) {
	require := require.New(t)

	runner := &fakeRunner{release: make(chan struct{})}
	s := NewScheduler(runner, &fakeNotifier{}, Config{Workers: 1})
	s.Start()
	require.True(s.EnqueueBatch(1, 10))
	require.Eventually(func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		return len(runner.calls) == 1
	}, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return")
	}
	require.False(s.InFlight(1))
}

func TestFailureNotifiesUser(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"no files", &batch.PreconditionError{Reason: batch.ReasonNoFiles}, messages.NoFiles()},
		{"name mismatch", &batch.PreconditionError{Reason: batch.ReasonNameMismatch, Files: 5, Names: 4}, messages.NameMismatch(4, 5)},
		{"missing config", &batch.PreconditionError{Reason: batch.ReasonMissingConfig}, messages.MissingConfig()},
		{"busy", &batch.PreconditionError{Reason: batch.ReasonBusy}, messages.BatchAlreadyRunning()},
		{"fatal before status", &batch.FatalError{Step: "load queue", Err: errors.New("redis down")}, messages.ErrorDefault()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			notifier := &fakeNotifier{}
			s := NewScheduler(&fakeRunner{err: tt.err}, notifier, Config{})
			s.Start()
			defer s.Stop()

			require.True(s.EnqueueBatch(1, 10))
			require.Eventually(func() bool { return len(notifier.sent()) == 1 }, time.Second, 5*time.Millisecond)
			require.Equal(tt.want, notifier.sent()[0])
		})
	}
}

func TestUserMessageSilentAfterStatus(t *testing.T) {
	require := require.New(t)

	_, ok := userMessage(&batch.FatalError{Step: "upload", Err: errors.New("x")})
	require.False(ok)

	_, ok = userMessage(&batch.IncompleteTransferError{File: "a.mkv"})
	require.False(ok)
}

func TestCancelQueuedBatch(t *testing.T) {
	require := require.New(t)

	runner := &fakeRunner{release: make(chan struct{})}
	s := NewScheduler(runner, &fakeNotifier{}, Config{Workers: 1})
	s.Start()
	defer s.Stop()

	require.True(s.EnqueueBatch(1, 10))
	require.Eventually(func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		return len(runner.calls) == 1
	}, time.Second, 5*time.Millisecond)

	require.True(s.EnqueueBatch(2, 20))
	require.False(s.CancelQueued(1))
	require.True(s.CancelQueued(2))
	require.False(s.InFlight(2))
	require.False(s.CancelQueued(2))

	close(runner.release)
	require.Eventually(func() bool { return !s.InFlight(1) }, time.Second, 5*time.Millisecond)
	require.Never(func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		return len(runner.calls) > 1
	}, 50*time.Millisecond, 5*time.Millisecond)

	require.True(s.EnqueueBatch(2, 20))
	require.Eventually(func() bool { return !s.InFlight(2) }, time.Second, 5*time.Millisecond)
	runner.mu.Lock()
	require.Equal([]int64{1, 2}, runner.calls)
	runner.mu.Unlock()
}

func TestStopWhileEnqueueing(t *testing.T) {
	require := require.New(t)

	s := NewScheduler(&fakeRunner{}, &fakeNotifier{}, Config{Workers: 2})
	s.Start()

	var wg sync.WaitGroup
	for i := int64(0); i < 32; i++ {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			s.EnqueueBatch(uid, uid)
		}(i)
	}
	s.Stop()
	wg.Wait()

	for i := int64(0); i < 32; i++ {
		require.False(s.InFlight(i))
	}
}
