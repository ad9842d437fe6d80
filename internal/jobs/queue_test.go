package jobs

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest(sub string) EnqueueRequest {
	return EnqueueRequest{
		Source:    "scan",
		DedupeKey: sub,
		Payload: Payload{
			SubtitleFile: sub,
			TargetLang:   "vi",
			OutputFile:   sub + ".vi.srt",
		},
	}
}

func TestEnqueue_DedupesActiveJobs(t *testing.T) {
	q := NewQueue(1, nil)
	defer q.Stop()

	first, created := q.Enqueue(testRequest("/media/show.srt"))
	require.True(t, created)

	second, created := q.Enqueue(testRequest("/media/show.srt"))
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	other, created := q.Enqueue(testRequest("/media/other.srt"))
	assert.True(t, created)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestQueue_ExecutesEnqueuedJobs(t *testing.T) {
	q := NewQueue(2, nil)
	defer q.Stop()

	var mu sync.Mutex
	seen := make(map[string]bool)
	q.Start(func(_ context.Context, job *Job) error {
		mu.Lock()
		seen[job.Payload.SubtitleFile] = true
		mu.Unlock()
		return nil
	})

	a, _ := q.Enqueue(testRequest("/media/a.srt"))
	b, _ := q.Enqueue(testRequest("/media/b.srt"))

	require.Eventually(t, func() bool {
		ja, _ := q.Get(a.ID)
		jb, _ := q.Get(b.ID)
		return ja.Status == StatusSuccess && jb.Status == StatusSuccess
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, seen["/media/a.srt"])
	assert.True(t, seen["/media/b.srt"])
}

func TestQueue_FailedJobKeepsErrorMessage(t *testing.T) {
	q := NewQueue(1, nil)
	defer q.Stop()

	q.Start(func(context.Context, *Job) error {
		return assert.AnError
	})

	job, _ := q.Enqueue(testRequest("/media/broken.srt"))
	require.Eventually(t, func() bool {
		j, _ := q.Get(job.ID)
		return j.Status == StatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	j, ok := q.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, assert.AnError.Error(), j.Error)
}

func TestQueue_DedupeReleasedAfterCompletion(t *testing.T) {
	q := NewQueue(1, nil)
	defer q.Stop()

	q.Start(func(context.Context, *Job) error { return nil })

	first, created := q.Enqueue(testRequest("/media/show.srt"))
	require.True(t, created)
	require.Eventually(t, func() bool {
		j, _ := q.Get(first.ID)
		return j.Status == StatusSuccess
	}, 2*time.Second, 10*time.Millisecond)

	second, created := q.Enqueue(testRequest("/media/show.srt"))
	assert.True(t, created, "finished jobs must not block re-enqueueing")
	assert.NotEqual(t, first.ID, second.ID)
}

func TestEnqueuePendingID_OverflowGivesUpOnStop(t *testing.T) {
	q := NewQueue(1, nil)

	for range cap(q.pendingIDs) {
		q.pendingIDs <- "filler"
	}

	before := runtime.NumGoroutine()
	q.enqueuePendingID("overflow")
	q.Stop()

	// the handoff goroutine must exit once the queue stops
	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, 2*time.Second, 10*time.Millisecond)
}

func TestQueue_HydratesPendingJobsFromStore(t *testing.T) {
	dbPath := t.TempDir() + "/jobs.db"

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	q := NewQueue(1, store)
	pending, _ := q.Enqueue(testRequest("/media/pending.srt"))
	q.Stop()
	require.NoError(t, store.Close())

	// a job caught mid-run by a restart comes back as pending
	store2, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store2.Close()

	running := *pending
	running.Status = StatusRunning
	require.NoError(t, store2.UpsertJob(context.Background(), &running))

	q2 := NewQueue(1, store2)
	defer q2.Stop()

	restored, ok := q2.Get(pending.ID)
	require.True(t, ok)
	assert.Equal(t, StatusPending, restored.Status)
	assert.Equal(t, "/media/pending.srt", restored.Payload.SubtitleFile)

	// dedupe survives the restart too
	_, created := q2.Enqueue(testRequest("/media/pending.srt"))
	assert.False(t, created)
}
