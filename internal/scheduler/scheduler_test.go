package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"leaddesk_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type testSchedulerConfig struct {
	redisURL string
	queue    string
}

func (c testSchedulerConfig) GetRedisURL() string       { return c.redisURL }
func (c testSchedulerConfig) GetRedisTLSInsecure() bool { return false }
func (c testSchedulerConfig) GetAsynqQueueName() string { return c.queue }
func (c testSchedulerConfig) GetAsynqConcurrency() int  { return 1 }

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := NewClient(testSchedulerConfig{
		redisURL: "redis://" + mr.Addr(),
		queue:    "succession",
	})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func pendingSweeps(t *testing.T, mr *miniredis.Miniredis) int64 {
	t.Helper()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	n, err := rdb.LLen(context.Background(), "asynq:{succession}:pending").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		t.Fatalf("failed to inspect pending queue: %v", err)
	}
	return n
}

func TestEnqueueSuccessionSweep(t *testing.T) {
	client, mr := newTestClient(t)

	err := client.EnqueueSuccessionSweep(context.Background(), SuccessionSweepPayload{
		OrganizationID: uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("EnqueueSuccessionSweep returned error: %v", err)
	}

	if n := pendingSweeps(t, mr); n != 1 {
		t.Fatalf("pending sweeps = %d, want 1", n)
	}
}

func TestEnqueueSuccessionSweepDeduplicates(t *testing.T) {
	client, mr := newTestClient(t)

	payload := SuccessionSweepPayload{OrganizationID: uuid.NewString()}
	for range 3 {
		if err := client.EnqueueSuccessionSweep(context.Background(), payload); err != nil {
			t.Fatalf("EnqueueSuccessionSweep returned error: %v", err)
		}
	}

	if n := pendingSweeps(t, mr); n != 1 {
		t.Fatalf("re-enqueueing the same organization must not stack sweeps, pending = %d", n)
	}

	other := SuccessionSweepPayload{OrganizationID: uuid.NewString()}
	if err := client.EnqueueSuccessionSweep(context.Background(), other); err != nil {
		t.Fatalf("EnqueueSuccessionSweep returned error: %v", err)
	}
	if n := pendingSweeps(t, mr); n != 2 {
		t.Fatalf("distinct organizations must enqueue independently, pending = %d", n)
	}
}

func TestSuccessionSweepTaskRoundTrip(t *testing.T) {
	orgID := uuid.NewString()

	task, err := NewSuccessionSweepTask(SuccessionSweepPayload{OrganizationID: orgID})
	if err != nil {
		t.Fatalf("NewSuccessionSweepTask returned error: %v", err)
	}
	if task.Type() != TaskSuccessionSweep {
		t.Fatalf("task type = %q, want %q", task.Type(), TaskSuccessionSweep)
	}

	payload, err := ParseSuccessionSweepPayload(task)
	if err != nil {
		t.Fatalf("ParseSuccessionSweepPayload returned error: %v", err)
	}
	if payload.OrganizationID != orgID {
		t.Fatalf("organization = %q, want %q", payload.OrganizationID, orgID)
	}
}

type fakeEnqueuer struct {
	payloads []SuccessionSweepPayload
	err      error
}

func (f *fakeEnqueuer) EnqueueSuccessionSweep(_ context.Context, payload SuccessionSweepPayload) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

type fakeLister struct {
	orgs []uuid.UUID
	err  error
}

func (f *fakeLister) OrganizationsDue(_ context.Context) ([]uuid.UUID, error) {
	return f.orgs, f.err
}

type testSweepConfig struct {
	interval time.Duration
}

func (c testSweepConfig) GetSweepInterval() time.Duration         { return c.interval }
func (c testSweepConfig) GetSweepCandidateTimeout() time.Duration { return time.Second }
func (c testSweepConfig) GetSweepConcurrency() int                { return 1 }

func TestDispatchEnqueuesPerOrganization(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	orgA, orgB := uuid.New(), uuid.New()
	dispatcher := NewSweepDispatcher(enqueuer, &fakeLister{orgs: []uuid.UUID{orgA, orgB}},
		testSweepConfig{interval: time.Minute}, logger.New("development"))

	dispatcher.dispatch(context.Background())

	if len(enqueuer.payloads) != 2 {
		t.Fatalf("enqueued %d sweeps, want 2", len(enqueuer.payloads))
	}
	if enqueuer.payloads[0].OrganizationID != orgA.String() || enqueuer.payloads[1].OrganizationID != orgB.String() {
		t.Fatalf("unexpected payloads: %+v", enqueuer.payloads)
	}
}

func TestDispatchToleratesListerFailure(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	dispatcher := NewSweepDispatcher(enqueuer, &fakeLister{err: errors.New("database offline")},
		testSweepConfig{interval: time.Minute}, logger.New("development"))

	dispatcher.dispatch(context.Background())

	if len(enqueuer.payloads) != 0 {
		t.Fatalf("no sweeps must be enqueued when the lister fails, got %d", len(enqueuer.payloads))
	}
}
