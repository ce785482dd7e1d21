package workerpool

import (
	"sync"
	"testing"
	"time"
)

func intp(v int) *int { return &v }

func startedPool(t *testing.T, threads, maxJobs int) *Pool {
	t.Helper()
	p := New(Config{Name: "test", Threads: threads, MaxJobs: maxJobs})
	p.Start()
	return p
}

func TestAddWork_RunsQueuedJobs(t *testing.T) {
	p := startedPool(t, 2, 0)
	defer p.Free()

	var mu sync.Mutex
	var seen []int
	for i := 0; i < 5; i++ {
		i := i
		if err := p.AddWork(func(any) {
			mu.Lock()
			seen = append(seen, i)
			mu.Unlock()
		}, nil, nil); err != nil {
			t.Fatalf("AddWork: %v", err)
		}
	}
	p.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 5 {
		t.Fatalf("got %d completions, want 5", len(seen))
	}
}

// TestPriorityOrder reproduces spec scenario S2: a single-threaded pool
// busy executing a long sleeper, with A (no priority), B(10), C(5), D(10)
// enqueued while busy. Expected post-sleep dispatch order: B, D, C, A.
func TestPriorityOrder(t *testing.T) {
	p := New(Config{Name: "s2", Threads: 1, MaxJobs: 0})
	p.Start()
	defer p.Free()

	started := make(chan struct{})
	release := make(chan struct{})
	if err := p.AddWork(func(any) {
		close(started)
		<-release
	}, nil, nil); err != nil {
		t.Fatal(err)
	}
	<-started

	var mu sync.Mutex
	var order []string
	record := func(name string) Fn {
		return func(any) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	if err := p.AddWork(record("A"), nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := p.AddWork(record("B"), nil, intp(10)); err != nil {
		t.Fatal(err)
	}
	if err := p.AddWork(record("C"), nil, intp(5)); err != nil {
		t.Fatal(err)
	}
	if err := p.AddWork(record("D"), nil, intp(10)); err != nil {
		t.Fatal(err)
	}

	close(release)
	p.Wait()

	mu.Lock()
	defer mu.Unlock()
	want := []string{"B", "D", "C", "A"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestAddWork_BlocksAtCapacityThenAdmits(t *testing.T) {
	p := New(Config{Name: "bounded", Threads: 1, MaxJobs: 1})
	p.Start()
	defer p.Free()

	started := make(chan struct{})
	release := make(chan struct{})
	if err := p.AddWork(func(any) {
		close(started)
		<-release
	}, nil, nil); err != nil {
		t.Fatal(err)
	}
	<-started

	if err := p.AddWork(func(any) {}, nil, nil); err != nil {
		t.Fatal(err)
	}

	admitted := make(chan struct{})
	go func() {
		if err := p.AddWork(func(any) {}, nil, nil); err != nil {
			t.Error(err)
		}
		close(admitted)
	}()

	select {
	case <-admitted:
		t.Fatal("AddWork admitted a third job while queue was at capacity")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-admitted:
	case <-time.After(time.Second):
		t.Fatal("AddWork never unblocked after capacity freed up")
	}
}

func TestTryWork_NeverBlocksAtCapacity(t *testing.T) {
	p := New(Config{Name: "try", Threads: 1, MaxJobs: 1})
	p.Start()
	defer p.Free()

	started := make(chan struct{})
	release := make(chan struct{})
	p.AddWork(func(any) {
		close(started)
		<-release
	}, nil, nil)
	<-started

	if !p.TryWork(func(any) {}, nil, nil) {
		t.Fatal("expected first TryWork to be admitted (queue empty)")
	}
	if p.TryWork(func(any) {}, nil, nil) {
		t.Fatal("expected second TryWork to be rejected at capacity")
	}
	close(release)
}

func TestStop_RetainsQueuedJobsUntilRestart(t *testing.T) {
	p := New(Config{Name: "stoppable", Threads: 1, MaxJobs: 0})
	p.Start()

	ran := make(chan struct{}, 1)
	p.Stop()
	if err := p.AddWork(func(any) { ran <- struct{}{} }, nil, nil); err != nil {
		t.Fatal(err)
	}

	select {
	case <-ran:
		t.Fatal("job ran while pool was Stopped")
	case <-time.After(50 * time.Millisecond):
	}

	p.Start()
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("queued job never ran after restart")
	}
	p.Free()
}

func TestFree_AbandonsQueuedJobs(t *testing.T) {
	p := New(Config{Name: "freed", Threads: 1, MaxJobs: 0})
	p.Start()

	started := make(chan struct{})
	release := make(chan struct{})
	p.AddWork(func(any) {
		close(started)
		<-release
	}, nil, nil)
	<-started

	ran := false
	p.AddWork(func(any) { ran = true }, nil, nil)

	close(release)
	p.Free()

	if ran {
		t.Fatal("queued job ran despite Free abandoning the queue")
	}
	if err := p.AddWork(func(any) {}, nil, nil); err != ErrDeleted {
		t.Fatalf("AddWork after Free = %v, want ErrDeleted", err)
	}
}

func TestWait_BlocksUntilQueueAndWorkingAreZero(t *testing.T) {
	p := startedPool(t, 4, 0)
	defer p.Free()

	var n int32 = 50
	for i := 0; i < int(n); i++ {
		p.AddWork(func(any) { time.Sleep(time.Millisecond) }, nil, nil)
	}
	p.Wait()
	if q, w := p.Queued(), p.Working(); q != 0 || w != 0 {
		t.Fatalf("after Wait: queued=%d working=%d, want 0,0", q, w)
	}
}
