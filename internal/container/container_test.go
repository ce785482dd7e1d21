package container

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"iotcore/internal/component"
	"iotcore/internal/configsrc/memory"
	"iotcore/internal/configsrc/yamlkv"
	"iotcore/internal/scheduler"
)

func freshContainer(t *testing.T) *Container {
	t.Helper()
	resetRegistryForTest()
	RegisterBuiltinFactories()
	return New("test")
}

// TestContainerLifecycle reproduces spec scenario S1: register the three
// built-in factories, add a Logger, a Worker pool wired to that Logger,
// and a Scheduler targeting the pool, start, observe Running, stop,
// observe Stopped, then free.
func TestContainerLifecycle(t *testing.T) {
	c := freshContainer(t)

	if _, err := c.AddComponent("log", TypeLogger, map[string]string{"Level": "Info"}); err != nil {
		t.Fatalf("add log: %v", err)
	}
	if _, err := c.AddComponent("pool", TypeWorkerPool, map[string]string{"Threads": "2", "MaxJobs": "4", "Logger": "log"}); err != nil {
		t.Fatalf("add pool: %v", err)
	}
	if _, err := c.AddComponent("sch", TypeScheduler, map[string]string{"ThreadPool": "pool", "Logger": "log"}); err != nil {
		t.Fatalf("add sch: %v", err)
	}

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, snap := range c.List() {
		if snap.State != "Running" {
			t.Fatalf("%s: state = %s, want Running", snap.Name, snap.State)
		}
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	for _, snap := range c.List() {
		if snap.State != "Stopped" {
			t.Fatalf("%s: state = %s, want Stopped", snap.Name, snap.State)
		}
	}

	if err := c.Free(); err != nil {
		t.Fatalf("Free: %v", err)
	}
}

// TestFactoryDuplicate reproduces spec scenario S6: the first
// registration for a type name wins; a later registration is silently
// ignored.
func TestFactoryDuplicate(t *testing.T) {
	resetRegistryForTest()

	var built string
	first := NewFactory("T", "test", func(*Container, map[string]string) (Component, error) {
		built = "first"
		return component.New("inst", nil, nil, component.Hooks{}, nil), nil
	}, nil)
	second := NewFactory("T", "test", func(*Container, map[string]string) (Component, error) {
		built = "second"
		return component.New("inst", nil, nil, component.Hooks{}, nil), nil
	}, nil)

	if !RegisterFactory(first) {
		t.Fatal("first registration should succeed")
	}
	if RegisterFactory(second) {
		t.Fatal("second registration of the same type should be rejected")
	}

	c := New("dup")
	if _, err := c.AddComponent("inst", "T", nil); err != nil {
		t.Fatalf("AddComponent: %v", err)
	}
	if built != "first" {
		t.Fatalf("built = %q, want %q (first registration should win)", built, "first")
	}
}

func TestAddComponent_UnknownFactory(t *testing.T) {
	c := freshContainer(t)
	if _, err := c.AddComponent("x", "NoSuchType", nil); err == nil {
		t.Fatal("expected an error for an unregistered type")
	}
}

func TestAddComponent_DuplicateName(t *testing.T) {
	c := freshContainer(t)
	if _, err := c.AddComponent("log", TypeLogger, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := c.AddComponent("log", TypeLogger, nil); err == nil {
		t.Fatal("expected an error registering a duplicate instance name")
	}
}

func TestRemoveComponent_StopsTrackingIt(t *testing.T) {
	c := freshContainer(t)
	if _, err := c.AddComponent("log", TypeLogger, nil); err != nil {
		t.Fatal(err)
	}
	if err := c.RemoveComponent("log"); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Find("log"); ok {
		t.Fatal("expected log to be gone after RemoveComponent")
	}
	if len(c.List()) != 0 {
		t.Fatal("expected an empty snapshot after removing the only component")
	}
}

func TestStart_OrderIsInsertionOrder(t *testing.T) {
	c := freshContainer(t)
	c.AddComponent("a", TypeLogger, nil)
	c.AddComponent("b", TypeLogger, nil)
	c.AddComponent("c", TypeLogger, nil)

	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	snaps := c.List()
	if len(snaps) != 3 || snaps[0].Name != "a" || snaps[1].Name != "b" || snaps[2].Name != "c" {
		t.Fatalf("List order = %v, want insertion order a,b,c", snaps)
	}
	c.Free()
}

func TestReconfigure_UnknownInstanceReturnsFalse(t *testing.T) {
	c := freshContainer(t)
	if c.Reconfigure("nope", map[string]string{"Level": "Debug"}) {
		t.Fatal("expected Reconfigure on an unknown instance to report false")
	}
}

// TestInit_LoadsFromLoader exercises the full Loader/Parser path: a
// master map naming one Logger instance, loaded and parsed from a
// memory.Store, matching spec §6's two-stage (master, then per-instance)
// load sequence.
func TestInit_LoadsFromLoader(t *testing.T) {
	c := freshContainer(t)
	store := memory.New()
	ctx := context.Background()

	store.Save(ctx, c.Name(), "demo", "log: Logger\n")
	store.Save(ctx, "log", "demo", "Level: Debug\n")

	c.SetConfig(store, yamlkv.Parser{}, "demo", store)
	if err := c.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, ok := c.Find("log"); !ok {
		t.Fatal("expected Init to have registered the log instance")
	}
}

func TestInit_NoLoaderConfigured(t *testing.T) {
	c := freshContainer(t)
	if err := c.Init(context.Background()); err != ErrNoLoader {
		t.Fatalf("Init: err = %v, want ErrNoLoader", err)
	}
}

func TestInit_MissingMasterConfig(t *testing.T) {
	c := freshContainer(t)
	store := memory.New()
	c.SetConfig(store, yamlkv.Parser{}, "demo", store)
	if err := c.Init(context.Background()); err == nil {
		t.Fatal("expected an error when the master map is missing")
	}
}

// TestInit_SkipsBadInstanceButContinues reproduces the "report and
// skip, don't abort" behavior for a single malformed instance entry.
func TestInit_SkipsBadInstanceButContinues(t *testing.T) {
	c := freshContainer(t)
	store := memory.New()
	ctx := context.Background()
	store.Save(ctx, c.Name(), "demo", "good: Logger\nbad: NoSuchType\n")
	store.Save(ctx, "good", "demo", "Level: Info\n")
	store.Save(ctx, "bad", "demo", "Level: Info\n")

	c.SetConfig(store, yamlkv.Parser{}, "demo", store)
	if err := c.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, ok := c.Find("good"); !ok {
		t.Fatal("expected the good instance to be registered")
	}
	if _, ok := c.Find("bad"); ok {
		t.Fatal("expected the bad instance to be skipped")
	}
}

// TestContainerLifecycle_SchedulerDispatchesAddedBeforeStart guards
// against the Scheduler's dispatchCond never being woken by Container.Start:
// a schedule added while the container is still Initial must fire once the
// container starts.
func TestContainerLifecycle_SchedulerDispatchesAddedBeforeStart(t *testing.T) {
	c := freshContainer(t)
	if _, err := c.AddComponent("pool", TypeWorkerPool, map[string]string{"Threads": "1", "MaxJobs": "4"}); err != nil {
		t.Fatalf("add pool: %v", err)
	}
	if _, err := c.AddComponent("sch", TypeScheduler, map[string]string{"ThreadPool": "pool"}); err != nil {
		t.Fatalf("add sch: %v", err)
	}

	comp, ok := c.Find("sch")
	if !ok {
		t.Fatal("expected to find sch")
	}
	sch := comp.(*scheduler.Scheduler)

	var fired atomic.Bool
	entry := sch.Create(func(any) { fired.Store(true) }, nil, nil, uint64(time.Millisecond), 0, 1, nil, nil)
	if !sch.Add(entry) {
		t.Fatal("expected Add to succeed before Start")
	}

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Free()

	waitForCondition(t, fired.Load)
}

// TestContainerLifecycle_SchedulerResumesAfterRestart guards against
// Container.Stop/Start silently killing dispatch forever: a repeating
// schedule must resume firing after the container is stopped and started
// again.
func TestContainerLifecycle_SchedulerResumesAfterRestart(t *testing.T) {
	c := freshContainer(t)
	if _, err := c.AddComponent("pool", TypeWorkerPool, map[string]string{"Threads": "1", "MaxJobs": "4"}); err != nil {
		t.Fatalf("add pool: %v", err)
	}
	if _, err := c.AddComponent("sch", TypeScheduler, map[string]string{"ThreadPool": "pool"}); err != nil {
		t.Fatalf("add sch: %v", err)
	}

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	comp, ok := c.Find("sch")
	if !ok {
		t.Fatal("expected to find sch")
	}
	sch := comp.(*scheduler.Scheduler)

	var count atomic.Int64
	entry := sch.Create(func(any) { count.Add(1) }, nil, nil, uint64(5*time.Millisecond), 0, 0, nil, nil)
	if !sch.Add(entry) {
		t.Fatal("expected Add to succeed")
	}

	waitForCondition(t, func() bool { return count.Load() > 0 })

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	stopped := count.Load()
	time.Sleep(30 * time.Millisecond)
	if count.Load() != stopped {
		t.Fatalf("schedule kept firing while the container was stopped: before=%d after=%d", stopped, count.Load())
	}

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Free()

	waitForCondition(t, func() bool { return count.Load() > stopped })
}

func waitForCondition(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not satisfied within timeout")
}
