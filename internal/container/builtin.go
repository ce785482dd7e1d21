package container

import (
	"fmt"
	"strconv"

	"iotcore/internal/component"
	"iotcore/internal/logger"
	"iotcore/internal/scheduler"
	"iotcore/internal/workerpool"
)

// Built-in type names, matching spec §6's configuration table.
const (
	TypeLogger     = "Logger"
	TypeWorkerPool = "Worker pool"
	TypeScheduler  = "Scheduler"
)

var (
	loggerFactory     = NewFactory(TypeLogger, "logging", loggerConfigFn, nil)
	workerPoolFactory = NewFactory(TypeWorkerPool, "concurrency", workerPoolConfigFn, nil)
	schedulerFactory  = NewFactory(TypeScheduler, "concurrency", schedulerConfigFn, nil)
)

// RegisterBuiltinFactories registers the core's three component types —
// Logger, Worker pool, Scheduler — with the process-wide registry. Safe
// to call more than once or from more than one container: the registry
// is additive and idempotent on type name.
func RegisterBuiltinFactories() {
	RegisterFactory(loggerFactory)
	RegisterFactory(workerPoolFactory)
	RegisterFactory(schedulerFactory)
}

func loggerConfigFn(c *Container, cfg map[string]string) (Component, error) {
	name := cfg["Name"]
	if name == "" {
		name = "logger"
	}

	level := logger.LevelInfo
	if v, ok := cfg["Level"]; ok && v != "" {
		parsed, err := logger.ParseLevel(v)
		if err != nil {
			return nil, fmt.Errorf("logger %s: %w", name, err)
		}
		level = parsed
	}

	var next *logger.Logger
	if nextName, ok := cfg["Next"]; ok && nextName != "" {
		comp, ok := c.Find(nextName)
		if !ok {
			return nil, fmt.Errorf("logger %s: next logger %q not found", name, nextName)
		}
		l, ok := comp.(*logger.Logger)
		if !ok {
			return nil, fmt.Errorf("logger %s: next %q is not a Logger", name, nextName)
		}
		next = l
	}

	l, err := logger.New(logger.Config{
		Name:  name,
		Level: level,
		Next:  next,
		To:    cfg["To"],
	}, loggerFactory, cfg)
	if err != nil {
		return nil, err
	}

	if cfg["Start"] == "true" {
		l.SetState(component.Starting)
		l.SetState(component.Running)
	}
	return l, nil
}

func workerPoolConfigFn(c *Container, cfg map[string]string) (Component, error) {
	name := cfg["Name"]
	if name == "" {
		name = "worker pool"
	}

	threads, err := intOr(cfg, "Threads", 1)
	if err != nil {
		return nil, fmt.Errorf("worker pool %s: %w", name, err)
	}
	maxJobs, err := intOr(cfg, "MaxJobs", 0)
	if err != nil {
		return nil, fmt.Errorf("worker pool %s: %w", name, err)
	}

	var defaultPriority *int
	if v, ok := cfg["Priority"]; ok && v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("worker pool %s: Priority: %w", name, err)
		}
		defaultPriority = &p
	}

	diag, err := diagFromLoggerRef(c, cfg)
	if err != nil {
		return nil, fmt.Errorf("worker pool %s: %w", name, err)
	}

	return workerpool.New(workerpool.Config{
		Name:            name,
		Threads:         threads,
		MaxJobs:         maxJobs,
		DefaultPriority: defaultPriority,
		Diag:            diag,
		Factory:         workerPoolFactory,
	}), nil
}

func schedulerConfigFn(c *Container, cfg map[string]string) (Component, error) {
	name := cfg["Name"]
	if name == "" {
		name = "scheduler"
	}

	diag, err := diagFromLoggerRef(c, cfg)
	if err != nil {
		return nil, fmt.Errorf("scheduler %s: %w", name, err)
	}

	var defaultPool *workerpool.Pool
	if poolName, ok := cfg["ThreadPool"]; ok && poolName != "" {
		comp, ok := c.Find(poolName)
		if !ok {
			return nil, fmt.Errorf("scheduler %s: thread pool %q not found", name, poolName)
		}
		pool, ok := comp.(*workerpool.Pool)
		if !ok {
			return nil, fmt.Errorf("scheduler %s: %q is not a Worker pool", name, poolName)
		}
		defaultPool = pool
	}
	// Affinity and Priority (dispatcher thread tuning) have no portable Go
	// equivalent; accepted and otherwise ignored, matching the best-effort
	// ThreadPriority contract in internal/workerpool.

	cfgOut := scheduler.Config{
		Name:    name,
		Diag:    diag,
		Factory: schedulerFactory,
	}
	if defaultPool != nil {
		cfgOut.DefaultPool = defaultPool
	}
	return scheduler.New(cfgOut), nil
}

func diagFromLoggerRef(c *Container, cfg map[string]string) (workerpool.Diag, error) {
	name, ok := cfg["Logger"]
	if !ok || name == "" {
		return nil, nil
	}
	comp, ok := c.Find(name)
	if !ok {
		return nil, fmt.Errorf("logger %q not found", name)
	}
	l, ok := comp.(*logger.Logger)
	if !ok {
		return nil, fmt.Errorf("%q is not a Logger", name)
	}
	return l, nil
}

func intOr(cfg map[string]string, key string, def int) (int, error) {
	v, ok := cfg[key]
	if !ok || v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
