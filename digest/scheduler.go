//
// Tencent is pleased to support the open source community by making trpc-chat-digest available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-chat-digest is licensed under the Apache License Version 2.0.
//
//

package digest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/spaolacci/murmur3"

	"trpc.group/trpc-go/trpc-chat-digest/log"
	"trpc.group/trpc-go/trpc-chat-digest/store"
)

// Scheduler defaults.
const (
	DefaultPollInterval = time.Minute
	DefaultWorkers      = 4
	DefaultQueueSize    = 16
	DefaultRunTimeout   = 5 * time.Minute
)

// Scheduler triggers digest runs at each group's configured interval.
// Runs are sharded by group id so one group's digests never interleave,
// while different groups run in parallel on a bounded worker pool.
type Scheduler struct {
	store  store.Service
	runner *Runner

	pollInterval time.Duration
	workers      int
	queueSize    int
	runTimeout   time.Duration

	pool     *ants.Pool
	jobChans []chan string
	nextRun  map[string]time.Time
	now      func() time.Time

	mu       sync.Mutex
	started  bool
	stopped  bool
	stopCh   chan struct{}
	stopOnce sync.Once
	pollWg   sync.WaitGroup
	workerWg sync.WaitGroup
}

// SchedulerOpt is the option for a Scheduler.
type SchedulerOpt func(*Scheduler)

// WithPollInterval overrides how often group records are re-read.
func WithPollInterval(interval time.Duration) SchedulerOpt {
	return func(s *Scheduler) {
		if interval > 0 {
			s.pollInterval = interval
		}
	}
}

// WithWorkers overrides the worker pool size.
func WithWorkers(workers int) SchedulerOpt {
	return func(s *Scheduler) {
		if workers > 0 {
			s.workers = workers
		}
	}
}

// WithQueueSize overrides the per-shard job queue size.
func WithQueueSize(size int) SchedulerOpt {
	return func(s *Scheduler) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithRunTimeout bounds one scheduled digest run. Zero disables the
// bound.
func WithRunTimeout(timeout time.Duration) SchedulerOpt {
	return func(s *Scheduler) {
		s.runTimeout = timeout
	}
}

// NewScheduler creates a scheduler over a store and a runner.
func NewScheduler(svc store.Service, runner *Runner, opts ...SchedulerOpt) (*Scheduler, error) {
	if svc == nil {
		return nil, errors.New("digest scheduler requires a store")
	}
	if runner == nil {
		return nil, errors.New("digest scheduler requires a runner")
	}
	s := &Scheduler{
		store:        svc,
		runner:       runner,
		pollInterval: DefaultPollInterval,
		workers:      DefaultWorkers,
		queueSize:    DefaultQueueSize,
		runTimeout:   DefaultRunTimeout,
		nextRun:      make(map[string]time.Time),
		now:          time.Now,
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start launches the worker pool and the polling loop. The context
// bounds store reads during polling; cancelling it stops scheduling new
// runs but Stop is still required to release the workers.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("digest scheduler already started")
	}

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return fmt.Errorf("failed to create digest worker pool: %w", err)
	}
	s.pool = pool

	s.jobChans = make([]chan string, s.workers)
	for i := range s.jobChans {
		s.jobChans[i] = make(chan string, s.queueSize)
	}
	for _, ch := range s.jobChans {
		jobCh := ch
		s.workerWg.Add(1)
		if err := s.pool.Submit(func() { s.drainJobs(jobCh) }); err != nil {
			s.workerWg.Done()
			s.pool.Release()
			return fmt.Errorf("failed to submit digest worker: %w", err)
		}
	}

	s.pollWg.Add(1)
	go s.pollLoop(ctx)

	s.started = true
	return nil
}

// Trigger enqueues one immediate digest run for a group.
func (s *Scheduler) Trigger(groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.stopped {
		return errors.New("digest scheduler is not running")
	}
	if !s.tryEnqueue(groupID) {
		return fmt.Errorf("digest queue for group %s is full", groupID)
	}
	return nil
}

// Stop drains the pending runs and releases the workers. Safe to call
// more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.pollWg.Wait()

		s.mu.Lock()
		s.stopped = true
		for _, ch := range s.jobChans {
			close(ch)
		}
		s.mu.Unlock()

		s.workerWg.Wait()
		if s.pool != nil {
			s.pool.Release()
		}
	})
}

func (s *Scheduler) pollLoop(ctx context.Context) {
	defer s.pollWg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			log.Infof("digest scheduler context done, scheduling paused: %v", ctx.Err())
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick re-reads the group records and enqueues every group whose next
// run is due. A group seen for the first time is scheduled one interval
// out rather than immediately.
func (s *Scheduler) tick(ctx context.Context) {
	groups, err := s.store.ListGroups(ctx)
	if err != nil {
		log.Errorf("digest scheduler list groups: %v", err)
		return
	}
	now := s.now()

	seen := make(map[string]struct{}, len(groups))
	for _, group := range groups {
		if group.DigestInterval <= 0 {
			continue
		}
		seen[group.ID] = struct{}{}

		next, ok := s.nextRun[group.ID]
		if !ok {
			s.nextRun[group.ID] = now.Add(group.DigestInterval)
			continue
		}
		if now.Before(next) {
			continue
		}
		s.nextRun[group.ID] = now.Add(group.DigestInterval)

		s.mu.Lock()
		enqueued := !s.stopped && s.tryEnqueue(group.ID)
		s.mu.Unlock()
		if !enqueued {
			log.Warnf("digest queue is full, skipping scheduled run for group %s", group.ID)
		}
	}
	// Forget groups that disappeared or disabled scheduling.
	for id := range s.nextRun {
		if _, ok := seen[id]; !ok {
			delete(s.nextRun, id)
		}
	}
}

// tryEnqueue places a run on the group's shard without blocking. The
// caller must hold s.mu.
func (s *Scheduler) tryEnqueue(groupID string) (ok bool) {
	// Sending on a closed channel panics when racing a Stop, fall back
	// to dropping the run.
	defer func() {
		if r := recover(); r != nil {
			log.Warnf("digest job channel may be closed, dropping run for group %s: %v", groupID, r)
			ok = false
		}
	}()

	index := shardIndex(groupID, len(s.jobChans))
	select {
	case s.jobChans[index] <- groupID:
		return true
	default:
		return false
	}
}

func shardIndex(groupID string, shards int) int {
	return int(murmur3.Sum32([]byte(groupID))) % shards
}

func (s *Scheduler) drainJobs(jobs <-chan string) {
	defer s.workerWg.Done()
	for groupID := range jobs {
		s.runGroup(groupID)
	}
}

func (s *Scheduler) runGroup(groupID string) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic in digest worker for group %s: %v", groupID, r)
		}
	}()

	ctx := context.Background()
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}
	if _, err := s.runner.Run(ctx, groupID); err != nil {
		log.Errorf("scheduled digest for group %s failed: %v", groupID, err)
	}
}
