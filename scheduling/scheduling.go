// Package scheduling provides cancellable one-shot and bounded-repeat tasks.
// Owners keep their tasks in a Group so that all of them can be cancelled at
// once.
package scheduling

import (
	"context"
	"sync"
	"time"
)

// Task is a running one-shot or bounded-repeat task. Cancel it with Cancel.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func newTask(ctx context.Context, run func(ctx context.Context), onDone func(task *Task)) *Task {
	lifetime, cancel := context.WithCancel(ctx)
	task := &Task{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer func() {
			cancel()
			if onDone != nil {
				onDone(task)
			}
			close(task.done)
		}()
		run(lifetime)
	}()
	return task
}

// After runs the given function once after the delay unless the task is
// cancelled before. The context.Context passed to the function is done when
// the task is cancelled.
func After(ctx context.Context, delay time.Duration, fn func(ctx context.Context)) *Task {
	return newTask(ctx, afterRunner(delay, fn), nil)
}

// Repeat runs the given function count times. Before each iteration, it waits
// for the given interval. Iterations start at 1.
func Repeat(ctx context.Context, interval time.Duration, count int, fn func(ctx context.Context, iteration int)) *Task {
	return newTask(ctx, repeatRunner(interval, count, fn), nil)
}

func afterRunner(delay time.Duration, fn func(ctx context.Context)) func(ctx context.Context) {
	return func(ctx context.Context) {
		if !Sleep(ctx, delay) {
			return
		}
		fn(ctx)
	}
}

func repeatRunner(interval time.Duration, count int, fn func(ctx context.Context, iteration int)) func(ctx context.Context) {
	return func(ctx context.Context) {
		for i := 1; i <= count; i++ {
			if !Sleep(ctx, interval) {
				return
			}
			fn(ctx, i)
		}
	}
}

// Cancel the task. This does not wait for the task to finish, so it is safe to
// call from within the task itself.
func (t *Task) Cancel() {
	t.cancel()
}

// Done receives when the task has finished or was cancelled.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// IsDone checks whether the task has finished.
func (t *Task) IsDone() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Sleep waits for the given duration. It returns false if the
// context.Context is done before.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Group keeps track of running tasks.
type Group struct {
	lifetime context.Context
	tasks    map[*Task]struct{}
	// m locks tasks.
	m sync.Mutex
}

// NewGroup creates a Group. All tasks are cancelled when the given
// context.Context is done.
func NewGroup(lifetime context.Context) *Group {
	return &Group{
		lifetime: lifetime,
		tasks:    make(map[*Task]struct{}),
	}
}

// After starts a tracked one-shot task. See After.
func (g *Group) After(delay time.Duration, fn func(ctx context.Context)) *Task {
	return g.start(afterRunner(delay, fn))
}

// Repeat starts a tracked bounded-repeat task. See Repeat.
func (g *Group) Repeat(interval time.Duration, count int, fn func(ctx context.Context, iteration int)) *Task {
	return g.start(repeatRunner(interval, count, fn))
}

func (g *Group) start(run func(ctx context.Context)) *Task {
	g.m.Lock()
	defer g.m.Unlock()
	task := newTask(g.lifetime, run, g.forget)
	g.tasks[task] = struct{}{}
	return task
}

// forget removes the given task from tracking.
func (g *Group) forget(task *Task) {
	g.m.Lock()
	defer g.m.Unlock()
	delete(g.tasks, task)
}

// CancelAll cancels all running tasks.
func (g *Group) CancelAll() {
	g.m.Lock()
	defer g.m.Unlock()
	for task := range g.tasks {
		task.Cancel()
	}
}

// Running returns the number of tasks that are still running.
func (g *Group) Running() int {
	g.m.Lock()
	defer g.m.Unlock()
	return len(g.tasks)
}
