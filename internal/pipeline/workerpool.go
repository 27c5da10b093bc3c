package pipeline

import (
	"sync"

	"github.com/camilladsp-go/camilladsp/internal/audio"
)

// parallelGroup is a set of FilterSteps bounded by mixer/processor
// boundaries, each task owning a disjoint set of channels (spec.md §4.2
// "multithreaded"). tasks[i] is the filter step dispatched as task i;
// within a task, filters stay strictly ordered.
type parallelGroup struct {
	tasks []*FilterStep
}

// groupFilterSteps partitions consecutive runs of FilterSteps into
// parallelGroups, one group per maximal run between mixer/processor
// steps. Non-filter steps remain in the top-level step list and are run
// synchronously between groups.
func groupFilterSteps(steps []Step) []*parallelGroup {
	var groups []*parallelGroup
	var current *parallelGroup
	for _, s := range steps {
		if fs, ok := s.(*FilterStep); ok {
			if current == nil {
				current = &parallelGroup{}
			}
			current.tasks = append(current.tasks, fs)
			continue
		}
		if current != nil {
			groups = append(groups, current)
			current = nil
		}
	}
	if current != nil {
		groups = append(groups, current)
	}
	return groups
}

// runGrouped evaluates p.steps in order, dispatching each maximal run of
// consecutive FilterSteps to the worker pool as one parallel group and
// running everything else synchronously in between.
func (p *Pipeline) runGrouped(c *audio.Chunk) {
	groupIdx := 0
	i := 0
	for i < len(p.steps) {
		if _, ok := p.steps[i].(*FilterStep); ok {
			group := p.groups[groupIdx]
			groupIdx++
			p.pool.RunGroup(group, c)
			i += len(group.tasks)
			continue
		}
		p.steps[i].apply(c)
		i++
	}
}

// WorkerPool dispatches FilterStep tasks from a parallel group to N
// worker goroutines and blocks the caller until every task in the group
// has completed (spec.md §4.4 "Worker pool").
type WorkerPool struct {
	submit chan func()
	wg     sync.WaitGroup
	done   chan struct{}
}

// NewWorkerPool starts n long-lived worker goroutines pulling from a
// shared submit channel.
func NewWorkerPool(n int) *WorkerPool {
	wp := &WorkerPool{
		submit: make(chan func()),
		done:   make(chan struct{}),
	}
	for i := 0; i < n; i++ {
		go wp.workerLoop()
	}
	return wp
}

func (wp *WorkerPool) workerLoop() {
	for {
		select {
		case task, ok := <-wp.submit:
			if !ok {
				return
			}
			task()
			wp.wg.Done()
		case <-wp.done:
			return
		}
	}
}

// RunGroup submits every task in the group and blocks until all have
// signaled completion — the submit/complete-count barrier the Processing
// task suspends on (spec.md §5 "worker-pool barrier").
func (wp *WorkerPool) RunGroup(g *parallelGroup, c *audio.Chunk) {
	wp.wg.Add(len(g.tasks))
	for _, task := range g.tasks {
		t := task
		wp.submit <- func() { t.apply(c) }
	}
	wp.wg.Wait()
}

// Close stops all worker goroutines.
func (wp *WorkerPool) Close() {
	close(wp.done)
}
