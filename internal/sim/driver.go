// Package sim implements the discrete-event engine spec.md §4.4/§9
// calls for: a small next-event-time scheduler over cooperative
// goroutine "processes" that suspend only at Timeout calls. Virtual
// time only ever advances when Driver.Run picks the next pending
// wake-up — there is no real parallelism: the driver resumes exactly
// one process at a time and waits for it to either finish or request
// its next wake-up before resuming another (spec.md §5).
//
// No pack repo carries a simpy-equivalent discrete-event-simulation
// library (see DESIGN.md); this is a minimal from-scratch engine, its
// next-event selection backed by a container/heap priority queue keyed
// on nextWake.
package sim

import (
	"container/heap"
)

// Driver multiplexes cooperative processes over virtual time and
// implements clock.Clock so any component can read Now().
type Driver struct {
	now   float64
	procs []*process
}

// New builds an empty Driver at virtual time 0.
func New() *Driver {
	return &Driver{}
}

// Now implements clock.Clock.
func (d *Driver) Now() float64 { return d.now }

type process struct {
	name     string
	done     bool
	nextWake float64
	resumeCh chan struct{}
	waitCh   chan float64
}

// processQueue is a container/heap priority queue of pending processes
// ordered by nextWake, so Driver.Run picks the next event in
// O(log n) instead of scanning every process each step.
type processQueue []*process

func (q processQueue) Len() int            { return len(q) }
func (q processQueue) Less(i, j int) bool  { return q[i].nextWake < q[j].nextWake }
func (q processQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *processQueue) Push(x interface{}) { *q = append(*q, x.(*process)) }
func (q *processQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// Proc is the handle a spawned process function uses to yield control
// back to the driver.
type Proc struct {
	driver *Driver
	self   *process
}

// Now returns the driver's current virtual time.
func (p *Proc) Now() float64 { return p.driver.now }

// Timeout suspends the calling process until dt virtual seconds have
// passed (i.e. the driver has advanced time to Now()+dt and no other
// process is running). dt must be >= 0.
func (p *Proc) Timeout(dt float64) {
	p.self.waitCh <- p.driver.now + dt
	<-p.self.resumeCh
}

// Spawn registers a cooperative process. fn runs on its own goroutine
// but the driver guarantees only one process's fn body executes at any
// instant — Timeout is the only suspension point.
func (d *Driver) Spawn(name string, fn func(p *Proc)) {
	pr := &process{
		name:     name,
		resumeCh: make(chan struct{}),
		waitCh:   make(chan float64, 1),
	}
	d.procs = append(d.procs, pr)

	proc := &Proc{driver: d, self: pr}
	go func() {
		<-pr.resumeCh
		fn(proc)
		pr.done = true
		pr.waitCh <- -1
	}()
}

// Run advances virtual time, resuming the process(es) with the
// earliest pending wake-up at each step, until no process has pending
// work at or before until. Processes that never call Timeout run to
// completion on their first resume and never block the driver again.
func (d *Driver) Run(until float64) error {
	pq := make(processQueue, 0, len(d.procs))
	for _, pr := range d.procs {
		pr.resumeCh <- struct{}{}
		wake := <-pr.waitCh
		if wake < 0 {
			pr.done = true
			continue
		}
		pr.nextWake = wake
		pq = append(pq, pr)
	}
	heap.Init(&pq)

	for pq.Len() > 0 {
		if pq[0].nextWake > until {
			break
		}
		d.now = pq[0].nextWake

		var batch []*process
		for pq.Len() > 0 && pq[0].nextWake == d.now {
			batch = append(batch, heap.Pop(&pq).(*process))
		}

		for _, pr := range batch {
			pr.resumeCh <- struct{}{}
			wake := <-pr.waitCh
			if wake < 0 {
				pr.done = true
				continue
			}
			pr.nextWake = wake
			heap.Push(&pq, pr)
		}
	}

	d.now = until
	return nil
}
