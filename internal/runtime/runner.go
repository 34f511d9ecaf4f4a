package runtime

import "github.com/vk/vine/internal/graph"

// RunOnce drives one execution of machine: it resets and seeds the
// per-execution counters, wakes the worker pool, and blocks until the
// machine quiesces (spec.md §4.4). Every node of a reachable stage runs
// exactly once per call (P1); consecutive calls are fully ordered by the
// caller (invariant 7) so no synchronization is needed against a prior
// execution's stragglers — there are none by the time RunOnce returns.
func (e *Engine) RunOnce(m graph.MachineID) {
	mg := e.reg.MachineGraph(m)

	e.q.Lock()

	e.machine = mg
	n := len(mg.Nodes)
	e.stageRemaining = make([]int, n)
	e.funcRemaining = make([][]int, n)
	e.funcsInflight = make([]int32, n)
	e.funcsInflightTotal.Store(0)

	for i, sn := range mg.Nodes {
		e.stageRemaining[i] = sn.StaticDeps
		sg := e.reg.StageGraph(sn.Stage)
		remaining := make([]int, len(sg.Nodes))
		for j, fn := range sg.Nodes {
			remaining[j] = fn.StaticDeps
		}
		e.funcRemaining[i] = remaining
	}

	for i, sn := range mg.Nodes {
		if e.stageRemaining[i] != 0 {
			continue
		}
		sg := e.reg.StageGraph(sn.Stage)
		for _, f := range sg.Independent {
			e.funcQueue = append(e.funcQueue, funcLocant{stageIdx: i, funcIdx: f})
			e.funcsInflight[i]++
			e.funcsInflightTotal.Add(1)
		}
	}

	e.workCV.Broadcast()

	for !(len(e.funcQueue) == 0 && e.funcsInflightTotal.Load() == 0) {
		e.doneCV.Wait()
	}

	e.q.Unlock()
}
