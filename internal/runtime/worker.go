package runtime

import (
	"github.com/vk/vine/internal/glocal"
	"github.com/vk/vine/internal/graph"
)

// worker is the per-thread loop of the worker pool (C4). It strictly
// prefers function work to task work — tasks are only drained while the
// function queue is empty, so they never starve machine execution — and
// broadcasts doneCV whenever it observes the machine has quiesced.
//
// Grounded in original_source/source/main.cpp's thread_worker_loop and the
// teacher's dag.Executor.worker, translated from unique_lock's explicit
// early unlock into structured scope-based unlock/relock, per spec.md §9.
func (e *Engine) worker(id int) {
	e.workerIDs.Store(glocal.ID(), id)
	defer e.wg.Done()

	for {
		e.q.Lock()

		for len(e.funcQueue) == 0 && len(e.taskQueue) == 0 && !e.poolTerminate {
			if e.funcsInflightTotal.Load() == 0 {
				e.doneCV.Broadcast()
			}
			e.workCV.Wait()
		}

		if e.poolTerminate {
			e.q.Unlock()
			return
		}

		if len(e.funcQueue) > 0 {
			fl := e.funcQueue[0]
			e.funcQueue = e.funcQueue[1:]
			e.q.Unlock()

			e.runFunction(fl)
			continue
		}

		ti := e.taskQueue[0]
		e.taskQueue = e.taskQueue[1:]
		e.q.Unlock()

		e.runTask(ti)
	}
}

func (e *Engine) runFunction(fl funcLocant) {
	sn := e.machine.Nodes[fl.stageIdx]
	sg := e.reg.StageGraph(sn.Stage)
	fn := sg.Nodes[fl.funcIdx].Fn

	fn()

	e.releaseFunction(fl, sn, sg)
}

// releaseFunction implements the dependency-release algorithm of spec.md
// §4.2: decrement the completing function's own in-flight count, unblock
// its intra-stage dependants, and — only once the stage's last function
// has finished — unblock the stage's inter-stage dependants by seeding
// their independent functions.
func (e *Engine) releaseFunction(fl funcLocant, sn graph.StageNode, sg graph.StageGraphView) {
	funcNode := sg.Nodes[fl.funcIdx]

	e.q.Lock()

	e.funcsInflight[fl.stageIdx]--
	e.funcsInflightTotal.Add(-1)

	if len(funcNode.Dependants) > 0 {
		for _, dep := range funcNode.Dependants {
			e.funcRemaining[fl.stageIdx][dep]--
			if e.funcRemaining[fl.stageIdx][dep] == 0 {
				e.funcQueue = append(e.funcQueue, funcLocant{stageIdx: fl.stageIdx, funcIdx: dep})
				e.funcsInflight[fl.stageIdx]++
				e.funcsInflightTotal.Add(1)
			}
		}
	} else if e.funcsInflight[fl.stageIdx] == 0 {
		for _, depStageIdx := range sn.Dependants {
			e.stageRemaining[depStageIdx]--
			if e.stageRemaining[depStageIdx] != 0 {
				continue
			}
			depSN := e.machine.Nodes[depStageIdx]
			depSG := e.reg.StageGraph(depSN.Stage)
			for _, f := range depSG.Independent {
				e.funcQueue = append(e.funcQueue, funcLocant{stageIdx: depStageIdx, funcIdx: f})
				e.funcsInflight[depStageIdx]++
				e.funcsInflightTotal.Add(1)
			}
		}
	}

	e.workCV.Broadcast()
	e.q.Unlock()
}

func (e *Engine) runTask(ti taskItem) {
	ti.fn(ti.arg)
	ti.resolver.Resolve()
	e.emit(EventTaskCompleted, 0)
}
