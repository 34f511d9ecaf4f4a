// Package graph implements the registry: the two-level DAG model of the
// scheduler. Stage graphs hold function nodes; machine graphs hold stage
// nodes. The registry is built once, by calls to AddFunctionNode and
// AddStageNode, and frozen by Finalize before the first machine execution,
// per the invariants in spec.md §3.
//
// Grounded in the teacher's internal/dag package (types.go, build.go,
// utils.go's detectCycles) and in original_source/source/main.cpp's
// executable_graph / link_node model.
package graph

import "fmt"

// StageID identifies a stage: a DAG of parameterless functions.
type StageID uint32

// MachineID identifies a machine: a DAG of stages.
type MachineID uint32

// FuncRef references a previously-registered function node within a stage.
// It can only be obtained from AddFunctionNode, so a caller can never name a
// node that doesn't exist yet — dependency edges are therefore constructed
// in topological order by the type system itself, and the function graph
// can't contain a forward reference. See DESIGN.md for why this makes cycle
// detection at Finalize a defense-in-depth check rather than a load-bearing
// one.
type FuncRef struct {
	stage StageID
	index int
}

// StageNodeRef references a previously-registered stage node within a
// machine, with the same forward-reference-proof shape as FuncRef.
type StageNodeRef struct {
	machine MachineID
	index   int
}

type funcNode struct {
	fn         func()
	staticDeps int
	dependants []int
}

type funcGraph struct {
	nodes       []funcNode
	independent []int
}

type stageNode struct {
	stage      StageID
	staticDeps int
	dependants []int
}

type stageGraph struct {
	nodes       []stageNode
	independent []int
}

// Registry holds every stage graph and machine graph declared for a
// program. It is safe to build up from a single goroutine during
// registration; after Finalize it is read-only and safe for concurrent
// readers (the scheduler never mutates it again, per invariant 1).
type Registry struct {
	stages   map[StageID]*funcGraph
	machines map[MachineID]*stageGraph

	nextStage   StageID
	nextMachine MachineID

	initial    MachineID
	hasInitial bool

	finalized bool
}

// New creates an empty, unfrozen registry.
func New() *Registry {
	return &Registry{
		stages:   make(map[StageID]*funcGraph),
		machines: make(map[MachineID]*stageGraph),
	}
}

// NewStage creates a new, empty stage and returns its identity.
func (r *Registry) NewStage() StageID {
	id := r.nextStage
	r.nextStage++
	r.stages[id] = &funcGraph{}
	return id
}

// NewMachine creates a new, empty machine and returns its identity.
func (r *Registry) NewMachine() MachineID {
	id := r.nextMachine
	r.nextMachine++
	r.machines[id] = &stageGraph{}
	return id
}

// AddFunctionNode registers fn as a node of stage, depending on the given
// previously-registered function nodes of the same stage. It panics if
// called after Finalize or against an unknown stage — both indicate a
// programming error in the registration sequence, not a runtime condition.
func (r *Registry) AddFunctionNode(stage StageID, fn func(), deps ...FuncRef) FuncRef {
	if r.finalized {
		panic("graph: AddFunctionNode called after Finalize")
	}
	g, ok := r.stages[stage]
	if !ok {
		panic("graph: unknown stage")
	}

	g.nodes = append(g.nodes, funcNode{fn: fn, staticDeps: len(deps)})
	idx := len(g.nodes) - 1

	for _, dep := range deps {
		if dep.stage != stage {
			panic("graph: dependency belongs to a different stage")
		}
		g.nodes[dep.index].dependants = append(g.nodes[dep.index].dependants, idx)
	}

	return FuncRef{stage: stage, index: idx}
}

// AddStageNode registers stage as a node of machine, depending on the given
// previously-registered stage nodes of the same machine.
func (r *Registry) AddStageNode(machine MachineID, stage StageID, deps ...StageNodeRef) StageNodeRef {
	if r.finalized {
		panic("graph: AddStageNode called after Finalize")
	}
	if _, ok := r.stages[stage]; !ok {
		panic("graph: unknown stage")
	}
	g, ok := r.machines[machine]
	if !ok {
		panic("graph: unknown machine")
	}

	g.nodes = append(g.nodes, stageNode{stage: stage, staticDeps: len(deps)})
	idx := len(g.nodes) - 1

	for _, dep := range deps {
		if dep.machine != machine {
			panic("graph: dependency belongs to a different machine")
		}
		g.nodes[dep.index].dependants = append(g.nodes[dep.index].dependants, idx)
	}

	return StageNodeRef{machine: machine, index: idx}
}

// SetInitialMachine designates the machine the runtime enters first.
func (r *Registry) SetInitialMachine(m MachineID) {
	if _, ok := r.machines[m]; !ok {
		panic("graph: unknown machine")
	}
	r.initial = m
	r.hasInitial = true
}

// InitialMachine returns the designated initial machine, if any.
func (r *Registry) InitialMachine() (MachineID, bool) {
	return r.initial, r.hasInitial
}

// Finalize computes, for every stage and machine graph, the list of
// independent nodes (static dependency count zero) and verifies both
// levels are acyclic. It must be called before the first machine
// execution; the registry is read-only afterward, and calls after a
// successful Finalize are no-ops.
func (r *Registry) Finalize() error {
	if r.finalized {
		return nil
	}

	for id, g := range r.stages {
		if err := detectFuncCycle(g); err != nil {
			return fmt.Errorf("graph: stage %d: %w", id, err)
		}
		g.independent = g.independent[:0]
		for i, n := range g.nodes {
			if n.staticDeps == 0 {
				g.independent = append(g.independent, i)
			}
		}
	}

	for id, g := range r.machines {
		if err := detectStageCycle(g); err != nil {
			return fmt.Errorf("graph: machine %d: %w", id, err)
		}
		g.independent = g.independent[:0]
		for i, n := range g.nodes {
			if n.staticDeps == 0 {
				g.independent = append(g.independent, i)
			}
		}
	}

	r.finalized = true
	return nil
}

// Finalized reports whether Finalize has run.
func (r *Registry) Finalized() bool {
	return r.finalized
}

func detectFuncCycle(g *funcGraph) error {
	visiting := make([]bool, len(g.nodes))
	visited := make([]bool, len(g.nodes))

	var visit func(i int) error
	visit = func(i int) error {
		visiting[i] = true
		for _, dep := range g.nodes[i].dependants {
			if visiting[dep] {
				return fmt.Errorf("cycle detected at function node %d", dep)
			}
			if !visited[dep] {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		visiting[i] = false
		visited[i] = true
		return nil
	}

	for i := range g.nodes {
		if !visited[i] {
			if err := visit(i); err != nil {
				return err
			}
		}
	}
	return nil
}

func detectStageCycle(g *stageGraph) error {
	visiting := make([]bool, len(g.nodes))
	visited := make([]bool, len(g.nodes))

	var visit func(i int) error
	visit = func(i int) error {
		visiting[i] = true
		for _, dep := range g.nodes[i].dependants {
			if visiting[dep] {
				return fmt.Errorf("cycle detected at stage node %d", dep)
			}
			if !visited[dep] {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		visiting[i] = false
		visited[i] = true
		return nil
	}

	for i := range g.nodes {
		if !visited[i] {
			if err := visit(i); err != nil {
				return err
			}
		}
	}
	return nil
}
