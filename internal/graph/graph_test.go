package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStageIsEmpty(t *testing.T) {
	r := New()
	s := r.NewStage()
	require.NoError(t, r.Finalize())
	sg := r.StageGraph(s)
	assert.Empty(t, sg.Nodes)
	assert.Empty(t, sg.Independent)
}

func TestAddFunctionNodeIndependents(t *testing.T) {
	r := New()
	s := r.NewStage()

	var order []string
	a := r.AddFunctionNode(s, func() { order = append(order, "a") })
	b := r.AddFunctionNode(s, func() { order = append(order, "b") }, a)
	r.AddFunctionNode(s, func() { order = append(order, "c") }, a, b)

	require.NoError(t, r.Finalize())
	sg := r.StageGraph(s)

	require.Len(t, sg.Nodes, 3)
	assert.Equal(t, []int{0}, sg.Independent)
	assert.Equal(t, 0, sg.Nodes[0].StaticDeps)
	assert.Equal(t, 1, sg.Nodes[1].StaticDeps)
	assert.Equal(t, 2, sg.Nodes[2].StaticDeps)
	assert.Equal(t, []int{1, 2}, sg.Nodes[0].Dependants)
	assert.Equal(t, []int{2}, sg.Nodes[1].Dependants)
}

func TestAddStageNodeAcrossMachine(t *testing.T) {
	r := New()
	phys := r.NewStage()
	logic := r.NewStage()
	net := r.NewStage()

	r.AddFunctionNode(phys, func() {})
	r.AddFunctionNode(logic, func() {})
	r.AddFunctionNode(net, func() {})

	m := r.NewMachine()
	physNode := r.AddStageNode(m, phys)
	logicNode := r.AddStageNode(m, logic)
	netNode := r.AddStageNode(m, net)
	r.AddStageNode(m, phys, logicNode, netNode) // sync_ln-ish placeholder using phys stage again
	_ = physNode

	require.NoError(t, r.Finalize())
	mg := r.MachineGraph(m)
	require.Len(t, mg.Nodes, 4)
	assert.ElementsMatch(t, []int{0, 1, 2}, mg.Independent)
	assert.Equal(t, 2, mg.Nodes[3].StaticDeps)
}

func TestAddFunctionNodeUnknownStagePanics(t *testing.T) {
	r := New()
	other := New()
	s := other.NewStage()
	assert.Panics(t, func() {
		r.AddFunctionNode(s, func() {})
	})
}

func TestAddFunctionNodeAfterFinalizePanics(t *testing.T) {
	r := New()
	s := r.NewStage()
	require.NoError(t, r.Finalize())
	assert.Panics(t, func() {
		r.AddFunctionNode(s, func() {})
	})
}

func TestSetInitialMachine(t *testing.T) {
	r := New()
	m := r.NewMachine()
	r.SetInitialMachine(m)
	got, ok := r.InitialMachine()
	require.True(t, ok)
	assert.Equal(t, m, got)
}

func TestInitialMachineUnsetByDefault(t *testing.T) {
	r := New()
	_, ok := r.InitialMachine()
	assert.False(t, ok)
}
