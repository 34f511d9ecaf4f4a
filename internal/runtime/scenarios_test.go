package runtime_test

import (
	"context"
	"io"
	"log/slog"
	stdruntime "runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/vine/internal/ctxlog"
	"github.com/vk/vine/internal/graph"
	"github.com/vk/vine/internal/runtime"
)

func discardCtx() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// TestHelloWorldOrdering covers scenario S1: world depends on hello and
// requests shutdown once it runs; the process must observe hello before
// world and MainLoop must return.
func TestHelloWorldOrdering(t *testing.T) {
	reg := graph.New()
	s := reg.NewStage()

	var mu sync.Mutex
	var out []string
	var eng *runtime.Engine

	hello := reg.AddFunctionNode(s, func() {
		mu.Lock()
		out = append(out, "Hello")
		mu.Unlock()
	})
	reg.AddFunctionNode(s, func() {
		mu.Lock()
		out = append(out, "World!")
		mu.Unlock()
		eng.RequestShutdown()
	}, hello)

	m := reg.NewMachine()
	reg.AddStageNode(m, s)
	reg.SetInitialMachine(m)

	eng = runtime.New(reg)
	require.NoError(t, eng.MainLoop(discardCtx()))

	assert.Equal(t, []string{"Hello", "World!"}, out)
}

// TestDiamondOrdering covers scenario S3: top runs before left/right, both
// of which run before bot; left and right themselves are unordered.
func TestDiamondOrdering(t *testing.T) {
	reg := graph.New()
	s := reg.NewStage()

	var mu sync.Mutex
	var out []string
	var eng *runtime.Engine
	record := func(name string) func() {
		return func() {
			mu.Lock()
			out = append(out, name)
			mu.Unlock()
		}
	}

	top := reg.AddFunctionNode(s, record("top"))
	left := reg.AddFunctionNode(s, record("left"), top)
	right := reg.AddFunctionNode(s, record("right"), top)
	reg.AddFunctionNode(s, func() {
		mu.Lock()
		out = append(out, "bot")
		mu.Unlock()
		eng.RequestShutdown()
	}, left, right)

	m := reg.NewMachine()
	reg.AddStageNode(m, s)
	reg.SetInitialMachine(m)

	eng = runtime.New(reg)
	require.NoError(t, eng.MainLoop(discardCtx()))

	require.NotEmpty(t, out)
	assert.Equal(t, "top", out[0])
	assert.Equal(t, "bot", out[len(out)-1])
	assert.Contains(t, out, "left")
	assert.Contains(t, out, "right")
}

// TestTwoLevelDiamond covers scenario S4: sync_ln and sync_lp each depend
// on multiple independent stages; every function of logic/net must finish
// before sync_ln starts, and every function of logic/phys before sync_lp.
func TestTwoLevelDiamond(t *testing.T) {
	reg := graph.New()
	phys := reg.NewStage()
	logic := reg.NewStage()
	net := reg.NewStage()
	syncLN := reg.NewStage()
	syncLP := reg.NewStage()

	var mu sync.Mutex
	var out []string
	var eng *runtime.Engine
	record := func(name string) func() {
		return func() {
			mu.Lock()
			out = append(out, name)
			mu.Unlock()
		}
	}

	reg.AddFunctionNode(phys, record("phys.a"))
	reg.AddFunctionNode(logic, record("logic.a"))
	reg.AddFunctionNode(net, record("net.a"))
	reg.AddFunctionNode(syncLN, record("sync_ln"))
	reg.AddFunctionNode(syncLP, func() {
		mu.Lock()
		out = append(out, "sync_lp")
		mu.Unlock()
		eng.RequestShutdown()
	})

	m := reg.NewMachine()
	physNode := reg.AddStageNode(m, phys)
	logicNode := reg.AddStageNode(m, logic)
	netNode := reg.AddStageNode(m, net)
	reg.AddStageNode(m, syncLN, logicNode, netNode)
	reg.AddStageNode(m, syncLP, logicNode, physNode)
	reg.SetInitialMachine(m)

	eng = runtime.New(reg)
	require.NoError(t, eng.MainLoop(discardCtx()))

	pos := make(map[string]int, len(out))
	for i, name := range out {
		pos[name] = i
	}
	for _, base := range []string{"phys.a", "logic.a", "net.a"} {
		assert.Less(t, pos[base], pos["sync_ln"], "%s must precede sync_ln", base)
	}
	assert.Less(t, pos["phys.a"], pos["sync_lp"])
	assert.Less(t, pos["logic.a"], pos["sync_lp"])
}

// TestMachineSwap covers scenario S5: M1 swaps to M2, M2 shuts down; each
// runs exactly once, in order.
func TestMachineSwap(t *testing.T) {
	reg := graph.New()
	s1 := reg.NewStage()
	s2 := reg.NewStage()

	var mu sync.Mutex
	var out []string
	var eng *runtime.Engine

	m1 := reg.NewMachine()
	m2 := reg.NewMachine()

	reg.AddFunctionNode(s1, func() {
		mu.Lock()
		out = append(out, "m1")
		mu.Unlock()
		eng.SetMachine(m2)
	})
	reg.AddFunctionNode(s2, func() {
		mu.Lock()
		out = append(out, "m2")
		mu.Unlock()
		eng.RequestShutdown()
	})

	reg.AddStageNode(m1, s1)
	reg.AddStageNode(m2, s2)
	reg.SetInitialMachine(m1)

	eng = runtime.New(reg)
	require.NoError(t, eng.MainLoop(discardCtx()))

	assert.Equal(t, []string{"m1", "m2"}, out)
}

// TestIssueTaskDuringExecution covers P4/P5: tasks submitted during a
// machine execution complete exactly once and never block the caller.
// Joining on a task from within a node function requires a second
// worker free to drain the task queue, so this needs a pool of at least
// two threads.
func TestIssueTaskDuringExecution(t *testing.T) {
	if stdruntime.NumCPU() < 2 {
		t.Skip("requires at least 2 CPUs to avoid a single-worker self-join deadlock")
	}

	reg := graph.New()
	s := reg.NewStage()

	var eng *runtime.Engine
	var counter atomic.Int64

	const taskCount = 20
	done := make(chan struct{})

	reg.AddFunctionNode(s, func() {
		var ps []interface {
			Completed() bool
			Join()
		}
		for i := 0; i < taskCount; i++ {
			p := eng.Issue(func(arg any) {
				counter.Add(arg.(int64))
			}, int64(1))
			ps = append(ps, p)
		}
		for _, p := range ps {
			p.Join()
		}
		close(done)
		eng.RequestShutdown()
	})

	m := reg.NewMachine()
	reg.AddStageNode(m, s)
	reg.SetInitialMachine(m)

	eng = runtime.New(reg, runtime.WithMaxThreads(4))
	require.NoError(t, eng.MainLoop(discardCtx()))

	<-done
	assert.Equal(t, int64(taskCount), counter.Load())
}

// TestSetMachineDeferredUntilCompletion covers P6: swapping mid-execution
// has no effect until the running machine finishes.
func TestSetMachineDeferredUntilCompletion(t *testing.T) {
	reg := graph.New()
	s1 := reg.NewStage()
	s2 := reg.NewStage()

	var mu sync.Mutex
	var out []string
	var eng *runtime.Engine
	started := make(chan struct{})
	release := make(chan struct{})

	m1 := reg.NewMachine()
	m2 := reg.NewMachine()

	reg.AddFunctionNode(s1, func() {
		close(started)
		<-release
		mu.Lock()
		out = append(out, "m1")
		mu.Unlock()
	})
	reg.AddFunctionNode(s2, func() {
		mu.Lock()
		out = append(out, "m2")
		mu.Unlock()
		eng.RequestShutdown()
	})

	reg.AddStageNode(m1, s1)
	reg.AddStageNode(m2, s2)
	reg.SetInitialMachine(m1)

	eng = runtime.New(reg)

	go func() {
		<-started
		eng.SetMachine(m2)
		mu.Lock()
		stillM1 := len(out) == 0
		mu.Unlock()
		assert.True(t, stillM1, "queuing m2 must not affect the running m1 execution")
		close(release)
	}()

	require.NoError(t, eng.MainLoop(discardCtx()))
	assert.Equal(t, []string{"m1", "m2"}, out)
}
