package main

import (
	"fmt"
	"net"
	"net/http"

	"github.com/vk/vine/internal/graph"
	"github.com/vk/vine/internal/httptask"
	"github.com/vk/vine/internal/runtime"
)

// startDemoHTTPServer starts a tiny loopback HTTP server for the demo's
// net.a function to call through httptask, so the demo exercises Issue
// and Join against a real I/O-bound task instead of a bare sleep. The
// returned stop func shuts the server down.
func startDemoHTTPServer() (url string, stop func(), err error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "pong")
	})
	srv := &http.Server{Handler: mux}
	go srv.Serve(ln)

	url = "http://" + ln.Addr().String() + "/ping"
	stop = func() { srv.Close() }
	return url, stop, nil
}

// buildDemoGraph wires the three worked examples from spec.md §8 into one
// registry, chained by machine swap (S5): "hello world" (S1) runs first,
// swaps into the "diamond" (S3), which swaps into the "two-level diamond"
// (S4), whose last function requests shutdown. The two-level diamond's
// net.a function issues a real HTTP GET through netClient against
// pingURL to demonstrate the task queue (P4, P5, S6) end to end.
func buildDemoGraph(eng **runtime.Engine, netClient *httptask.Client, pingURL string) *graph.Registry {
	reg := graph.New()

	helloWorld := reg.NewMachine()
	diamond := reg.NewMachine()
	twoLevel := reg.NewMachine()

	greet := reg.NewStage()
	hello := reg.AddFunctionNode(greet, func() { fmt.Println("Hello") })
	reg.AddFunctionNode(greet, func() {
		fmt.Println("World!")
		(*eng).SetMachine(diamond)
	}, hello)
	reg.AddStageNode(helloWorld, greet)

	shape := reg.NewStage()
	top := reg.AddFunctionNode(shape, func() { fmt.Println("top") })
	left := reg.AddFunctionNode(shape, func() { fmt.Println("left") }, top)
	right := reg.AddFunctionNode(shape, func() { fmt.Println("right") }, top)
	reg.AddFunctionNode(shape, func() {
		fmt.Println("bot")
		(*eng).SetMachine(twoLevel)
	}, left, right)
	reg.AddStageNode(diamond, shape)

	phys := reg.NewStage()
	reg.AddFunctionNode(phys, func() { fmt.Println("phys.a") })
	logic := reg.NewStage()
	reg.AddFunctionNode(logic, func() { fmt.Println("logic.a") })
	net := reg.NewStage()
	reg.AddFunctionNode(net, func() {
		result := &httptask.Result{}
		p := (*eng).Issue(netClient.Get(pingURL), result)
		p.Join()
		if result.Err != nil {
			fmt.Println("net.a: request failed:", result.Err)
			return
		}
		fmt.Println("net.a:", result.Body)
	})
	syncLN := reg.NewStage()
	reg.AddFunctionNode(syncLN, func() { fmt.Println("sync_ln") })
	syncLP := reg.NewStage()
	reg.AddFunctionNode(syncLP, func() {
		fmt.Println("sync_lp")
		(*eng).RequestShutdown()
	})

	physNode := reg.AddStageNode(twoLevel, phys)
	logicNode := reg.AddStageNode(twoLevel, logic)
	netNode := reg.AddStageNode(twoLevel, net)
	reg.AddStageNode(twoLevel, syncLN, logicNode, netNode)
	reg.AddStageNode(twoLevel, syncLP, logicNode, physNode)

	reg.SetInitialMachine(helloWorld)
	return reg
}
