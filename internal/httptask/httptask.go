// Package httptask is a small library of ready-to-Issue task functions
// that perform asynchronous HTTP calls using resty.dev/v3. The teacher's
// go.mod lists resty.dev/v3 as an indirect dependency but no package in
// the teacher ever imports it; this package is where it is actually
// wired, giving the task queue (internal/task, internal/runtime) a
// realistic I/O-bound workload instead of a bare sleep.
package httptask

import (
	"fmt"

	"resty.dev/v3"

	"github.com/vk/vine/internal/task"
)

// Result is the argument a Get task.Func expects: a pointer to a Result
// it fills in once the request completes.
type Result struct {
	StatusCode int
	Body       string
	Err        error
}

// Client wraps a resty.Client and hands out task.Func values bound to it.
type Client struct {
	rc *resty.Client
}

// NewClient builds a Client with resty's default transport settings.
func NewClient() *Client {
	return &Client{rc: resty.New()}
}

// Close releases the underlying HTTP transport's idle connections.
func (c *Client) Close() error {
	return c.rc.Close()
}

// Get returns a task.Func that performs a GET against url and records the
// outcome into the *Result passed as Issue's arg. Submit it with:
//
//	result := &httptask.Result{}
//	p := engine.Issue(client.Get(url), result)
//	p.Join()
func (c *Client) Get(url string) task.Func {
	return func(arg any) {
		result, ok := arg.(*Result)
		if !ok {
			panic(fmt.Sprintf("httptask: Get task issued with arg of type %T, want *httptask.Result", arg))
		}

		resp, err := c.rc.R().Get(url)
		if err != nil {
			result.Err = err
			return
		}
		result.StatusCode = resp.StatusCode()
		result.Body = resp.String()
	}
}
