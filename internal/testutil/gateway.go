package testutil

import (
	"context"
	"sync"

	"academic-vault/internal/av"
)

// StubGateway is an av.AIGateway returning canned responses.
// Reply computes the response; when nil, Response/Err are returned.
type StubGateway struct {
	Response string
	Err      error
	Reply    func(req av.GenerateRequest) (string, error)

	mu       sync.Mutex
	requests []av.GenerateRequest
}

var _ av.AIGateway = (*StubGateway)(nil)

// NewStubGateway returns a gateway that always answers response.
func NewStubGateway(response string) *StubGateway {
	return &StubGateway{Response: response}
}

func (g *StubGateway) Generate(ctx context.Context, req av.GenerateRequest) (string, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if g.Reply != nil {
		return g.Reply(req)
	}
	return g.Response, g.Err
}

// Requests returns the requests received so far.
func (g *StubGateway) Requests() []av.GenerateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]av.GenerateRequest(nil), g.requests...)
}

// LastRequest returns the most recent request, or the zero value.
func (g *StubGateway) LastRequest() av.GenerateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.requests) == 0 {
		return av.GenerateRequest{}
	}
	return g.requests[len(g.requests)-1]
}
