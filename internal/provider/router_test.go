package provider

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

// stubProvider is an in-memory Provider with scripted behavior.
type stubProvider struct {
	id      string
	content string
	err     error
	chunks  []string
	gotReq  *ChatRequest
}

func (s *stubProvider) ID() string   { return s.id }
func (s *stubProvider) Name() string { return s.id }

func (s *stubProvider) Chat(_ context.Context, req *ChatRequest) (*ChatResponse, error) {
	s.gotReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &ChatResponse{Content: s.content, Model: req.Model}, nil
}

func (s *stubProvider) ChatStream(_ context.Context, req *ChatRequest) (<-chan *StreamChunk, error) {
	s.gotReq = req
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan *StreamChunk, len(s.chunks)+1)
	for _, c := range s.chunks {
		ch <- &StreamChunk{Content: c}
	}
	ch <- &StreamChunk{Done: true}
	close(ch)
	return ch, nil
}

func (s *stubProvider) ListModels(context.Context) ([]Model, error) { return nil, nil }
func (s *stubProvider) HealthCheck(context.Context) error           { return nil }

func TestRouterComplete(t *testing.T) {
	r := NewRouter(zap.NewNop())
	p := &stubProvider{id: "p1", content: "answer"}
	r.Register(p, "model-a")

	out, err := r.Complete(context.Background(), "composer", "be helpful", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "answer" {
		t.Errorf("out = %q", out)
	}
	if p.gotReq.Model != "model-a" {
		t.Errorf("model = %q, want default binding", p.gotReq.Model)
	}
	if len(p.gotReq.Messages) != 2 || p.gotReq.Messages[0].Role != "system" {
		t.Errorf("messages = %+v", p.gotReq.Messages)
	}
}

func TestRouterBindRoutesCapability(t *testing.T) {
	r := NewRouter(zap.NewNop())
	def := &stubProvider{id: "default", content: "from default"}
	fast := &stubProvider{id: "fast", content: "from fast"}
	r.Register(def, "big-model")
	r.Register(fast, "small-model")
	r.Bind("intent", "fast", "small-model")

	out, err := r.Complete(context.Background(), "intent", "classify", "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "from fast" {
		t.Errorf("out = %q, want the bound provider's response", out)
	}

	out, _ = r.Complete(context.Background(), "composer", "compose", "hi")
	if out != "from default" {
		t.Errorf("unbound capability routed to %q", out)
	}
}

func TestRouterFallbackChain(t *testing.T) {
	r := NewRouter(zap.NewNop())
	broken := &stubProvider{id: "broken", err: errors.New("down")}
	backup := &stubProvider{id: "backup", content: "rescued"}
	r.Register(broken, "m1")
	r.Register(backup, "m2")
	r.SetFallbacks("composer", []string{"backup"})

	out, err := r.Complete(context.Background(), "composer", "compose", "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "rescued" {
		t.Errorf("out = %q", out)
	}
}

func TestRouterAllProvidersFailed(t *testing.T) {
	r := NewRouter(zap.NewNop())
	r.Register(&stubProvider{id: "broken", err: errors.New("down")}, "m1")

	if _, err := r.Complete(context.Background(), "composer", "i", "x"); err == nil {
		t.Fatal("expected error when every provider fails")
	}
}

func TestRouterNoProviders(t *testing.T) {
	r := NewRouter(zap.NewNop())
	if _, err := r.Complete(context.Background(), "composer", "i", "x"); err == nil {
		t.Fatal("expected error with no providers registered")
	}
}

func TestRouterCompleteStream(t *testing.T) {
	r := NewRouter(zap.NewNop())
	r.Register(&stubProvider{id: "p1", chunks: []string{"he", "llo"}}, "m")

	ch, err := r.CompleteStream(context.Background(), "composer", "i", "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got string
	for c := range ch {
		got += c
	}
	if got != "hello" {
		t.Errorf("streamed = %q", got)
	}
}
