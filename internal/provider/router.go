package provider

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Binding ties a calling capability to a provider and model.
type Binding struct {
	ProviderID string
	Model      string
}

// Router manages multiple LLM providers and routes completion requests from
// the capability agents. Each capability may be bound to its own provider
// and model (e.g. intent classification on a cheap fast model); everything
// else uses the default.
type Router struct {
	providers map[string]Provider
	bindings  map[string]Binding  // capability -> binding
	fallbacks map[string][]string // capability -> fallback provider chain
	defaults  Binding
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewRouter creates a new provider router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		providers: make(map[string]Provider),
		bindings:  make(map[string]Binding),
		fallbacks: make(map[string][]string),
		logger:    logger,
	}
}

// Register adds a provider to the router. The first registered provider
// becomes the default.
func (r *Router) Register(p Provider, defaultModel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
	if r.defaults.ProviderID == "" {
		r.defaults = Binding{ProviderID: p.ID(), Model: defaultModel}
	}
	r.logger.Info("registered provider", zap.String("id", p.ID()), zap.String("name", p.Name()))
}

// SetDefault sets the default provider and model.
func (r *Router) SetDefault(providerID, model string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults = Binding{ProviderID: providerID, Model: model}
}

// Bind associates a capability with a specific provider and model.
func (r *Router) Bind(capability, providerID, model string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[capability] = Binding{ProviderID: providerID, Model: model}
}

// SetFallbacks configures fallback providers for a capability.
func (r *Router) SetFallbacks(capability string, providerIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks[capability] = providerIDs
}

// Route sends a chat request through the provider bound to the capability,
// trying fallbacks in order if the primary fails.
func (r *Router) Route(ctx context.Context, capability string, req *ChatRequest) (*ChatResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	binding, primary := r.resolve(capability)
	if primary == nil {
		return nil, fmt.Errorf("no provider available for %s", capability)
	}
	if req.Model == "" {
		req.Model = binding.Model
	}

	resp, err := primary.Chat(ctx, req)
	if err == nil {
		return resp, nil
	}
	r.logger.Warn("primary provider failed, trying fallbacks",
		zap.String("capability", capability), zap.Error(err))

	for _, fbID := range r.fallbacks[capability] {
		fb, ok := r.providers[fbID]
		if !ok {
			continue
		}
		resp, err = fb.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		r.logger.Warn("fallback provider failed", zap.String("provider", fbID), zap.Error(err))
	}

	return nil, fmt.Errorf("all providers failed for %s: %w", capability, err)
}

// RouteStream sends a streaming chat request through the bound provider.
func (r *Router) RouteStream(ctx context.Context, capability string, req *ChatRequest) (<-chan *StreamChunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	binding, primary := r.resolve(capability)
	if primary == nil {
		return nil, fmt.Errorf("no provider available for %s", capability)
	}
	if req.Model == "" {
		req.Model = binding.Model
	}
	return primary.ChatStream(ctx, req)
}

// Complete runs a single instruction/context exchange and returns the raw
// completion text. This is the shape the capability agents consume.
func (r *Router) Complete(ctx context.Context, capability, instruction, input string) (string, error) {
	req := &ChatRequest{
		Messages: []Message{
			{Role: "system", Content: instruction},
			{Role: "user", Content: input},
		},
		MaxTokens: 2048,
	}
	resp, err := r.Route(ctx, capability, req)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// CompleteStream is the streaming variant of Complete. The returned channel
// carries incremental text and is closed when the completion ends.
func (r *Router) CompleteStream(ctx context.Context, capability, instruction, input string) (<-chan string, error) {
	req := &ChatRequest{
		Messages: []Message{
			{Role: "system", Content: instruction},
			{Role: "user", Content: input},
		},
		MaxTokens: 2048,
	}
	chunks, err := r.RouteStream(ctx, capability, req)
	if err != nil {
		return nil, err
	}
	out := make(chan string, 64)
	go func() {
		defer close(out)
		for c := range chunks {
			if c.Content != "" {
				out <- c.Content
			}
			if c.Done {
				return
			}
		}
	}()
	return out, nil
}

func (r *Router) resolve(capability string) (Binding, Provider) {
	if b, ok := r.bindings[capability]; ok {
		if p, ok := r.providers[b.ProviderID]; ok {
			return b, p
		}
	}
	if p, ok := r.providers[r.defaults.ProviderID]; ok {
		return r.defaults, p
	}
	return Binding{}, nil
}

// GetProvider returns a provider by ID.
func (r *Router) GetProvider(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// ListProviders returns all registered providers.
func (r *Router) ListProviders() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		result = append(result, p)
	}
	return result
}
