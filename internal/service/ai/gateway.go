package ai

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/panics"

	"geminichat/internal/config"
	"geminichat/internal/metrics"
)

var (
	errNoModel       = errors.New("no chat model configured")
	errEmptyResponse = errors.New("model returned empty response")
)

// Generator is the slice of an eino chat model the gateway needs.
type Generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Gateway makes one model call per prompt and never reports failure to its
// caller: errors, empty answers and panics in the client all turn into a
// fallback apology.
type Gateway struct {
	gen       Generator
	provider  string
	modelName string
	timeout   time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*Gateway)

// WithTimeout bounds each model call. Zero leaves it unbounded.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.timeout = d }
}

// WithRand fixes the source used to pick fallback responses.
func WithRand(r *rand.Rand) Option {
	return func(g *Gateway) { g.rng = r }
}

// WithModelName labels log records with the model in use.
func WithModelName(name string) Option {
	return func(g *Gateway) { g.modelName = name }
}

func NewGateway(gen Generator, provider string, opts ...Option) *Gateway {
	g := &Gateway{gen: gen, provider: provider}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// New builds the gateway for the configured chat provider. Without an API key
// the gateway still starts and answers every prompt with a fallback.
func New(ctx context.Context, cfg *config.Config) (*Gateway, error) {
	provider := cfg.Chat.Provider
	provCfg := cfg.Provider()
	opts := []Option{WithTimeout(cfg.Chat.ResponseTimeout), WithModelName(provCfg.Model)}

	if provCfg.APIKey == "" {
		log.Warn().Str("provider", provider).Msg("no api key configured, replies will fall back")
		return NewGateway(nil, provider, opts...), nil
	}
	chatModel, err := newChatModel(ctx, provider, provCfg)
	if err != nil {
		return nil, err
	}
	log.Info().Str("provider", provider).Str("model", provCfg.Model).Msg("chat model ready")
	return NewGateway(chatModel, provider, opts...), nil
}

// Respond returns the model's answer to prompt, or a fallback response. The
// error is always nil.
func (g *Gateway) Respond(ctx context.Context, prompt string) (string, error) {
	text, err := g.generate(ctx, prompt)
	if err != nil {
		metrics.GatewayFallbacks.WithLabelValues(g.provider).Inc()
		log.Error().Err(err).
			Str("provider", g.provider).
			Str("model", g.modelName).
			Msg("error getting ai response")
		return g.pickFallback(), nil
	}
	return text, nil
}

func (g *Gateway) generate(ctx context.Context, prompt string) (string, error) {
	if g.gen == nil {
		return "", errNoModel
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	var (
		resp *schema.Message
		err  error
		pc   panics.Catcher
	)
	pc.Try(func() {
		resp, err = g.gen.Generate(ctx, []*schema.Message{
			{Role: schema.User, Content: prompt},
		})
	})
	if r := pc.Recovered(); r != nil {
		return "", r.AsError()
	}
	if err != nil {
		return "", err
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", errEmptyResponse
	}
	return resp.Content, nil
}

func (g *Gateway) pickFallback() string {
	if g.rng == nil {
		return PickFallback(nil)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return PickFallback(g.rng)
}
