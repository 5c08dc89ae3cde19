package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"geminichat/internal/metrics"
	"geminichat/internal/models"
)

var errEmptyReply = errors.New("responder returned empty reply")

// Responder produces the assistant's reply to a prompt.
type Responder interface {
	Respond(ctx context.Context, prompt string) (string, error)
}

// ResponderFunc adapts a plain function to Responder.
type ResponderFunc func(ctx context.Context, prompt string) (string, error)

func (f ResponderFunc) Respond(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Sequencer drives one exchange per submission against a Store: optimistic
// user append, remote call, reply append. At most one exchange is
// outstanding at a time; the store's typing flag is the guard.
type Sequencer struct {
	store     *Store
	responder Responder
	wg        conc.WaitGroup
}

func NewSequencer(store *Store, responder Responder) *Sequencer {
	return &Sequencer{store: store, responder: responder}
}

// Store returns the conversation the sequencer mutates.
func (s *Sequencer) Store() *Store {
	return s.store
}

// Submit starts an exchange and returns the appended user message without
// waiting for the reply. Blank input, or input arriving while a reply is
// pending, is dropped silently and ok is false.
//
// Cancelling ctx after Submit returns does not abort the remote call.
func (s *Sequencer) Submit(ctx context.Context, raw string) (msg models.Message, ok bool) {
	msg, epoch, ok := s.begin(raw)
	if !ok {
		return models.Message{}, false
	}
	ctx = context.WithoutCancel(ctx)
	s.wg.Go(func() {
		s.complete(ctx, msg.Text, epoch)
	})
	return msg, true
}

// Send is the blocking form of Submit. It returns the assistant message that
// ended the exchange, or ok=false when the input was dropped. The reply is
// the zero Message if the conversation was reset while it was in flight.
func (s *Sequencer) Send(ctx context.Context, raw string) (reply models.Message, ok bool) {
	msg, epoch, ok := s.begin(raw)
	if !ok {
		return models.Message{}, false
	}
	return s.complete(context.WithoutCancel(ctx), msg.Text, epoch), true
}

// Wait blocks until every exchange started by Submit has resolved.
func (s *Sequencer) Wait() {
	s.wg.Wait()
}

// Reset discards the conversation. A reply still in flight is dropped when it
// resolves so it cannot land in the fresh log.
func (s *Sequencer) Reset() {
	s.store.Reset()
}

func (s *Sequencer) begin(raw string) (models.Message, uint64, bool) {
	prompt := strings.TrimSpace(raw)
	if prompt == "" {
		metrics.SubmissionsDiscarded.WithLabelValues("empty").Inc()
		log.Debug().Msg("discarded blank submission")
		return models.Message{}, 0, false
	}
	msg, epoch, ok := s.store.tryBegin(prompt)
	if !ok {
		metrics.SubmissionsDiscarded.WithLabelValues("pending").Inc()
		log.Debug().Msg("discarded submission while reply pending")
		return models.Message{}, 0, false
	}
	metrics.SubmissionsAccepted.Inc()
	return msg, epoch, true
}

func (s *Sequencer) complete(ctx context.Context, prompt string, epoch uint64) models.Message {
	start := time.Now()
	defer func() {
		metrics.ExchangeDuration.Observe(time.Since(start).Seconds())
	}()

	var (
		reply string
		err   error
		pc    panics.Catcher
	)
	pc.Try(func() {
		reply, err = s.responder.Respond(ctx, prompt)
	})
	if r := pc.Recovered(); r != nil {
		err = r.AsError()
	}
	if err == nil && reply == "" {
		err = errEmptyReply
	}
	if err != nil {
		metrics.LocalErrors.Inc()
		log.Error().Err(err).Msg("exchange failed, answering with local error")
		reply = LocalErrorText
	}
	msg, ok := s.store.appendReply(epoch, reply)
	if !ok {
		metrics.StaleReplies.Inc()
		log.Info().Msg("conversation reset during exchange, reply dropped")
	}
	return msg
}
