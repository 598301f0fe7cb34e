package provider

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/opencode-ai/recipechat/internal/logging"
	"github.com/opencode-ai/recipechat/pkg/types"
)

const (
	// MaxRetries is the maximum number of retries when opening a stream.
	MaxRetries = 3
	// RetryInitialInterval is the initial interval for exponential backoff.
	RetryInitialInterval = time.Second
	// RetryMaxInterval is the maximum interval for exponential backoff.
	RetryMaxInterval = 10 * time.Second
)

// Callbacks receive the events of one chat. Exactly one of OnComplete and
// OnError is called, after the last OnChunk.
type Callbacks struct {
	OnChunk    func(text string)
	OnComplete func()
	// OnError receives the failure and its HTTP status, or 0 when there is none.
	OnError func(err error, status int)
}

// CancelFunc stops a chat. It is safe to call more than once and after the
// chat has finished.
type CancelFunc func()

// Transport opens streaming chats with a model.
type Transport interface {
	Chat(ctx context.Context, messages []types.Message, cb Callbacks) CancelFunc
}

// EinoTransport streams chats through an Eino chat model.
type EinoTransport struct {
	model   model.BaseChatModel
	req     *CompletionRequest
	backoff func(ctx context.Context) backoff.BackOff
	log     zerolog.Logger
}

// NewTransport creates a transport over m.
func NewTransport(m model.BaseChatModel, req *CompletionRequest) *EinoTransport {
	return &EinoTransport{
		model:   m,
		req:     req,
		backoff: newRetryBackoff,
		log:     logging.Component("transport"),
	}
}

// newRetryBackoff creates an exponential backoff with jitter for stream opens.
func newRetryBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = RetryInitialInterval
	b.MaxInterval = RetryMaxInterval
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, MaxRetries), ctx)
}

// Chat starts streaming in the background and returns immediately.
func (t *EinoTransport) Chat(ctx context.Context, messages []types.Message, cb Callbacks) CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	in := ToEinoMessages(messages)

	var once sync.Once
	finish := func(err error) {
		once.Do(func() {
			if err == nil {
				if cb.OnComplete != nil {
					cb.OnComplete()
				}
				return
			}
			if cb.OnError != nil {
				cb.OnError(err, StatusCode(err))
			}
		})
	}

	go func() {
		defer cancel()
		finish(t.pump(ctx, in, cb))
	}()
	return CancelFunc(cancel)
}

func (t *EinoTransport) pump(ctx context.Context, in []*schema.Message, cb Callbacks) error {
	stream, err := t.open(ctx, in)
	if err != nil {
		if ctx.Err() != nil {
			return ErrAborted
		}
		return err
	}
	defer stream.Close()

	for {
		if ctx.Err() != nil {
			return ErrAborted
		}
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			if ctx.Err() != nil {
				return ErrAborted
			}
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ErrAborted
			}
			return err
		}
		// a chunk received after cancellation is discarded
		if ctx.Err() != nil {
			return ErrAborted
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		if cb.OnChunk != nil {
			cb.OnChunk(msg.Content)
		}
	}
}

func (t *EinoTransport) open(ctx context.Context, in []*schema.Message) (*schema.StreamReader[*schema.Message], error) {
	var stream *schema.StreamReader[*schema.Message]
	op := func() error {
		s, err := t.model.Stream(ctx, in, t.req.options()...)
		if err != nil {
			if status := StatusCode(err); retryable(status) {
				t.log.Warn().Err(err).Int("status", status).Msg("stream open failed, retrying")
				return err
			}
			return backoff.Permanent(err)
		}
		stream = s
		return nil
	}
	if err := backoff.Retry(op, t.backoff(ctx)); err != nil {
		return nil, err
	}
	return stream, nil
}
