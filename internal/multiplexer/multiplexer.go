// Package multiplexer routes the incremental text of one streaming model
// response to topic subscribers.
//
// Text outside any topic tag goes to DefaultTopic. A subscriber to another
// topic receives the text the model writes between <topic> and </topic>. Tags
// split across chunks are held back until they can be resolved.
//
// A Multiplexer serves exactly one turn. After NotifyTurnComplete it ignores
// further input; allocate a new one for the next turn.
package multiplexer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/opencode-ai/recipechat/internal/logging"
	"github.com/rs/zerolog"
)

// DefaultTopic receives all text outside topic tags.
const DefaultTopic = "Assistant"

// Handler consumes one topic. Either callback may be nil.
type Handler struct {
	// OnResponse receives text in arrival order.
	OnResponse func(content string) error
	// OnTurnComplete is called once after the last OnResponse of the turn.
	OnTurnComplete func() error
}

// Multiplexer fans out one response stream to topic handlers.
//
// Deliveries are serialized: a handler is never invoked concurrently with
// another handler of the same Multiplexer. Handlers must not call back into the
// Multiplexer that invoked them.
type Multiplexer struct {
	mu        sync.Mutex
	handlers  map[string]Handler
	order     []string
	current   string
	pending   string
	completed bool

	log zerolog.Logger
}

// New creates a multiplexer for one turn.
func New() *Multiplexer {
	return &Multiplexer{
		handlers: make(map[string]Handler),
		current:  DefaultTopic,
		log:      logging.Component("multiplexer"),
	}
}

// Sub registers h for topic. A second subscription to the same topic replaces
// the handler but keeps the original completion order.
func (m *Multiplexer) Sub(topic string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.handlers[topic]; !ok {
		m.order = append(m.order, topic)
	}
	m.handlers[topic] = h
}

// Topics returns the subscribed topics in subscription order.
func (m *Multiplexer) Topics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// Completed reports whether the turn has completed.
func (m *Multiplexer) Completed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completed
}

// Publish routes one chunk of response text. It returns after every handler the
// chunk was routed to has returned. Chunks published after completion are dropped.
func (m *Multiplexer) Publish(chunk string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.completed {
		m.log.Debug().Int("len", len(chunk)).Msg("dropping chunk published after turn completion")
		return
	}
	m.pending += chunk
	m.route()
}

// NotifyTurnComplete flushes held-back text to the current topic and then calls
// every handler's OnTurnComplete once, in subscription order. Later calls are no-ops.
func (m *Multiplexer) NotifyTurnComplete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.completed {
		return
	}
	m.completed = true

	if m.pending != "" {
		m.deliver(m.current, m.pending)
		m.pending = ""
	}
	for _, topic := range m.order {
		h := m.handlers[topic]
		if h.OnTurnComplete == nil {
			continue
		}
		m.invoke(topic, "turn complete", h.OnTurnComplete)
	}
}

// route consumes m.pending as far as tags allow. Caller holds m.mu.
func (m *Multiplexer) route() {
	for m.pending != "" {
		if m.current == DefaultTopic {
			idx, topic := m.findOpenTag()
			if idx >= 0 {
				m.deliver(DefaultTopic, m.pending[:idx])
				m.pending = m.pending[idx+len(openTag(topic)):]
				m.current = topic
				continue
			}
			keep := m.partialOpenTagLen()
			m.deliver(DefaultTopic, m.pending[:len(m.pending)-keep])
			m.pending = m.pending[len(m.pending)-keep:]
			return
		}

		closing := closeTag(m.current)
		if idx := strings.Index(m.pending, closing); idx >= 0 {
			m.deliver(m.current, m.pending[:idx])
			m.pending = m.pending[idx+len(closing):]
			m.current = DefaultTopic
			continue
		}
		keep := partialSuffix(m.pending, closing)
		m.deliver(m.current, m.pending[:len(m.pending)-keep])
		m.pending = m.pending[len(m.pending)-keep:]
		return
	}
}

// findOpenTag returns the earliest opening tag of a subscribed non-default topic.
func (m *Multiplexer) findOpenTag() (int, string) {
	best, bestTopic := -1, ""
	for _, topic := range m.order {
		if topic == DefaultTopic {
			continue
		}
		if idx := strings.Index(m.pending, openTag(topic)); idx >= 0 && (best < 0 || idx < best) {
			best, bestTopic = idx, topic
		}
	}
	return best, bestTopic
}

func (m *Multiplexer) partialOpenTagLen() int {
	keep := 0
	for _, topic := range m.order {
		if topic == DefaultTopic {
			continue
		}
		if n := partialSuffix(m.pending, openTag(topic)); n > keep {
			keep = n
		}
	}
	return keep
}

func (m *Multiplexer) deliver(topic, content string) {
	if content == "" {
		return
	}
	h, ok := m.handlers[topic]
	if !ok || h.OnResponse == nil {
		return
	}
	m.invoke(topic, "response", func() error { return h.OnResponse(content) })
}

// invoke runs fn, logging its error or panic instead of propagating it.
func (m *Multiplexer) invoke(topic, phase string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Str("topic", topic).Str("phase", phase).Str("panic", fmt.Sprint(r)).Msg("handler panicked")
		}
	}()
	if err := fn(); err != nil {
		m.log.Error().Err(err).Str("topic", topic).Str("phase", phase).Msg("handler failed")
	}
}

func openTag(topic string) string  { return "<" + topic + ">" }
func closeTag(topic string) string { return "</" + topic + ">" }

// partialSuffix returns the length of the longest suffix of s that is a proper
// prefix of tag.
func partialSuffix(s, tag string) int {
	n := min(len(tag)-1, len(s))
	for ; n > 0; n-- {
		if strings.HasSuffix(s, tag[:n]) {
			return n
		}
	}
	return 0
}
