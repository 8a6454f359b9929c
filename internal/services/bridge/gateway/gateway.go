// Package gateway accepts cross-boundary messages from embedded content and
// routes well-formed commit messages to the listeners that asked for them.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"strings"
	"sync"

	apperrors "github.com/voluntarios/learnbridge/internal/platform/errors"
)

// CommitMessageType is the only message type routed to listeners.
const CommitMessageType = "SCORM_COMMIT"

// Envelope is one message as received from an embedded frame, together with
// the origin the browser attributed to its sender.
type Envelope struct {
	// Scope names the viewer that relayed the message. Registrations with a
	// scope only see envelopes carrying the same scope.
	Scope  string
	Origin string
	Data   json.RawMessage
}

// Message is an accepted commit message.
type Message struct {
	Type       string
	ActivityID string
	CMI        map[string]any
	Raw        json.RawMessage
}

// Sink receives accepted messages. It is called synchronously from Dispatch
// and must not block.
type Sink func(ctx context.Context, msg Message)

// Registration describes what one listener accepts.
type Registration struct {
	Scope          string
	ExpectedOrigin string
	ActivityID     string
	Sink           Sink
}

// Gateway is the process-wide message listener.
type Gateway struct {
	logger *log.Logger

	mu        sync.RWMutex
	nextID    uint64
	listeners map[uint64]*Listener
}

// Listener is a live registration. Deregister releases it.
type Listener struct {
	gateway *Gateway
	id      uint64
	reg     Registration
	once    sync.Once
}

// New returns an empty gateway. Rejected messages are logged to logger; nil
// discards them.
func New(logger *log.Logger) *Gateway {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Gateway{
		logger:    logger,
		listeners: make(map[uint64]*Listener),
	}
}

// Register adds a listener. Origin and activity id are required because a
// listener without them could never accept anything.
func (g *Gateway) Register(reg Registration) (*Listener, error) {
	reg.ExpectedOrigin = strings.TrimSpace(reg.ExpectedOrigin)
	reg.ActivityID = strings.TrimSpace(reg.ActivityID)
	switch {
	case reg.ExpectedOrigin == "":
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "expected origin is required")
	case reg.ActivityID == "":
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "activity id is required")
	case reg.Sink == nil:
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "sink is required")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	l := &Listener{gateway: g, id: g.nextID, reg: reg}
	g.listeners[l.id] = l
	return l, nil
}

// Deregister removes the listener. Calling it more than once is a no-op.
func (l *Listener) Deregister() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		l.gateway.mu.Lock()
		delete(l.gateway.listeners, l.id)
		l.gateway.mu.Unlock()
	})
}

// Len reports the number of live listeners.
func (g *Gateway) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.listeners)
}

// Dispatch offers env to every listener and returns how many accepted it.
// Each listener checks, in order, the sender origin, the message type and the
// activity id. Rejections are silent to the sender.
func (g *Gateway) Dispatch(ctx context.Context, env Envelope) int {
	g.mu.RLock()
	targets := make([]*Listener, 0, len(g.listeners))
	for _, l := range g.listeners {
		if l.reg.Scope == "" || l.reg.Scope == env.Scope {
			targets = append(targets, l)
		}
	}
	g.mu.RUnlock()
	if len(targets) == 0 {
		return 0
	}

	decoded, decodeErr := decode(env.Data)
	accepted := 0
	for _, l := range targets {
		if env.Origin != l.reg.ExpectedOrigin {
			g.logger.Printf("gateway: drop reason=origin origin=%q expected=%q", env.Origin, l.reg.ExpectedOrigin)
			continue
		}
		if decodeErr != nil {
			g.logger.Printf("gateway: drop reason=malformed err=%v", decodeErr)
			continue
		}
		if decoded.Type != CommitMessageType {
			g.logger.Printf("gateway: drop reason=type type=%q", decoded.Type)
			continue
		}
		if !decoded.hasActivityID || decoded.ActivityID != l.reg.ActivityID {
			g.logger.Printf("gateway: drop reason=activity activity_id=%q expected=%q", decoded.ActivityID, l.reg.ActivityID)
			continue
		}
		accepted++
		l.reg.Sink(ctx, decoded.Message)
	}
	return accepted
}

type decodedMessage struct {
	Message
	hasActivityID bool
}

type wireMessage struct {
	Type       string         `json:"type"`
	ActivityID any            `json:"activityId"`
	CMI        map[string]any `json:"cmi"`
}

func decode(data json.RawMessage) (decodedMessage, error) {
	var wire wireMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&wire); err != nil {
		return decodedMessage{}, err
	}
	id, ok := coerceID(wire.ActivityID)
	cmi := wire.CMI
	if cmi == nil {
		cmi = map[string]any{}
	}
	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	return decodedMessage{
		Message: Message{
			Type:       wire.Type,
			ActivityID: id,
			CMI:        cmi,
			Raw:        raw,
		},
		hasActivityID: ok,
	}, nil
}

// coerceID accepts string and numeric activity ids so that "42" and 42 name
// the same activity.
func coerceID(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v), true
	case json.Number:
		return v.String(), true
	default:
		return "", false
	}
}
