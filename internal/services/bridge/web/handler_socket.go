package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"
	"golang.org/x/text/message"
	"golang.org/x/time/rate"

	apperrors "github.com/voluntarios/learnbridge/internal/platform/errors"
	errori18n "github.com/voluntarios/learnbridge/internal/platform/errors/i18n"
	"github.com/voluntarios/learnbridge/internal/platform/requestctx"
	"github.com/voluntarios/learnbridge/internal/platform/timeouts"
	"github.com/voluntarios/learnbridge/internal/services/bridge/activity"
	"github.com/voluntarios/learnbridge/internal/services/bridge/commit"
	"github.com/voluntarios/learnbridge/internal/services/bridge/gateway"
	"github.com/voluntarios/learnbridge/internal/services/bridge/mount"
	"github.com/voluntarios/learnbridge/internal/services/bridge/viewer"
	"github.com/voluntarios/learnbridge/internal/services/bridge/web/platform/httpx"
	"github.com/voluntarios/learnbridge/internal/services/bridge/web/platform/i18n"
	"github.com/voluntarios/learnbridge/internal/services/bridge/web/platform/requestmeta"
)

const (
	maxFrameBytes          = 256 << 10
	maxFramesPerSecond     = 50
	maxFrameBurst          = 100
	maxDecodeErrorsPerConn = 3
	writeTimeout           = 10 * time.Second
)

// Client frame types.
const (
	frameLaunch        = "viewer.launch"
	frameClose         = "viewer.close"
	frameLoaded        = "frame.loaded"
	frameError         = "frame.error"
	frameBridgeMessage = "bridge.message"
)

// Server frame types.
const (
	frameState     = "viewer.state"
	frameCompleted = "viewer.completed"
	frameFailure   = "error"
)

type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type bridgeMessagePayload struct {
	Origin string          `json:"origin"`
	Data   json.RawMessage `json:"data"`
}

type statePayload struct {
	viewer.Snapshot
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// newStatePayload localizes a snapshot. Only the error code crosses into the
// frame; the internal error text stays in the server log.
func newStatePayload(locale string, printer *message.Printer, s viewer.Snapshot) statePayload {
	payload := statePayload{Snapshot: s, Message: stateMessage(printer, s)}
	if s.ErrorCode != "" {
		payload.Error = errori18n.Format(locale, s.ErrorCode, map[string]string{"ActivityID": s.ActivityID})
	}
	return payload
}

type completedPayload struct {
	ActivityID string   `json:"activityId"`
	Score      *float64 `json:"score,omitempty"`
	Message    string   `json:"message"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type wsPeer struct {
	mu   sync.Mutex
	conn *websocket.Conn
	enc  *json.Encoder
}

func newWSPeer(conn *websocket.Conn) *wsPeer {
	return &wsPeer{conn: conn, enc: json.NewEncoder(conn)}
}

func (p *wsPeer) write(frameType, requestID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return p.enc.Encode(wsFrame{Type: frameType, RequestID: requestID, Payload: body})
}

func (p *wsPeer) writeError(requestID string, code apperrors.Code, message string) error {
	return p.write(frameFailure, requestID, errorPayload{Code: string(code), Message: message})
}

func (h *handler) handleSocket(w http.ResponseWriter, r *http.Request) {
	a, err := h.catalog.Get(r.PathValue("activityID"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	tag, _ := i18n.ResolveTag(r)
	printer := i18n.Printer(tag)
	policy := requestmeta.SchemePolicy{TrustForwardedProto: h.trustForwardedProto}

	server := websocket.Server{
		Handshake: func(_ *websocket.Config, req *http.Request) error {
			if !requestmeta.HasSameOriginProof(req, policy) {
				h.logger.Printf("bridge: websocket rejected: cross-origin host=%q origin=%q", req.Host, req.Header.Get("Origin"))
				return errors.New("cross-origin websocket")
			}
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			h.serveViewer(conn, a, tag.String(), printer)
		},
	}
	server.ServeHTTP(w, r)
}

func (h *handler) serveViewer(conn *websocket.Conn, a activity.Activity, locale string, printer *message.Printer) {
	defer func() {
		_ = conn.Close()
	}()
	conn.MaxPayloadBytes = maxFrameBytes

	viewerID := uuid.NewString()
	ctx, cancel := context.WithCancel(requestctx.WithViewerID(conn.Request().Context(), viewerID))
	defer cancel()

	peer := newWSPeer(conn)
	v, err := viewer.New(viewer.Config{
		Activity:       a,
		Mounts:         mount.NewManager(h.mounter, h.backendBase),
		Gateway:        h.gateway,
		Relay:          h.relay,
		ExpectedOrigin: h.expectedOrigin,
		Scope:          viewerID,
		OnCompletion: func(_ context.Context, c commit.Completion) {
			_ = peer.write(frameCompleted, "", completedPayload{
				ActivityID: c.ActivityID,
				Score:      c.Score,
				Message:    completionMessage(printer, c),
			})
		},
		OnChange: func(s viewer.Snapshot) {
			_ = peer.write(frameState, "", newStatePayload(locale, printer, s))
		},
		BlockedAfter: h.blockedAfter,
	})
	if err != nil {
		h.logger.Printf("bridge: viewer init failed activity_id=%s viewer_id=%s err=%v", a.ID, viewerID, err)
		_ = peer.writeError("", apperrors.CodeOf(err), errori18n.Message(locale, err))
		return
	}
	var launches sync.WaitGroup
	defer func() {
		cancel()
		launches.Wait()
		v.Dispose()
	}()

	snapshot := v.Snapshot()
	if err := peer.write(frameState, "", newStatePayload(locale, printer, snapshot)); err != nil {
		return
	}

	limiter := rate.NewLimiter(rate.Limit(maxFramesPerSecond), maxFrameBurst)
	decodeErrors := 0
	for {
		var frame wsFrame
		if err := websocket.JSON.Receive(conn, &frame); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return
			}
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if !errors.As(err, &syntaxErr) && !errors.As(err, &typeErr) {
				return
			}
			decodeErrors++
			_ = peer.writeError("", apperrors.CodeInvalidArgument, "invalid frame payload")
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if !limiter.Allow() {
			_ = peer.writeError(frame.RequestID, apperrors.CodeResourceExhausted, errori18n.Format(locale, apperrors.CodeResourceExhausted, nil))
			return
		}

		switch frame.Type {
		case frameLaunch:
			launches.Add(1)
			go func(requestID string) {
				defer launches.Done()
				launchCtx, cancelLaunch := context.WithTimeout(ctx, timeouts.MountRequest)
				defer cancelLaunch()
				if err := v.Launch(launchCtx); err != nil {
					h.logger.Printf("bridge: launch failed activity_id=%s viewer_id=%s err=%v", a.ID, viewerID, err)
					_ = peer.writeError(requestID, apperrors.CodeOf(err), errori18n.Message(locale, err))
				}
			}(frame.RequestID)
		case frameClose:
			v.Close()
		case frameLoaded:
			v.FrameLoaded()
		case frameError:
			v.FrameError()
		case frameBridgeMessage:
			var payload bridgeMessagePayload
			if err := json.Unmarshal(frame.Payload, &payload); err != nil {
				_ = peer.writeError(frame.RequestID, apperrors.CodeInvalidArgument, "invalid bridge message")
				continue
			}
			h.gateway.Dispatch(ctx, gateway.Envelope{
				Scope:  viewerID,
				Origin: payload.Origin,
				Data:   payload.Data,
			})
		default:
			_ = peer.writeError(frame.RequestID, apperrors.CodeInvalidArgument, "unsupported frame type")
		}
	}
}

func stateMessage(printer *message.Printer, s viewer.Snapshot) string {
	switch s.Status {
	case viewer.StatusMounting:
		return printer.Sprintf("viewer.mounting")
	case viewer.StatusBlockedSuspected:
		return printer.Sprintf("viewer.blocked")
	case viewer.StatusFrameError:
		return printer.Sprintf("viewer.frame_error")
	case viewer.StatusIdle:
		if s.DisabledReason != "" {
			return printer.Sprintf("viewer.not_configured")
		}
		if s.ErrorCode != "" {
			return printer.Sprintf("viewer.mount_failed")
		}
	}
	return ""
}

func completionMessage(printer *message.Printer, c commit.Completion) string {
	text := printer.Sprintf("viewer.completed")
	if c.Score != nil {
		text += " " + printer.Sprintf("viewer.score", *c.Score)
	}
	return text
}
