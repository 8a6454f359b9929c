package web

import (
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/text/language"

	apperrors "github.com/voluntarios/learnbridge/internal/platform/errors"
	errori18n "github.com/voluntarios/learnbridge/internal/platform/errors/i18n"
	"github.com/voluntarios/learnbridge/internal/services/bridge/web/platform/httpx"
	"github.com/voluntarios/learnbridge/internal/services/bridge/web/platform/i18n"
	"github.com/voluntarios/learnbridge/internal/services/bridge/web/templates"
)

func (h *handler) handlePage(w http.ResponseWriter, r *http.Request) {
	tag, persist := i18n.ResolveTag(r)
	if persist {
		i18n.SetLanguageCookie(w, tag)
	}
	a, err := h.catalog.Get(r.PathValue("activityID"))
	if err != nil {
		h.renderError(w, r, tag, err)
		return
	}
	printer := i18n.Printer(tag)
	page := templates.ViewerPage{
		Lang:         tag.String(),
		ActivityID:   a.ID,
		Title:        a.Title,
		SocketPath:   "/learn/" + url.PathEscape(a.ID) + "/ws?" + url.Values{i18n.LangParam: {tag.String()}}.Encode(),
		LaunchLabel:  printer.Sprintf("viewer.launch"),
		CloseLabel:   printer.Sprintf("viewer.close"),
		DisabledText: printer.Sprintf("viewer.not_configured"),
		CanLaunch:    a.Launchable(),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Viewer(page).Render(r.Context(), w); err != nil {
		h.logger.Printf("bridge: render viewer page activity_id=%s err=%v", a.ID, err)
	}
}

func (h *handler) renderError(w http.ResponseWriter, r *http.Request, tag language.Tag, err error) {
	status := apperrors.HTTPStatus(err)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	page := templates.ErrorPage{
		Lang:    tag.String(),
		Title:   http.StatusText(status),
		Message: errori18n.Message(tag.String(), err),
	}
	if renderErr := templates.Error(page).Render(r.Context(), w); renderErr != nil {
		h.logger.Printf("bridge: render error page status=%d err=%v", status, renderErr)
	}
}

func (h *handler) handleAttempts(w http.ResponseWriter, r *http.Request) {
	a, err := h.catalog.Get(r.PathValue("activityID"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httpx.WriteError(w, apperrors.New(apperrors.CodeInvalidArgument, "limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}
	attempts, err := h.attempts.ListCommitAttempts(r.Context(), a.ID, limit)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	type attemptView struct {
		ActivityID string   `json:"activityId"`
		ViewerID   string   `json:"viewerId,omitempty"`
		Completed  bool     `json:"completed"`
		Score      *float64 `json:"score,omitempty"`
		Error      string   `json:"error,omitempty"`
		CreatedAt  string   `json:"createdAt"`
	}
	views := make([]attemptView, 0, len(attempts))
	for _, attempt := range attempts {
		views = append(views, attemptView{
			ActivityID: attempt.ActivityID,
			ViewerID:   attempt.ViewerID,
			Completed:  attempt.Completed,
			Score:      attempt.Score,
			Error:      attempt.Error,
			CreatedAt:  attempt.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"attempts": views})
}
