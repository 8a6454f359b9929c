package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "github.com/voluntarios/learnbridge/internal/platform/errors"
	"github.com/voluntarios/learnbridge/internal/platform/requestctx"
)

func TestChainAppliesMiddlewareInDeclarationOrder(t *testing.T) {
	t.Parallel()

	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mark("first"), nil, mark("second"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got := strings.Join(order, ","); got != "first,second,handler" {
		t.Fatalf("order = %q", got)
	}
}

func TestRequestIDGeneratesAndEchoes(t *testing.T) {
	t.Parallel()

	var seen string
	h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(RequestIDHeader)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.HasPrefix(seen, "bridge-") {
		t.Fatalf("generated request id = %q", seen)
	}
	if rr.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("echoed id = %q, want %q", rr.Header().Get(RequestIDHeader), seen)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if seen != "req-1" || rr.Header().Get(RequestIDHeader) != "req-1" {
		t.Fatalf("provided id not preserved: seen=%q echoed=%q", seen, rr.Header().Get(RequestIDHeader))
	}
}

func TestUserIDStoresHeaderInContext(t *testing.T) {
	t.Parallel()

	var seen string
	h := UserID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = requestctx.UserIDFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserIDHeader, " user-7 ")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "user-7" {
		t.Fatalf("user id = %q, want user-7", seen)
	}
}

func TestUserIDIgnoresQueryParameter(t *testing.T) {
	t.Parallel()

	var seen string
	h := UserID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = requestctx.UserIDFromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/?user_id=user-7&userId=user-7", nil))
	if seen != "" {
		t.Fatalf("user id = %q, want empty without proxy header", seen)
	}
}

func TestRecoverPanicReturns500(t *testing.T) {
	t.Parallel()

	h := RecoverPanic()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
}

func TestWriteErrorMapsDomainCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{err: apperrors.New(apperrors.CodeActivityNotFound, "missing"), wantStatus: http.StatusNotFound, wantCode: "ACTIVITY_NOT_FOUND"},
		{err: apperrors.New(apperrors.CodeInvalidArgument, "bad"), wantStatus: http.StatusBadRequest, wantCode: "INVALID_ARGUMENT"},
		{err: errors.New("plain"), wantStatus: http.StatusInternalServerError, wantCode: "UNKNOWN"},
	}
	for _, tc := range tests {
		rr := httptest.NewRecorder()
		WriteError(rr, tc.err)
		if rr.Code != tc.wantStatus {
			t.Fatalf("%v: status = %d, want %d", tc.err, rr.Code, tc.wantStatus)
		}
		var body map[string]string
		if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["code"] != tc.wantCode {
			t.Fatalf("%v: code = %q, want %q", tc.err, body["code"], tc.wantCode)
		}
	}
}
