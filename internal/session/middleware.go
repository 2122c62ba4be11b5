package session

import (
	"errors"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/claimmatrix/claimmatrix/internal/apiclient"
)

// BearerAuth attaches the current token as an Authorization header on
// every outgoing request. Without a token the request is sent
// unauthenticated; expiry is discovered through rejection, never
// pre-validated here.
type BearerAuth struct {
	tokens TokenSource
}

// NewBearerAuth creates the credential-attaching middleware.
func NewBearerAuth(tokens TokenSource) *BearerAuth {
	return &BearerAuth{tokens: tokens}
}

func (b *BearerAuth) BeforeSend(req *http.Request) {
	if token, ok := b.tokens.Token(); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (b *BearerAuth) AfterResponse(resp *http.Response, err error) {}

// failureHandler runs the cross-cutting side effects of classified
// failures: forced logout on 401, advisory notifications on 429/5xx and
// connectivity loss. Everything else is left to the calling use case.
//
// The 401 path is guarded by a single-shot latch so N concurrent rejected
// requests collapse into one clear/notify/redirect sequence. The latch is
// re-armed only by a subsequent successful login.
type failureHandler struct {
	state    *State
	notifier Notifier
	nav      Navigator
	onExpire func(resume string)
	expired  atomic.Bool
	logger   zerolog.Logger
}

func (h *failureHandler) BeforeSend(req *http.Request) {}

func (h *failureHandler) AfterResponse(resp *http.Response, err error) {
	if err == nil {
		return
	}

	var reqErr *apiclient.RequestError
	if errors.As(err, &reqErr) {
		h.notifier.Error(reqErr.Message())
		return
	}

	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) {
		return
	}

	switch {
	case apiErr.IsUnauthorized():
		h.handleUnauthorized(resp, apiErr)
	case apiErr.IsRateLimited():
		h.notifier.Warning(apiErr.Message())
	case apiErr.IsServerError():
		h.notifier.Error(apiErr.Message())
	}
}

func (h *failureHandler) handleUnauthorized(resp *http.Response, apiErr *apiclient.APIError) {
	snap := h.state.Snapshot()
	if snap.Token == "" && snap.Identity == nil {
		// nothing to expire: either never logged in, or a stale response
		// arriving after the session was already torn down
		return
	}

	if sentBearerToken(resp) != snap.Token {
		// the rejected request was sent under a credential this session no
		// longer holds; a logout/re-login superseded it while the call was
		// in flight. Classify only, never tear down the successor session.
		h.logger.Debug().Msg("Ignoring 401 for a superseded session")
		return
	}

	if !h.expired.CompareAndSwap(false, true) {
		return
	}

	h.logger.Debug().Msg("Session rejected by API, clearing credentials")
	h.state.Clear()

	current := h.nav.Current()
	if current == RouteLogin.Path {
		return
	}

	if h.onExpire != nil {
		h.onExpire(current)
	}
	h.notifier.Error(apiErr.Message())
	h.nav.Push(RouteLogin.Path)
}

// rearm resets the single-shot latch after a successful login.
func (h *failureHandler) rearm() {
	h.expired.Store(false)
}

// sentBearerToken extracts the token the rejected request actually carried.
// Empty when the request went out unauthenticated or no response survived.
func sentBearerToken(resp *http.Response) string {
	if resp == nil || resp.Request == nil {
		return ""
	}
	header := resp.Request.Header.Get("Authorization")
	return strings.TrimPrefix(header, "Bearer ")
}
