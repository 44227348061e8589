package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/x-oauth/internal/apperror"
	"github.com/sakif/x-oauth/internal/service"
)

// CallbackPath is where the login page sends the browser with the provider token.
const CallbackPath = "/callback"

// LoginCompleter is implemented by *service.LoginService.
type LoginCompleter interface {
	CompleteLogin(ctx context.Context, token string) (*service.LoginResult, error)
}

// AuthHandler serves the two halves of the browser login flow.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin    → page that runs the provider's hosted X login in the browser
//   - HandleCallback → verify the provider token, store the user, show the result
//
// There is no server-side redirect to X and no OAuth state cookie: the provider's
// browser SDK performs the whole handshake and hands us a signed access token.
type AuthHandler struct {
	appID  string
	login  LoginCompleter
	pages  *Pages
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler. appID is embedded in the login page.
func NewAuthHandler(appID string, login LoginCompleter, pages *Pages, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		appID:  appID,
		login:  login,
		pages:  pages,
		logger: logger,
	}
}

// HandleLogin serves the "Connecting to X..." page.
//
// HTTP: GET /auth/twitter
//
// The page loads the provider SDK with our app id, starts the login limited to
// the twitter method, then navigates to /callback?token=<access token>.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	h.pages.render(w, http.StatusOK, pageLogin, loginPage{
		Title:        "Connecting to X...",
		AppID:        h.appID,
		CallbackPath: CallbackPath,
	})
}

// HandleCallback completes the login.
//
// HTTP: GET /callback?token=xxx
//
// RESPONSES:
//   - 400 "Missing token" page when token is absent or blank; the store is never touched
//   - 500 "Authentication Failed" page when verification or the profile fetch fails
//   - 200 welcome page otherwise, even if the X tokens could not be fetched
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	// A JWT never contains whitespace, so surrounding blanks are noise and a
	// blank-only value counts as missing.
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		h.pages.render(w, http.StatusBadRequest, pageError, errorPage{
			Title:    "Error",
			Heading:  "Missing token",
			LinkHref: "/",
			LinkText: "Go Back",
		})
		return
	}

	res, err := h.login.CompleteLogin(r.Context(), token)
	if err != nil {
		h.logger.Error("callback failed", slog.String("error", err.Error()))

		// Only verification failures are worth showing; anything else may carry
		// upstream details, so the page gets a generic message.
		message := "Something went wrong while signing you in."
		var appErr *apperror.AppError
		if errors.Is(err, apperror.ErrAuthentication) && errors.As(err, &appErr) {
			message = appErr.Message
		}

		h.pages.render(w, http.StatusInternalServerError, pageError, errorPage{
			Title:    "Error",
			Heading:  "Authentication Failed",
			Message:  message,
			LinkHref: "/auth/twitter",
			LinkText: "Try Again",
		})
		return
	}

	handle := res.User.Handle()
	if handle == "" {
		handle = "Unknown"
	}
	var avatar string
	if res.User.Twitter != nil {
		avatar = res.User.Twitter.ProfilePictureURL
	}

	h.pages.render(w, http.StatusOK, pageSuccess, successPage{
		Title:          "Welcome!",
		Handle:         handle,
		Avatar:         avatar,
		TokensReceived: res.TokensReceived,
	})
}
