package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
)

// ErrInvalidState means the callback's state did not match the one the flow started with.
var ErrInvalidState = errors.New("invalid state parameter")

// OAuthResult is the outcome of an authorization code flow.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// Exchanger trades an authorization code for a token. [*oauth2.Config] satisfies it.
type Exchanger interface {
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
}

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: {{.Color}}; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
    </div>
</body>
</html>
`))

type callbackView struct {
	Title   string
	Message string
	Color   template.CSS
}

// OAuthHandler handles the callback of one authorization code flow for provider.
type OAuthHandler struct {
	provider    string
	exchanger   Exchanger
	state       string
	resultChan  chan OAuthResult
	once        sync.Once
	mu          sync.Mutex
	callbackHit bool
}

// NewOAuthHandler creates a handler expecting state, which should be unguessable.
func NewOAuthHandler(provider string, exchanger Exchanger, state string) *OAuthHandler {
	return &OAuthHandler{
		provider:   provider,
		exchanger:  exchanger,
		state:      state,
		resultChan: make(chan OAuthResult, 1),
	}
}

func (h *OAuthHandler) Routes() []string {
	return []string{"GET /callback"}
}

// ServeHTTP validates state, exchanges the code and sends the result. Only the first callback is processed.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	q := r.URL.Query()
	if q.Get("state") != h.state {
		h.Send(OAuthResult{err: ErrInvalidState})
		h.page(w, http.StatusBadRequest, "Authorization Failed", "The request could not be verified. Start again from the terminal.")
		return
	}

	code := q.Get("code")
	if code == "" {
		h.Send(OAuthResult{err: fmt.Errorf("authorization failed: %s - %s", q.Get("error"), q.Get("error_description"))})
		h.page(w, http.StatusBadRequest, "Authorization Failed", "Access was not granted.")
		return
	}

	token, err := h.exchanger.Exchange(r.Context(), code)
	if err != nil {
		h.Send(OAuthResult{err: fmt.Errorf("token exchange failed: %w", err)})
		h.page(w, http.StatusInternalServerError, "Authorization Failed", "The token exchange failed.")
		return
	}

	h.Send(OAuthResult{Token: token})
	h.page(w, http.StatusOK, "Authorization Successful", fmt.Sprintf("%s is connected. You can close this window and return to the terminal.", h.provider))
}

func (h *OAuthHandler) page(w http.ResponseWriter, status int, title, message string) {
	color := template.CSS("#1DB954")
	if status >= http.StatusBadRequest {
		color = "#D93025"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = callbackPage.Execute(w, callbackView{Title: title, Message: message, Color: color})
}

// Send delivers result once and closes the channel.
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result receives exactly one result.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}
