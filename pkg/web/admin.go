package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/514-labs/cla-bot-sub001/pkg/cla"
	"github.com/514-labs/cla-bot-sub001/pkg/config"
	"github.com/514-labs/cla-bot-sub001/pkg/db"
	"github.com/514-labs/cla-bot-sub001/pkg/store"
)

// adminActor is the audit identity for operations performed through the
// admin API. The bearer token carries no user identity of its own.
var adminActor = cla.Actor{Login: "admin-api"}

// AdminController registers the token-guarded admin API. These endpoints
// drive the state changes that trigger rechecks: publishing a CLA, recording
// a signature, editing the bypass list, and forcing a recheck.
func AdminController(ctx context.Context, r *mux.Router, deps Deps) {
	cfg := config.FromContext(ctx)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(adminAuth(cfg))

	c := &adminController{deps: deps}
	api.HandleFunc("/orgs/{org}/cla", c.postCLA).Methods(http.MethodPost)
	api.HandleFunc("/orgs/{org}/signatures", c.postSignature).Methods(http.MethodPost)
	api.HandleFunc("/orgs/{org}/bypass", c.getBypassList).Methods(http.MethodGet)
	api.HandleFunc("/orgs/{org}/bypass/{login}", c.putBypass).Methods(http.MethodPut)
	api.HandleFunc("/orgs/{org}/bypass/{login}", c.deleteBypass).Methods(http.MethodDelete)
	api.HandleFunc("/orgs/{org}/recheck", c.postRecheck).Methods(http.MethodPost)
}

// adminAuth requires the configured bearer token on every admin request.
// With no token configured the whole API is disabled.
func adminAuth(cfg *config.Config) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := cfg.HTTP.AdminToken
			if token == "" {
				renderError(w, http.StatusForbidden, "admin API disabled")
				return
			}
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				renderError(w, http.StatusUnauthorized, "invalid admin token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type adminController struct {
	deps Deps
}

func (c *adminController) postCLA(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		renderError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := c.deps.Engine.PublishCLA(r.Context(), mux.Vars(r)["org"], body.Text, adminActor)
	if err != nil {
		renderEngineError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, res)
}

func (c *adminController) postSignature(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID    int64  `json:"userId"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		AvatarURL string `json:"avatarUrl"`
		Evidence  string `json:"evidence"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		renderError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.UserID == 0 || body.Login == "" {
		renderError(w, http.StatusBadRequest, "userId and login are required")
		return
	}
	if body.Evidence == "" {
		body.Evidence = uuid.New().String()
	}

	res, err := c.deps.Engine.RecordSignature(r.Context(), mux.Vars(r)["org"], cla.SignerParams{
		GithubID:        body.UserID,
		Login:           body.Login,
		Name:            body.Name,
		AvatarURL:       body.AvatarURL,
		RequestEvidence: body.Evidence,
	})
	if err != nil {
		renderEngineError(w, err)
		return
	}
	renderJSON(w, http.StatusCreated, res)
}

func (c *adminController) getBypassList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org, err := c.deps.Engine.OrgBySlug(ctx, mux.Vars(r)["org"])
	if err != nil {
		renderEngineError(w, err)
		return
	}

	accounts, err := store.FromContext(ctx).ListBypassAccounts(ctx, db.FromContext(ctx), org.ID)
	if err != nil {
		renderError(w, http.StatusInternalServerError, "could not list bypass accounts")
		return
	}
	logins := make([]string, 0, len(accounts))
	for _, a := range accounts {
		logins = append(logins, a.GithubLogin)
	}
	renderJSON(w, http.StatusOK, map[string]any{"logins": logins})
}

func (c *adminController) putBypass(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID int64 `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		renderError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.UserID == 0 {
		renderError(w, http.StatusBadRequest, "userId is required")
		return
	}

	vars := mux.Vars(r)
	res, err := c.deps.Engine.AddBypass(r.Context(), vars["org"], body.UserID, vars["login"], adminActor)
	if err != nil {
		renderEngineError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, res)
}

func (c *adminController) deleteBypass(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	res, err := c.deps.Engine.RemoveBypass(r.Context(), vars["org"], vars["login"], adminActor)
	if err != nil {
		renderEngineError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, res)
}

func (c *adminController) postRecheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug := mux.Vars(r)["org"]
	if _, err := c.deps.Engine.OrgBySlug(ctx, slug); err != nil {
		renderEngineError(w, err)
		return
	}
	if c.deps.Tasks == nil {
		renderError(w, http.StatusServiceUnavailable, "task scheduler unavailable")
		return
	}

	runID, err := c.deps.Tasks.Schedule("recheck-"+slug, func(taskCtx context.Context) error {
		_, rerr := c.deps.Engine.RecheckOrganization(taskCtx, slug, cla.RecheckOptions{})
		return rerr
	})
	if err != nil {
		renderError(w, http.StatusServiceUnavailable, "could not schedule recheck")
		return
	}
	renderJSON(w, http.StatusAccepted, map[string]string{"runId": runID})
}

// renderEngineError maps engine errors to HTTP statuses.
func renderEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cla.ErrInvalidLogin):
		renderError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, cla.ErrOrgNotFound):
		renderError(w, http.StatusNotFound, "unknown organization")
	case errors.Is(err, db.ErrRecordNotFound):
		renderError(w, http.StatusNotFound, "not found")
	case errors.Is(err, cla.ErrNoCLA):
		renderError(w, http.StatusConflict, "organization has no published CLA")
	case errors.Is(err, db.ErrDuplicateKey):
		renderError(w, http.StatusConflict, "already exists")
	case errors.Is(err, store.ErrBypassLimitReached):
		renderError(w, http.StatusConflict, "bypass account limit reached")
	case errors.Is(err, cla.ErrNoInstallation):
		renderError(w, http.StatusFailedDependency, "no installation id on record")
	default:
		renderError(w, http.StatusInternalServerError, err.Error())
	}
}
