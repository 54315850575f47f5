// Package httpapi exposes the authentication services as a JSON API routed
// with gorilla/mux.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/wbcms/internal/common"
	"github.com/dmitrijs2005/wbcms/internal/logging"
	"github.com/dmitrijs2005/wbcms/internal/server/auth"
	"github.com/dmitrijs2005/wbcms/internal/server/models"
	"github.com/dmitrijs2005/wbcms/internal/server/ratelimit"
	"github.com/dmitrijs2005/wbcms/internal/server/services"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Public success messages. The forgot-password message is returned for
// known and unknown accounts alike.
const (
	MsgResetRequested = "If an account exists with this email, you will receive password reset instructions."
	MsgResetDone      = "Password has been reset successfully. You can now login with your new password."
	MsgSignedUp       = "Account created successfully. Please login."

	msgThrottled = "Too many password reset requests. Please try again later."
)

// resetClientPrefix namespaces per-client forgot-password counters.
const resetClientPrefix = "reset-client:"

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

type AuthService interface {
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	Signup(ctx context.Context, u services.NewUser) (*models.User, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.LoginResult, error)
	Authenticate(ctx context.Context, accessToken string) (*auth.Claims, error)
}

type ResetService interface {
	RequestReset(ctx context.Context, email string) error
	ConfirmReset(ctx context.Context, token, password string) error
}

// HealthCheck reports whether backing stores are reachable.
type HealthCheck func(ctx context.Context) error

// Handler carries the dependencies shared by all routes.
type Handler struct {
	users   AuthService
	resets  ResetService
	health  HealthCheck
	metrics *Metrics
	logger  logging.Logger

	resetThrottle *clientThrottle
}

func NewHandler(users AuthService, resets ResetService, health HealthCheck, metrics *Metrics, l logging.Logger) *Handler {
	if health == nil {
		health = func(context.Context) error { return errNoHealthCheck }
	}
	return &Handler{users: users, resets: resets, health: health, metrics: metrics, logger: l.With("module", "http_api")}
}

// WithResetThrottle limits forgot-password calls to limit per window for
// each client address, counted in l.
func (h *Handler) WithResetThrottle(l ratelimit.Limiter, limit int, window time.Duration) *Handler {
	h.resetThrottle = &clientThrottle{limiter: l, limit: limit, window: window, prefix: resetClientPrefix}
	return h
}

// Router builds the route table. Every API path also answers with a
// trailing slash.
func (h *Handler) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(h.instrument, h.recoverer)

	post := func(path string, fn http.HandlerFunc) {
		r.HandleFunc(path, fn).Methods(http.MethodPost)
		r.HandleFunc(path+"/", fn).Methods(http.MethodPost)
	}
	post("/login", h.login)
	post("/signup", h.signup)
	post("/token", h.obtainToken)
	post("/token/refresh", h.refresh)
	post("/forgot-password", h.throttle(h.resetThrottle, h.forgotPassword))
	post("/reset-password/{token}", h.resetPassword)

	r.HandleFunc("/me", h.me).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(h.metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found.", Code: "NOT_FOUND"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "Method not allowed.", Code: "METHOD_NOT_ALLOWED"})
	})

	return requestID(r)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userView struct {
	UserID             string  `json:"user_id"`
	Email              string  `json:"email"`
	Role               string  `json:"role"`
	FirstName          string  `json:"first_name,omitempty"`
	LastName           string  `json:"last_name,omitempty"`
	StudentNumber      *string `json:"student_number"`
	RegistrationNumber *string `json:"registration_number"`
	Programme          *int64  `json:"programme"`
	HasProfile         string  `json:"has_profile"`
}

func newUserView(u *models.User) userView {
	return userView{
		UserID:             u.ID,
		Email:              u.Email,
		Role:               string(u.Role),
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		StudentNumber:      u.StudentNumber,
		RegistrationNumber: u.RegistrationNumber,
		Programme:          u.ProgrammeID,
		HasProfile:         boolString(u.HasProfile),
	}
}

type tokenResponse struct {
	Access  string    `json:"access"`
	Refresh string    `json:"refresh"`
	User    *userView `json:"user,omitempty"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.users.Login(r.Context(), req.Email, req.Password)
	h.metrics.authEvent("login", err)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	view := newUserView(res.User)
	writeJSON(w, http.StatusOK, tokenResponse{Access: res.Tokens.AccessToken, Refresh: res.Tokens.RefreshToken, User: &view})
}

// obtainToken is login for token clients: the same check, no user summary.
func (h *Handler) obtainToken(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.users.Login(r.Context(), req.Email, req.Password)
	h.metrics.authEvent("token", err)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Access: res.Tokens.AccessToken, Refresh: res.Tokens.RefreshToken})
}

type signupRequest struct {
	Email              string  `json:"email"`
	Password           string  `json:"password"`
	FirstName          string  `json:"first_name"`
	LastName           string  `json:"last_name"`
	StudentNumber      *string `json:"student_number"`
	RegistrationNumber *string `json:"registration_number"`
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !h.decode(w, r, &req) {
		return
	}

	u, err := h.users.Signup(r.Context(), services.NewUser{
		Email:              req.Email,
		Password:           req.Password,
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		StudentNumber:      req.StudentNumber,
		RegistrationNumber: req.RegistrationNumber,
	})
	h.metrics.authEvent("signup", err)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		Message string   `json:"message"`
		User    userView `json:"user"`
	}{MsgSignedUp, newUserView(u)})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.users.RefreshToken(r.Context(), req.Refresh)
	h.metrics.authEvent("refresh", err)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Access: res.Tokens.AccessToken, Refresh: res.Tokens.RefreshToken})
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	err := h.resets.RequestReset(r.Context(), req.Email)
	h.metrics.authEvent("reset_request", err)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{MsgResetRequested})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	err := h.resets.ConfirmReset(r.Context(), mux.Vars(r)["token"], req.Password)
	h.metrics.authEvent("reset_confirm", err)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{MsgResetDone})
}

type meResponse struct {
	UserID             string  `json:"user_id"`
	Email              string  `json:"email"`
	Role               string  `json:"role"`
	StudentNumber      *string `json:"student_number"`
	RegistrationNumber *string `json:"registration_number"`
	Programme          *int64  `json:"programme"`
	HasProfile         string  `json:"has_profile"`
	ExpiresAt          int64   `json:"exp"`
}

// me returns the claim snapshot of the presented access token, not the
// current user record.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get(common.AuthorizationHeaderName)
	token, ok := strings.CutPrefix(header, common.BearerPrefix)
	if !ok {
		token = ""
	}

	claims, err := h.users.Authenticate(r.Context(), strings.TrimSpace(token))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := meResponse{
		UserID:             claims.UserID,
		Email:              claims.Email,
		Role:               string(claims.Role),
		StudentNumber:      claims.StudentNumber,
		RegistrationNumber: claims.RegistrationNumber,
		Programme:          claims.Programme,
		HasProfile:         boolString(claims.HasProfile),
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Unix()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.health(r.Context()); err != nil {
		logging.LogError(r.Context(), h.logger, "health check failed", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- helpers below ---

// decode reads a JSON body into dst. An empty body leaves dst zeroed so the
// service reports which field is missing. On failure it writes a 400 and
// returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Debug(r.Context(), "malformed request body", "error", err,
			"request_id", RequestIDFromContext(r.Context()))
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Malformed request body.", Code: string(services.KindValidation)})
		return false
	}
	return true
}

// fail writes the public form of err. Server-side failures are logged with
// their cause; client errors are not.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := describe(err)
	if status >= http.StatusInternalServerError {
		logging.LogError(r.Context(), h.logger, "request failed", err,
			"request_id", RequestIDFromContext(r.Context()), "route", routeTemplate(r))
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// errNoHealthCheck is reported when the handler was built without one.
var errNoHealthCheck = errors.New("no health check configured")
