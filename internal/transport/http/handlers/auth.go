package handlers

import (
	"log/slog"
	"net/http"

	"github.com/sessionkit/auth-api/internal/pkg/log"
	"github.com/sessionkit/auth-api/internal/service"
	"github.com/sessionkit/auth-api/internal/transport/http/apierrors"
	"github.com/sessionkit/auth-api/internal/transport/http/guard"
	"github.com/sessionkit/auth-api/internal/validation"
)

// Login выпускает сессию пользователю, которого проверила стратегия Local.
// Ответ: 200 без тела и две cookie.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	p, ok := guard.PrincipalFrom(r.Context())
	if !ok || p.User == nil {
		apierrors.WriteError(w, r, service.ErrUnauthorized)
		return
	}

	sess, err := h.svc.IssueSession(r.Context(), p.User)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.cookies.setSession(w, sess)
	log.From(r.Context()).Info("login_succeeded")
	w.WriteHeader(http.StatusOK)
}

// Refresh ротирует сессию по refresh-токену, принятому стратегией Refresh.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	p, ok := guard.PrincipalFrom(r.Context())
	if !ok || p.User == nil {
		apierrors.WriteError(w, r, service.ErrUnauthorized)
		return
	}

	sess, err := h.svc.RotateSession(r.Context(), p.User)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.cookies.setSession(w, sess)
	w.WriteHeader(http.StatusOK)
}

// Register создаёт пользователя; сессию не выпускает.
// Ответ: 201 и публичная запись пользователя.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in validation.RegisterInput
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	reg, err := validation.Register(in)
	if err != nil {
		log.From(r.Context()).Info("register_invalid", slog.String("err", err.Error()))
		apierrors.WriteError(w, r, err)
		return
	}

	user, err := h.svc.Register(r.Context(), reg)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// Me возвращает полезную нагрузку access-токена как есть.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := guard.PrincipalFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, p.TokenPayload)
}

// Logout забывает сохранённый refresh-хэш и удаляет cookie.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	p, ok := guard.PrincipalFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrUnauthorized)
		return
	}

	if err := h.svc.Logout(r.Context(), p.ID); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.cookies.clearSession(w)
	w.WriteHeader(http.StatusNoContent)
}
