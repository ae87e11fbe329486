package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sessionkit/auth-api/internal/models"
	"github.com/sessionkit/auth-api/internal/service"
	"github.com/sessionkit/auth-api/internal/transport/http/apierrors"
	"github.com/sessionkit/auth-api/internal/transport/http/guard"
)

// UsersPage — страница списка пользователей админ-панели.
type UsersPage struct {
	Users  []models.User `json:"users"`
	Limit  uint64        `json:"limit"`
	Offset uint64        `json:"offset"`
}

// SetTierRequest — тело назначения уровня; null снимает уровень.
type SetTierRequest struct {
	Tier *models.Tier `json:"tier"`
}

// MembershipResponse — текущий уровень пользователя.
type MembershipResponse struct {
	Tier models.Tier `json:"tier"`
}

// ListUsers — GET /admin/users?limit=&offset=.
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryUint(r, "limit")
	if err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	offset, err := queryUint(r, "offset")
	if err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	users, err := h.svc.ListUsers(r.Context(), limit, offset)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}

	writeJSON(w, http.StatusOK, UsersPage{Users: users, Limit: service.PageSize(limit), Offset: offset})
}

// SetTier — PUT /admin/users/{id}/tier.
func (h *Handlers) SetTier(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	var in SetTierRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	if err := h.svc.SetTier(r.Context(), id, in.Tier); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Membership — GET /user/membership. Запись пользователя уже загрузил RequireTiers.
func (h *Handlers) Membership(w http.ResponseWriter, r *http.Request) {
	p, ok := guard.PrincipalFrom(r.Context())
	if !ok || p.User == nil || p.User.Tier == nil {
		apierrors.WriteError(w, r, service.ErrForbidden)
		return
	}

	writeJSON(w, http.StatusOK, MembershipResponse{Tier: *p.User.Tier})
}

// queryUint читает неотрицательный параметр запроса. Значения больше
// math.MaxInt64 отклоняются: в Postgres limit и offset имеют тип bigint.
func queryUint(r *http.Request, key string) (uint64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}

	return strconv.ParseUint(v, 10, 63)
}
