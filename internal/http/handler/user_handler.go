package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sandeepkv93/device-session-guard/internal/http/middleware"
	"github.com/sandeepkv93/device-session-guard/internal/http/response"
	"github.com/sandeepkv93/device-session-guard/internal/observability"
	"github.com/sandeepkv93/device-session-guard/internal/service"
)

type UserHandler struct {
	users service.UserServiceInterface
}

func NewUserHandler(users service.UserServiceInterface) *UserHandler {
	return &UserHandler{users: users}
}

type profileResponse struct {
	ID              uint   `json:"id"`
	Email           string `json:"email"`
	FullName        string `json:"full_name"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	ProfileImage    string `json:"profile_image,omitempty"`
	RoleID          uint   `json:"role"`
	RoleName        string `json:"role_name"`
	RoleDisplayName string `json:"role_display_name"`
	RememberMe      bool   `json:"remember_me"`
	AccountVerified bool   `json:"is_account_verified"`
}

type changePasswordBody struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (h *UserHandler) ProfileDetails(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "missing principal", nil)
		return
	}
	u, err := h.users.Profile(r.Context(), p.UserID)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	out := profileResponse{
		ID:              u.ID,
		Email:           u.Email,
		FullName:        u.FullName,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		ProfileImage:    u.ProfileImage,
		RoleID:          u.RoleID,
		RememberMe:      u.RememberMe,
		AccountVerified: u.AccountVerified,
	}
	if u.Role != nil {
		out.RoleName = u.Role.Name
		out.RoleDisplayName = u.Role.DisplayName
	}
	response.JSON(w, r, http.StatusOK, out)
}

func (h *UserHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "missing principal", nil)
		return
	}
	page, err := queryInt(r, "page")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "invalid page", nil)
		return
	}
	pageSize, err := queryInt(r, "page_size")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "invalid page_size", nil)
		return
	}
	res, err := h.users.ListSessions(r.Context(), p.UserID, page, pageSize)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, res)
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "missing principal", nil)
		return
	}
	var body changePasswordBody
	if err := decodeJSON(r, &body); err != nil {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, err.Error(), nil)
		return
	}
	if err := h.users.ChangePassword(r.Context(), p.UserID, body.OldPassword, body.NewPassword); err != nil {
		observability.Audit(r, "user.change_password", "outcome", "failure", "user_id", p.UserID)
		middleware.WriteServiceError(w, r, err)
		return
	}
	observability.Audit(r, "user.change_password", "outcome", "success", "user_id", p.UserID)
	response.Message(w, r, http.StatusOK, "Password changed successfully")
}

// queryInt returns 0 for an absent parameter; the repository applies defaults.
func (h *UserHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "missing principal", nil)
		return
	}
	sessionID, err := strconv.ParseUint(chi.URLParam(r, "session_id"), 10, 64)
	if err != nil || sessionID == 0 {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "invalid session id", nil)
		return
	}
	if err := h.users.RevokeSession(r.Context(), p.UserID, uint(sessionID)); err != nil {
		observability.Audit(r, "user.revoke_session", "outcome", "failure", "user_id", p.UserID, "session_id", sessionID)
		middleware.WriteServiceError(w, r, err)
		return
	}
	observability.Audit(r, "user.revoke_session", "outcome", "success", "user_id", p.UserID, "session_id", sessionID)
	response.Message(w, r, http.StatusOK, "Session revoked")
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
