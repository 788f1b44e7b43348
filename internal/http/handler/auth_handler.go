package handler

import (
	"net/http"

	"github.com/sandeepkv93/device-session-guard/internal/http/middleware"
	"github.com/sandeepkv93/device-session-guard/internal/http/response"
	"github.com/sandeepkv93/device-session-guard/internal/observability"
	"github.com/sandeepkv93/device-session-guard/internal/service"
)

type AuthHandler struct {
	auth service.AuthServiceInterface
}

func NewAuthHandler(auth service.AuthServiceInterface) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type socialSignInBody struct {
	OAuthToken          string `json:"oauthToken"`
	Provider            string `json:"provider"`
	DeviceToken         string `json:"deviceToken"`
	PreviousAccessToken string `json:"previousAccessToken"`
}

type loginBody struct {
	Email               string `json:"email"`
	Password            string `json:"password"`
	RememberMe          *bool  `json:"rememberMe"`
	DeviceToken         string `json:"deviceToken"`
	PreviousAccessToken string `json:"previousAccessToken"`
}

type refreshBody struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	DeviceToken  string `json:"deviceToken"`
}

func (h *AuthHandler) SocialSignIn(w http.ResponseWriter, r *http.Request) {
	var body socialSignInBody
	if err := decodeJSON(r, &body); err != nil {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, err.Error(), nil)
		return
	}
	res, err := h.auth.SocialSignIn(r.Context(), service.SocialSignInRequest{
		Provider:   body.Provider,
		OAuthToken: body.OAuthToken,
		Device:     deviceFromRequest(r, body.DeviceToken, body.PreviousAccessToken),
	})
	if err != nil {
		observability.Audit(r, "auth.social_signin", "outcome", "failure", "provider", body.Provider)
		middleware.WriteServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.social_signin", "outcome", "success", "user_id", res.User.ID)
	response.JSON(w, r, http.StatusOK, res)
}

func (h *AuthHandler) LoginUser(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if err := decodeJSON(r, &body); err != nil {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, err.Error(), nil)
		return
	}
	res, err := h.auth.LoginUser(r.Context(), service.LoginRequest{
		Email:      body.Email,
		Password:   body.Password,
		RememberMe: body.RememberMe,
		Device:     deviceFromRequest(r, body.DeviceToken, body.PreviousAccessToken),
	})
	if err != nil {
		observability.Audit(r, "auth.login", "outcome", "failure")
		middleware.WriteServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.login", "outcome", "success", "user_id", res.User.ID)
	response.JSON(w, r, http.StatusOK, res)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var body refreshBody
	if err := decodeJSON(r, &body); err != nil {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, err.Error(), nil)
		return
	}
	pair, err := h.auth.Refresh(r.Context(), service.RefreshRequest{
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		Device:       deviceFromRequest(r, body.DeviceToken, ""),
	})
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, pair)
}

// Logout is reached through the auth guard, which admits the logout route even when the
// token is no longer valid.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.LogoutToken(r.Context())
	if token == "" {
		token = middleware.BearerToken(r)
	}
	if err := h.auth.Logout(r.Context(), token); err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.logout", "outcome", "success")
	response.Message(w, r, http.StatusOK, "Logged out successfully")
}
