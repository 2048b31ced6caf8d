package handlers

import (
	"net/http"
	"socialconnect/internal/middleware"
	"socialconnect/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	users *services.UserService
	log   *zap.Logger
}

func NewAuthHandler(users *services.UserService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, log: log}
}

type registerRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.users.Register(c.Request.Context(), services.RegisterInput{
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered. Please check your email to confirm your account.",
		"user":    user,
	})
}

// Verify handles the confirmation link the provider mails out.
func (h *AuthHandler) Verify(c *gin.Context) {
	user, err := h.users.Verify(c.Request.Context(), c.Query("access_token"))
	if err != nil {
		respondError(c, err)
		return
	}
	message := "Email not confirmed yet"
	if user.IsActive {
		message = "Email confirmed, account activated"
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "user": user})
}

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	login := req.Email
	if login == "" {
		login = req.Username
	}

	res, err := h.users.Login(c.Request.Context(), login, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	session := sessions.Default(c)
	session.Set(middleware.SessionUserID, res.User.ID)
	if res.AccessToken != "" {
		session.Set(middleware.SessionToken, res.AccessToken)
	} else {
		session.Delete(middleware.SessionToken)
	}
	if err := session.Save(); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Login successful",
		"user":         res.User,
		"access_token": res.AccessToken,
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.users.Logout(c.Request.Context(), middleware.AccessToken(c)); err != nil {
		// the local session is dropped regardless
		h.log.Warn("provider sign-out failed", zap.Error(err))
	}
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *AuthHandler) PasswordReset(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := h.users.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password reset email sent"})
}

func (h *AuthHandler) PasswordResetConfirm(c *gin.Context) {
	var req struct {
		AccessToken string `json:"access_token"`
		NewPassword string `json:"new_password"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := h.users.ConfirmPasswordReset(c.Request.Context(), req.AccessToken, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password has been reset"})
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if !bindJSON(c, &req) {
		return
	}
	user := middleware.CurrentUser(c)
	err := h.users.ChangePassword(c.Request.Context(), user, middleware.AccessToken(c), req.OldPassword, req.NewPassword)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed"})
}

func (h *AuthHandler) SearchUsers(c *gin.Context) {
	users, err := h.users.SearchUsers(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}
