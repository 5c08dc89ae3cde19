package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"geminichat/internal/auth"
	"geminichat/internal/chat"
	"geminichat/internal/models"
)

// ConversationManager hands out the per-user conversations.
type ConversationManager interface {
	Conversation(userID int64) *chat.Sequencer
	Drop(ctx context.Context, userID int64)
}

// AccountService is the account store behind the auth routes.
type AccountService interface {
	Signup(ctx context.Context, email, password, name string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// Handler wires HTTP routes to accounts, tokens and conversations.
type Handler struct {
	accounts      AccountService
	auth          *auth.Service
	conversations ConversationManager
	limiter       *auth.LoginLimiter
}

// NewHandler constructs a Handler. limiter may be nil to disable throttling.
func NewHandler(accounts AccountService, authService *auth.Service, conversations ConversationManager, limiter *auth.LoginLimiter) *Handler {
	return &Handler{
		accounts:      accounts,
		auth:          authService,
		conversations: conversations,
		limiter:       limiter,
	}
}

func (h *Handler) authorizedUserID(c *gin.Context) (int64, bool) {
	userID, ok := auth.UserIDFromContext(c)
	if !ok || userID <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return 0, false
	}
	return userID, true
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	credentials := api.Group("/auth")
	if h.limiter != nil {
		credentials.Use(h.limiter.Middleware())
	}
	credentials.POST("/signup", h.signup)
	credentials.POST("/login", h.login)

	authed := api.Group("", h.auth.Middleware(), h.auth.CSRFMiddleware())
	authed.POST("/auth/logout", h.logout)
	authed.GET("/auth/me", h.me)
	authed.DELETE("/auth/me", h.deleteMe)

	authed.GET("/chat", h.getChat)
	authed.POST("/chat/messages", h.postMessage)
	authed.DELETE("/chat", h.resetChat)
	authed.GET("/chat/events", h.chatEvents)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) setAuthCookies(c *gin.Context, authToken, csrfToken string) {
	ttl := int(h.auth.TokenTTL().Seconds())
	if ttl <= 0 {
		ttl = 3600
	}
	secure := gin.Mode() == gin.ReleaseMode
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.auth.AuthCookieName(),
		Value:    authToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.auth.CSRFCookieName(),
		Value:    csrfToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearAuthCookies(c *gin.Context) {
	for _, name := range []string{h.auth.AuthCookieName(), h.auth.CSRFCookieName()} {
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     name,
			Value:    "",
			MaxAge:   -1,
			Path:     "/",
			Secure:   gin.Mode() == gin.ReleaseMode,
			HttpOnly: name == h.auth.AuthCookieName(),
			SameSite: http.SameSiteStrictMode,
		})
	}
}
