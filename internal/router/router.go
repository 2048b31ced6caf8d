package router

import (
	"net/http"
	"socialconnect/internal/handlers"
	"socialconnect/internal/middleware"
	"socialconnect/internal/services"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const sessionName = "socialconnect_session"

// Deps is everything the HTTP layer needs.
type Deps struct {
	DB            *gorm.DB
	Users         *services.UserService
	Profiles      *services.ProfileService
	Follows       *services.FollowService
	Posts         *services.PostService
	Engagement    *services.EngagementService
	Feed          *services.FeedService
	Notifications *services.NotificationService
	Admin         *services.AdminService

	SessionSecret string
	SecureCookies bool
	MaxImageBytes int64
	Log           *zap.Logger
}

// New builds the engine with the middleware chain and all routes.
func New(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(d.Log), middleware.Recovery(d.Log))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	store := cookie.NewStore([]byte(d.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 3600,
		HttpOnly: true,
		Secure:   d.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(middleware.LoadUser(d.Users, d.Log))

	RegisterRoutes(r, d)
	return r
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Handlers
	authHandler := handlers.NewAuthHandler(d.Users, d.Log)
	userHandler := handlers.NewUserHandler(d.Profiles, d.Follows, d.MaxImageBytes)
	postHandler := handlers.NewPostHandler(d.Posts, d.Engagement, d.MaxImageBytes)
	feedHandler := handlers.NewFeedHandler(d.Feed)
	notificationHandler := handlers.NewNotificationHandler(d.Notifications)
	adminHandler := handlers.NewAdminHandler(d.Admin)

	r.GET("/healthz", func(c *gin.Context) {
		if d.DB != nil {
			sqlDB, err := d.DB.DB()
			if err == nil {
				err = sqlDB.PingContext(c.Request.Context())
			}
			if err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	// 公共路由 (Public Routes)
	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)                           // 注册
		auth.GET("/verify", authHandler.Verify)                                // 邮箱确认回调
		auth.POST("/login", authHandler.Login)                                 // 登录
		auth.POST("/password-reset", authHandler.PasswordReset)                // 发送重置邮件
		auth.POST("/password-reset-confirm", authHandler.PasswordResetConfirm) // 确认重置
	}

	// 受保护路由 (Protected Routes)
	authorized := api.Group("")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.POST("/auth/logout", authHandler.Logout)
		authorized.POST("/auth/change-password", authHandler.ChangePassword)
		authorized.GET("/auth/search-users", authHandler.SearchUsers)

		authorized.GET("/users", userHandler.List)
		authorized.GET("/users/me", userHandler.Me)
		authorized.PUT("/users/me", userHandler.UpdateMe)
		authorized.PATCH("/users/me", userHandler.UpdateMe)
		authorized.GET("/users/:id", userHandler.Detail)
		authorized.POST("/users/:id/follow", userHandler.Follow)
		authorized.DELETE("/users/:id/follow", userHandler.Unfollow)
		authorized.GET("/users/:id/followers", userHandler.Followers)
		authorized.GET("/users/:id/following", userHandler.Following)
		authorized.GET("/users/:id/stats", userHandler.Stats)

		authorized.GET("/posts", postHandler.List)
		authorized.POST("/posts", postHandler.Create)
		authorized.GET("/posts/mine", postHandler.Mine)
		authorized.GET("/posts/:id", postHandler.Detail)
		authorized.PUT("/posts/:id", postHandler.Update)
		authorized.PATCH("/posts/:id", postHandler.Update)
		authorized.DELETE("/posts/:id", postHandler.Delete)
		authorized.POST("/posts/:id/like", postHandler.ToggleLike)
		authorized.GET("/posts/:id/comments", postHandler.ListComments)
		authorized.POST("/posts/:id/comments", postHandler.AddComment)
		authorized.DELETE("/comments/:id", postHandler.DeleteComment)

		authorized.GET("/feed", feedHandler.Get)

		authorized.GET("/notifications", notificationHandler.List)                   // 我的通知列表
		authorized.POST("/notifications/:id/read", notificationHandler.Read)         // 标记单条通知为已读
		authorized.POST("/notifications/mark-all-read", notificationHandler.ReadAll) // 全部通知标记为已读
		authorized.DELETE("/notifications/:id", notificationHandler.Delete)          // 删除单条通知
	}

	// 管理后台 (Admin Routes)
	admin := api.Group("/admin")
	admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
	{
		admin.GET("/users", adminHandler.Users)
		admin.GET("/users/:id", adminHandler.UserDetail)
		admin.POST("/users/:id/deactivate", adminHandler.Deactivate)
		admin.GET("/posts", adminHandler.Posts)
		admin.DELETE("/posts/:id", adminHandler.DeletePost)
		admin.PATCH("/posts/:id", adminHandler.SetPostActive)
		admin.GET("/stats", adminHandler.Stats)
	}
}
