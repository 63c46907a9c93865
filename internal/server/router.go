package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/schoolhub/backend/internal/handlers"
	"github.com/schoolhub/backend/internal/middleware"
	"github.com/schoolhub/backend/internal/types"
)

type RouterConfig struct {
	AuthHandler       *handlers.AuthHandler
	AuthMiddleware    *middleware.AuthMiddleware
	UserHandler       *handlers.UserHandler
	CourseHandler     *handlers.CourseHandler
	AssignmentHandler *handlers.AssignmentHandler
	SocialHandler     *handlers.SocialHandler
	EventsHandler     *handlers.EventsHandler
	AllowOrigins      []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	api := router.Group("/api")
	{
		api.POST("/register", cfg.AuthHandler.Register)
		api.POST("/login", cfg.AuthHandler.Login)
	}
	router.POST("/refresh", cfg.AuthHandler.Refresh)

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	// Auth
	protected.POST("/logout", cfg.AuthHandler.Logout)
	// User
	protected.GET("/user", cfg.UserHandler.GetMe)
	// Events
	protected.GET("/events/stream", cfg.EventsHandler.Stream)

	// Courses: everyone reads, teachers and admins write
	protected.GET("/courses", cfg.CourseHandler.ListCourses)
	staff := protected.Group("/")
	staff.Use(cfg.AuthMiddleware.RequireRole(types.RoleTeacher))
	{
		staff.POST("/courses", cfg.CourseHandler.CreateCourse)
		staff.PUT("/courses/:id", cfg.CourseHandler.EditCourse)
		staff.DELETE("/courses/:id", cfg.CourseHandler.DeleteCourse)
		staff.POST("/courses/:id/sections", cfg.CourseHandler.AddSection)
		staff.PUT("/courses/:id/sections/:title", cfg.CourseHandler.RenameSection)
		staff.DELETE("/courses/:id/sections/:title", cfg.CourseHandler.DeleteSection)
		staff.POST("/courses/:id/sections/:title/files", cfg.CourseHandler.UploadFile)
		staff.PUT("/courses/:id/sections/:title/files/:index", cfg.CourseHandler.RenameFile)
		staff.DELETE("/courses/:id/sections/:title/files/:index", cfg.CourseHandler.DeleteFile)
	}

	// Assignments
	protected.GET("/assignments", cfg.AssignmentHandler.ListByCourse)
	protected.POST("/assignments/:id/submissions", cfg.AssignmentHandler.Submit)
	staff.POST("/assignments", cfg.AssignmentHandler.Publish)
	staff.GET("/assignments/:id/submissions", cfg.AssignmentHandler.ListSubmissions)
	staff.PUT("/submissions/:id/grade", cfg.AssignmentHandler.Grade)
	staff.DELETE("/assignments/:id", cfg.AssignmentHandler.Delete)

	// Community
	protected.GET("/articles", cfg.SocialHandler.ListArticles)
	protected.POST("/articles", cfg.SocialHandler.CreateArticle)
	protected.DELETE("/articles/:id", cfg.SocialHandler.DeleteArticle)
	protected.GET("/questions", cfg.SocialHandler.ListQuestions)
	protected.POST("/questions", cfg.SocialHandler.CreateQuestion)
	protected.DELETE("/questions/:id", cfg.SocialHandler.DeleteQuestion)
	protected.GET("/comments", cfg.SocialHandler.ListComments)
	protected.POST("/comments", cfg.SocialHandler.AddComment)
	protected.DELETE("/comments/:id", cfg.SocialHandler.DeleteComment)

	// Admin console
	admin := protected.Group("/")
	admin.Use(cfg.AuthMiddleware.RequireRole(types.RoleAdmin))
	{
		admin.GET("/users", cfg.UserHandler.ListUsers)
		admin.PUT("/users/:id/role", cfg.UserHandler.ChangeRole)
		admin.DELETE("/users/:id", cfg.UserHandler.DeleteUser)
	}

	return router
}
