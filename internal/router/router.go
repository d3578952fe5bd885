package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v4"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"taskhub/internal/auth"
	"taskhub/internal/cache"
	"taskhub/internal/config"
	"taskhub/internal/handler"
)

// attachmentBodyLimit caps task uploads.
const attachmentBodyLimit = "10M"

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	cacheClient *cache.Client,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	projectHandler *handler.ProjectHandler,
	taskHandler *handler.TaskHandler,
	dashboardHandler *handler.DashboardHandler,
) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Add validator
	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	// Public routes
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)
	api.POST("/auth/logout", authHandler.Logout)

	// Secured routes (require JWT authentication)
	secured := api.Group("", echojwt.WithConfig(echojwt.Config{
		SigningKey:  []byte(cfg.JWTSecret),
		TokenLookup: "header:" + echo.HeaderAuthorization,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(auth.Claims)
		},
	}), auth.IdentityMiddleware(cacheClient))

	secured.GET("/me", func(c echo.Context) error {
		identity, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, echo.Map{
			"user_id": identity.UserID,
			"email":   identity.Email,
			"role":    identity.Role,
		})
	})

	// Dashboard routes
	secured.GET("/dashboard/stats", dashboardHandler.Stats)

	// User routes
	secured.GET("/users", userHandler.ListUsers)
	secured.GET("/users/:id", userHandler.GetUser)
	secured.POST("/users", userHandler.CreateUser)
	secured.PUT("/users/:id", userHandler.UpdateUser)
	secured.DELETE("/users/:id", userHandler.DeleteUser)

	// Project routes
	secured.GET("/projects", projectHandler.ListProjects)
	secured.GET("/projects/:id", projectHandler.GetProject)
	secured.POST("/projects", projectHandler.CreateProject)
	secured.PUT("/projects/:id", projectHandler.UpdateProject)
	secured.DELETE("/projects/:id", projectHandler.DeleteProject)

	// Task routes; uploads ride the create/update calls
	upload := middleware.BodyLimit(attachmentBodyLimit)
	secured.GET("/tasks", taskHandler.ListTasks)
	secured.GET("/tasks/:id", taskHandler.GetTask)
	secured.POST("/tasks", taskHandler.CreateTask, upload)
	secured.PUT("/tasks/:id", taskHandler.UpdateTask, upload)
	secured.DELETE("/tasks/:id", taskHandler.DeleteTask)
	secured.PATCH("/tasks/:id/status", taskHandler.UpdateTaskStatus)
	secured.POST("/tasks/:id/approve", taskHandler.ApproveTask)
	secured.POST("/tasks/:id/reject", taskHandler.RejectTask)
	secured.GET("/tasks/:id/attachment", taskHandler.DownloadAttachment)
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
