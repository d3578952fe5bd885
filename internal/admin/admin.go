// Package admin serves a small server-rendered panel over the same services
// as the JSON API. It is reachable by super admins only.
package admin

import (
	"embed"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"taskhub/internal/auth"
	"taskhub/internal/cache"
	"taskhub/internal/model"
	"taskhub/internal/repository"
	"taskhub/internal/service"
)

//go:embed templates/*
var templateFS embed.FS

const sessionCookie = "taskhub_token"

// Handler renders the admin panel.
type Handler struct {
	authService      service.AuthService
	userService      service.UserService
	projectService   service.ProjectService
	taskService      service.TaskService
	dashboardService service.DashboardService
	templates        *template.Template
}

// NewHandler creates the admin handler with parsed templates.
func NewHandler(
	authService service.AuthService,
	userService service.UserService,
	projectService service.ProjectService,
	taskService service.TaskService,
	dashboardService service.DashboardService,
) (*Handler, error) {
	funcMap := template.FuncMap{
		"title": func(s string) string {
			s = strings.ReplaceAll(s, "_", " ")
			if len(s) == 0 {
				return s
			}
			return strings.ToUpper(s[:1]) + s[1:]
		},
		"date": func(t time.Time) string {
			return t.Format("2006-01-02 15:04")
		},
	}
	tmpl, err := template.New("admin").Funcs(funcMap).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Handler{
		authService:      authService,
		userService:      userService,
		projectService:   projectService,
		taskService:      taskService,
		dashboardService: dashboardService,
		templates:        tmpl,
	}, nil
}

// Register mounts the panel under /admin.
func Register(e *echo.Echo, h *Handler, jwtSecret string, cacheClient *cache.Client) {
	g := e.Group("/admin")
	g.GET("/login", h.LoginForm)
	g.POST("/login", h.Login)
	g.POST("/logout", h.Logout)

	secured := g.Group("", echojwt.WithConfig(echojwt.Config{
		SigningKey:  []byte(jwtSecret),
		TokenLookup: "cookie:" + sessionCookie,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(auth.Claims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.Redirect(http.StatusSeeOther, "/admin/login")
		},
	}), auth.IdentityMiddleware(cacheClient), requireSuperAdmin)

	secured.GET("", h.Dashboard)
	secured.GET("/users", h.Users)
	secured.POST("/users/:id/role", h.ChangeRole)
	secured.GET("/projects", h.Projects)
	secured.GET("/tasks", h.Tasks)
}

func requireSuperAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, err := auth.CurrentIdentity(c)
		if err != nil {
			return c.Redirect(http.StatusSeeOther, "/admin/login")
		}
		if !identity.IsSuperAdmin() {
			return echo.NewHTTPError(http.StatusForbidden, "super admin only")
		}
		return next(c)
	}
}

func (h *Handler) render(c echo.Context, name string, data map[string]interface{}) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	return h.templates.ExecuteTemplate(c.Response(), name, data)
}

// LoginForm renders the login page.
func (h *Handler) LoginForm(c echo.Context) error {
	return h.render(c, "login.html", map[string]interface{}{})
}

// Login authenticates and sets the session cookie. Non super-admin users are
// turned away here; the API remains available to them.
func (h *Handler) Login(c echo.Context) error {
	email := c.FormValue("email")
	password := c.FormValue("password")

	accessToken, _, user, err := h.authService.Login(c.Request().Context(), email, password)
	if err != nil || user.Role != model.RoleSuperAdmin {
		return h.render(c, "login.html", map[string]interface{}{
			"Error": "invalid credentials",
		})
	}

	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    accessToken,
		Path:     "/admin",
		HttpOnly: true,
		Expires:  time.Now().Add(auth.AccessTokenExpiry),
	})
	return c.Redirect(http.StatusSeeOther, "/admin")
}

// Logout clears the session cookie.
func (h *Handler) Logout(c echo.Context) error {
	c.SetCookie(&http.Cookie{Name: sessionCookie, Value: "", Path: "/admin", MaxAge: -1})
	return c.Redirect(http.StatusSeeOther, "/admin/login")
}

// Dashboard renders the stats overview.
func (h *Handler) Dashboard(c echo.Context) error {
	identity, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	stats, err := h.dashboardService.Stats(c.Request().Context(), identity)
	if err != nil {
		return err
	}
	return h.render(c, "dashboard.html", map[string]interface{}{
		"Identity": identity,
		"Stats":    stats,
	})
}

// Users renders the user list with role-change forms.
func (h *Handler) Users(c echo.Context) error {
	identity, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	users, err := h.userService.List(c.Request().Context(), identity)
	if err != nil {
		return err
	}
	return h.render(c, "users.html", map[string]interface{}{
		"Identity": identity,
		"Users":    users,
		"Roles":    []model.Role{model.RoleSuperAdmin, model.RoleClient, model.RoleDeveloper},
	})
}

// ChangeRole updates a user's global role.
func (h *Handler) ChangeRole(c echo.Context) error {
	identity, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	role := model.Role(c.FormValue("role"))
	if _, err := h.userService.Update(c.Request().Context(), identity, uint(id), service.UserInput{Role: role}); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/users")
}

// Projects renders the project list with computed progress.
func (h *Handler) Projects(c echo.Context) error {
	identity, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	projects, total, err := h.projectService.List(c.Request().Context(), identity, repository.ProjectFilter{
		Search:  c.QueryParam("search"),
		Status:  model.ProjectStatus(c.QueryParam("status")),
		PerPage: 50,
	})
	if err != nil {
		return err
	}
	return h.render(c, "projects.html", map[string]interface{}{
		"Identity": identity,
		"Projects": projects,
		"Total":    total,
	})
}

// Tasks renders the task list.
func (h *Handler) Tasks(c echo.Context) error {
	identity, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	tasks, total, err := h.taskService.List(c.Request().Context(), identity, repository.TaskFilter{
		Search:  c.QueryParam("search"),
		Status:  model.TaskStatus(c.QueryParam("status")),
		PerPage: 50,
	})
	if err != nil {
		return err
	}
	return h.render(c, "tasks.html", map[string]interface{}{
		"Identity": identity,
		"Tasks":    tasks,
		"Total":    total,
	})
}
