package profile

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oggyb/swipelingo/internal/app"
	"github.com/oggyb/swipelingo/internal/db"
	svcErr "github.com/oggyb/swipelingo/internal/errors"
	"github.com/oggyb/swipelingo/internal/httpx"
	"github.com/oggyb/swipelingo/internal/repository"
)

// Registrar ties the profile and teacher routes into the HTTP router.
type Registrar struct {
	service *Service
}

func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{service: NewService(appCtx)}
}

func (r *Registrar) RegisterRoutes(rg gin.IRouter) {
	rg.POST("/users", r.syncUser)
	rg.GET("/users/:id", r.getUser)
	rg.PUT("/users/:id", r.updateUser)
	rg.GET("/teachers", r.listTeachers)
	rg.POST("/teachers", r.upsertTeacher)
}

type syncRequest struct {
	TelegramID int64   `json:"telegram_id"`
	Name       string  `json:"name"`
	PhotoURL   *string `json:"photo_url"`
}

func (r *Registrar) syncUser(c *gin.Context) {
	var req syncRequest
	if err := httpx.BindJSON(c, "profile.sync", &req); err != nil {
		httpx.WriteError(c, err)
		return
	}

	u, created, err := r.service.SyncUser(c.Request.Context(), req.TelegramID, req.Name, req.PhotoURL)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, u)
}

func (r *Registrar) getUser(c *gin.Context) {
	id, err := httpx.Uint64Param(c, "profile.get", "id")
	if err != nil {
		httpx.WriteError(c, err)
		return
	}

	u, err := r.service.GetUser(c.Request.Context(), id)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

type updateRequest struct {
	Name              *string   `json:"name"`
	PhotoURL          *string   `json:"photo_url"`
	NativeLanguages   *[]string `json:"native_languages"`
	LearningLanguages *[]string `json:"learning_languages"`
	Timezone          *string   `json:"timezone"`
	Role              *db.Role  `json:"user_role"`
}

func (r *Registrar) updateUser(c *gin.Context) {
	const op = "profile.update"

	id, err := httpx.Uint64Param(c, op, "id")
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	var req updateRequest
	if err := httpx.BindJSON(c, op, &req); err != nil {
		httpx.WriteError(c, err)
		return
	}

	u, err := r.service.UpdateUser(c.Request.Context(), id, repository.UserPatch(req))
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

type teacherRequest struct {
	UserID     uint64  `json:"user_id"`
	HourlyRate float64 `json:"hourly_rate"`
	Bio        *string `json:"bio"`
}

func (r *Registrar) upsertTeacher(c *gin.Context) {
	var req teacherRequest
	if err := httpx.BindJSON(c, "profile.upsert_teacher", &req); err != nil {
		httpx.WriteError(c, err)
		return
	}

	p, err := r.service.UpsertTeacher(c.Request.Context(), req.UserID, req.HourlyRate, req.Bio)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (r *Registrar) listTeachers(c *gin.Context) {
	const op = "profile.list_teachers"

	f := repository.TeacherFilter{
		Subject: strings.TrimSpace(c.Query("subject")),
		Search:  c.Query("search"),
	}
	for name, dst := range map[string]**float64{"min_rate": &f.MinRate, "max_rate": &f.MaxRate} {
		raw := strings.TrimSpace(c.Query(name))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			httpx.WriteError(c, svcErr.Validation(op, name+" must be a number"))
			return
		}
		*dst = &v
	}

	teachers, err := r.service.ListTeachers(c.Request.Context(), f)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, teachers)
}
