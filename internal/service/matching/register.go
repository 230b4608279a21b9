package matching

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oggyb/swipelingo/internal/app"
	"github.com/oggyb/swipelingo/internal/db"
	"github.com/oggyb/swipelingo/internal/httpx"
)

// Registrar ties the matching routes into the HTTP router.
type Registrar struct {
	service *Service
}

// NewRegistrar creates a new Registrar for the matching service.
func NewRegistrar(appCtx *app.AppContext, opts ...Option) *Registrar {
	return &Registrar{service: NewService(appCtx, opts...)}
}

// RegisterRoutes attaches the matching handlers under r.
func (r *Registrar) RegisterRoutes(rg gin.IRouter) {
	rg.POST("/swipes", r.recordSwipe)
	rg.GET("/candidates", r.candidates)
}

type swipeRequest struct {
	ActorID   uint64       `json:"actor_id"`
	TargetID  uint64       `json:"target_id"`
	Direction db.Direction `json:"direction"`
}

func (r *Registrar) recordSwipe(c *gin.Context) {
	var req swipeRequest
	if err := httpx.BindJSON(c, "matching.record", &req); err != nil {
		httpx.WriteError(c, err)
		return
	}

	res, err := r.service.RecordSwipe(c.Request.Context(), req.ActorID, req.TargetID, req.Direction)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (r *Registrar) candidates(c *gin.Context) {
	userID, err := httpx.Uint64Query(c, "matching.candidates", "user_id")
	if err != nil {
		httpx.WriteError(c, err)
		return
	}

	users, err := r.service.NextCandidates(c.Request.Context(), userID, httpx.ListQuery(c, "languages"))
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}
