package conversation

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oggyb/swipelingo/internal/app"
	"github.com/oggyb/swipelingo/internal/httpx"
)

// Registrar ties the conversation routes into the HTTP router.
type Registrar struct {
	service *Service
}

func NewRegistrar(appCtx *app.AppContext, opts ...Option) *Registrar {
	return &Registrar{service: NewService(appCtx, opts...)}
}

func (r *Registrar) RegisterRoutes(rg gin.IRouter) {
	rg.GET("/matches", r.listMatches)
	rg.POST("/messages", r.send)
	rg.GET("/messages", r.fetchThread)
}

type sendRequest struct {
	MatchID  uint64 `json:"match_id"`
	SenderID uint64 `json:"sender_id"`
	Body     string `json:"body"`
}

func (r *Registrar) send(c *gin.Context) {
	var req sendRequest
	if err := httpx.BindJSON(c, "conversation.send", &req); err != nil {
		httpx.WriteError(c, err)
		return
	}

	msg, err := r.service.Send(c.Request.Context(), req.MatchID, req.SenderID, req.Body)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (r *Registrar) fetchThread(c *gin.Context) {
	const op = "conversation.fetch_thread"

	matchID, err := httpx.Uint64Query(c, op, "match_id")
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	viewerID, err := httpx.Uint64Query(c, op, "viewer_id")
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	limit, err := httpx.IntQuery(c, op, "limit", 0)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	offset, err := httpx.IntQuery(c, op, "offset", 0)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}

	msgs, err := r.service.FetchThread(c.Request.Context(), matchID, viewerID, limit, offset)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (r *Registrar) listMatches(c *gin.Context) {
	userID, err := httpx.Uint64Query(c, "conversation.list_matches", "user_id")
	if err != nil {
		httpx.WriteError(c, err)
		return
	}

	list, err := r.service.ListMatches(c.Request.Context(), userID)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
