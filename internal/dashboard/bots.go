package dashboard

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Dev-PGVAA/tg-group-bot/internal/supervisor"
)

type botRequest struct {
	Name string `form:"name" json:"name" binding:"required"`
}

func (s *Server) listBots(c *gin.Context) {
	c.JSON(http.StatusOK, s.bots.List())
}

func (s *Server) controlBot(c *gin.Context) {
	var req botRequest
	if err := c.ShouldBind(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "name is required")
		return
	}

	// the child must not die with the HTTP request
	ctx := context.WithoutCancel(c.Request.Context())
	res, err := s.bots.Control(ctx, req.Name, c.Param("action"))
	switch {
	case errors.Is(err, supervisor.ErrUnknownBot):
		c.JSON(http.StatusNotFound, res)
	case errors.Is(err, supervisor.ErrUnknownAction):
		c.JSON(http.StatusBadRequest, res)
	case res.Status != "ok":
		c.JSON(http.StatusInternalServerError, res)
	default:
		c.JSON(http.StatusOK, res)
	}
}

func (s *Server) tailBot(c *gin.Context) {
	n, _ := strconv.Atoi(c.Query("lines"))
	lines, err := s.bots.Tail(c.Param("name"), n)
	switch {
	case errors.Is(err, supervisor.ErrUnknownBot):
		jsonError(c, http.StatusNotFound, err.Error())
	case err != nil:
		jsonError(c, http.StatusInternalServerError, err.Error())
	default:
		if lines == nil {
			lines = []string{}
		}
		c.JSON(http.StatusOK, gin.H{"name": c.Param("name"), "lines": lines})
	}
}
