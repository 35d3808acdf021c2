package dashboard

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Dev-PGVAA/tg-group-bot/internal/bot/tasks"
	"github.com/Dev-PGVAA/tg-group-bot/internal/store"
)

// formDateLayout is the layout of dates posted by the dashboard form.
const formDateLayout = "2006-01-02"

type channelRequest struct {
	Name string `form:"name" json:"name" binding:"required"`
}

type renameRequest struct {
	OldName string `form:"old_name" json:"old_name" binding:"required"`
	NewName string `form:"new_name" json:"new_name" binding:"required"`
}

type recordRequest struct {
	Index    *int    `form:"index"    json:"index"`
	User     string  `form:"user"     json:"user"     binding:"required"`
	Movement string  `form:"movement" json:"movement" binding:"required"`
	Weight   float64 `form:"weight"   json:"weight"   binding:"gte=0"`
	Date     string  `form:"date"     json:"date"`
}

type indexRequest struct {
	Index *int `form:"index" json:"index" binding:"required"`
}

// outcomeStatus maps a store outcome to an HTTP status.
func outcomeStatus(o store.Outcome) int {
	switch o {
	case store.OutcomeInvalid:
		return http.StatusBadRequest
	case store.OutcomeNotFound:
		return http.StatusNotFound
	case store.OutcomeAlreadyPresent:
		return http.StatusConflict
	case store.OutcomeFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

func replyOutcome(c *gin.Context, o store.Outcome, extra gin.H) {
	code := outcomeStatus(o)
	status := "ok"
	if code != http.StatusOK {
		status = "error"
	}
	body := gin.H{"status": status, "outcome": o}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(code, body)
}

func (s *Server) listChannels(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Channels(c.Request.Context()))
}

func (s *Server) addChannel(c *gin.Context) {
	var req channelRequest
	if err := c.ShouldBind(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "name is required")
		return
	}
	id, o := s.store.AddChannel(c.Request.Context(), req.Name)
	replyOutcome(c, o, gin.H{"channel": id})
}

func (s *Server) deleteChannel(c *gin.Context) {
	var req channelRequest
	if err := c.ShouldBind(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "name is required")
		return
	}
	id, o := s.store.RemoveChannel(c.Request.Context(), req.Name)
	replyOutcome(c, o, gin.H{"channel": id})
}

func (s *Server) editChannel(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBind(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "old_name and new_name are required")
		return
	}
	id, o := s.store.RenameChannel(c.Request.Context(), req.OldName, req.NewName)
	replyOutcome(c, o, gin.H{"channel": id})
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.AggregateStats(c.Request.Context()))
}

func (s *Server) listRecords(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Records(c.Request.Context()))
}

// recordDate converts a form date to the records layout. An empty date
// means today; a date already in the records layout is kept.
func (s *Server) recordDate(in string) (string, bool) {
	layout := s.cfg.Records.DateFormat
	if in == "" {
		loc, err := s.cfg.Location()
		if err != nil {
			loc = time.Local
		}
		return time.Now().In(loc).Format(layout), true
	}
	if t, err := time.Parse(formDateLayout, in); err == nil {
		return t.Format(layout), true
	}
	if _, err := time.Parse(layout, in); err == nil {
		return in, true
	}
	return "", false
}

func (s *Server) bindRecord(c *gin.Context) (recordRequest, store.Record, bool) {
	var req recordRequest
	if err := c.ShouldBind(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "user, movement and a non-negative weight are required")
		return req, store.Record{}, false
	}
	date, ok := s.recordDate(req.Date)
	if !ok {
		jsonError(c, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return req, store.Record{}, false
	}
	return req, store.Record{User: req.User, Movement: req.Movement, Weight: req.Weight, Date: date}, true
}

func (s *Server) addRecord(c *gin.Context) {
	_, rec, ok := s.bindRecord(c)
	if !ok {
		return
	}
	replyOutcome(c, s.store.AddRecord(c.Request.Context(), rec), gin.H{"record": rec})
}

func (s *Server) editRecord(c *gin.Context) {
	req, rec, ok := s.bindRecord(c)
	if !ok {
		return
	}
	if req.Index == nil {
		jsonError(c, http.StatusBadRequest, "index is required")
		return
	}
	replyOutcome(c, s.store.UpdateRecord(c.Request.Context(), *req.Index, rec), gin.H{"record": rec})
}

func (s *Server) deleteRecord(c *gin.Context) {
	var req indexRequest
	if err := c.ShouldBind(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "index is required")
		return
	}
	replyOutcome(c, s.store.DeleteRecord(c.Request.Context(), *req.Index), nil)
}

// triggerReport drops a request file picked up by the records bot.
func (s *Server) triggerReport(c *gin.Context) {
	dir := s.cfg.Reports.RequestsDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		jsonError(c, http.StatusInternalServerError, err.Error())
		return
	}
	name := tasks.TriggerPrefix + "_" + uuid.NewString()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(time.Now().Format(time.RFC3339)), 0o644); err != nil {
		jsonError(c, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("Manual report requested", "file", name)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "request": name})
}
