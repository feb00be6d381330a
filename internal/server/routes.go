package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jumperz11/Linkdinscrap/internal/bot"
	"github.com/jumperz11/Linkdinscrap/internal/config"
	"github.com/jumperz11/Linkdinscrap/internal/models"
	"github.com/jumperz11/Linkdinscrap/internal/trigger"
)

func (s *Server) registerRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.GET("/status", s.handleStatus)
	api.POST("/runs", s.handleStartRun)
	api.POST("/runs/stop", s.handleStopRun)
	api.GET("/runs", s.handleListRuns)
	api.GET("/runs/:id/profiles", s.handleRunProfiles)
	api.GET("/config", s.handleGetConfig)
	api.PUT("/config", s.handlePutConfig)
	api.GET("/trigger", s.handleGetTrigger)
	api.PUT("/trigger", s.handlePutTrigger)
	api.GET("/trigger/next", s.handleNextFire)
	api.GET("/events", s.handleEvents)
}

func (s *Server) handleStatus(c *gin.Context) {
	st := s.engine.Status()
	resp := gin.H{
		"state":   st.State,
		"run":     st.Run,
		"current": st.Current,
	}
	if s.recorder != nil {
		resp["recent_log"] = s.recorder.Recent()
	}
	c.JSON(http.StatusOK, resp)
}

type startRunRequest struct {
	Keywords string `json:"keywords"`
}

func (s *Server) handleStartRun(c *gin.Context) {
	var req startRunRequest
	_ = c.ShouldBindJSON(&req) // body is optional; defaults apply

	cfg := s.runDefaults().runConfig(req.Keywords)
	id, err := s.engine.StartRun(c.Request.Context(), cfg)
	if err != nil {
		var verr *bot.ValidationError
		var cerr *bot.ConflictError
		var aerr *bot.AuthError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		case errors.As(err, &cerr):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.As(err, &aerr):
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run_id": id})
}

func (s *Server) handleStopRun(c *gin.Context) {
	s.engine.RequestStop()
	c.JSON(http.StatusAccepted, gin.H{"stopping": true})
}

func (s *Server) handleListRuns(c *gin.Context) {
	since := time.Now().Add(-7 * 24 * time.Hour)
	if v := c.Query("since"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		since = parsed
	}
	runs, err := s.store.RunsSince(c.Request.Context(), since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleRunProfiles(c *gin.Context) {
	profiles, err := s.store.ProfilesByRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}

func (s *Server) handleGetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.runDefaults())
}

func (s *Server) handlePutConfig(c *gin.Context) {
	var d RunDefaults
	if err := c.ShouldBindJSON(&d); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validateDefaults(d); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	s.setRunDefaults(d)
	c.JSON(http.StatusOK, d)
}

func validateDefaults(d RunDefaults) error {
	if d.ScoreThreshold < 0 || d.ScoreThreshold > 100 {
		return &bot.ValidationError{Field: "score_threshold", Msg: "must be 0-100"}
	}
	if d.MaxProfiles <= 0 {
		return &bot.ValidationError{Field: "max_profiles", Msg: "must be > 0"}
	}
	if d.MaxDurationMin <= 0 {
		return &bot.ValidationError{Field: "max_duration_minutes", Msg: "must be > 0"}
	}
	if d.MinDelayMs <= 0 || d.MaxDelayMs < d.MinDelayMs {
		return &bot.ValidationError{Field: "delay", Msg: "bounds must satisfy 0 < min <= max"}
	}
	return nil
}

type triggerRuleJSON struct {
	Enabled  bool     `json:"enabled"`
	Times    []string `json:"times"`
	Days     []string `json:"days"`
	Keywords string   `json:"keywords"`
}

func ruleToJSON(r models.TriggerRule) triggerRuleJSON {
	days := make([]string, 0, len(r.Days))
	for _, d := range r.Days {
		days = append(days, d.String()[:3])
	}
	return triggerRuleJSON{Enabled: r.Enabled, Times: r.Times, Days: days, Keywords: r.Keywords}
}

func (s *Server) handleGetTrigger(c *gin.Context) {
	c.JSON(http.StatusOK, ruleToJSON(s.trigger.Rule()))
}

// handlePutTrigger replaces the rule wholesale: persisted, then re-registered
// so no stale trigger survives.
func (s *Server) handlePutTrigger(c *gin.Context) {
	var req triggerRuleJSON
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	days, err := config.ParseDays(req.Days)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	for _, tm := range req.Times {
		if _, err := time.Parse("15:04", tm); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "bad time " + tm})
			return
		}
	}
	rule := models.TriggerRule{Enabled: req.Enabled, Times: req.Times, Days: days, Keywords: req.Keywords}

	if err := s.store.SaveTriggerRule(c.Request.Context(), rule); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := s.trigger.Apply(rule); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ruleToJSON(rule))
}

func (s *Server) handleNextFire(c *gin.Context) {
	fire, ok := trigger.NextFireTime(s.trigger.Rule(), time.Now())
	if !ok {
		c.JSON(http.StatusOK, gin.H{"next": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"next": fire.Format(time.RFC3339)})
}
