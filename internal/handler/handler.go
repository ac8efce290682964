// Package handler wires the portal's HTTP surface. Domain rejections map
// to 409, validation to 400, missing entities to 404; persistence failures
// surface as 500.
package handler

import (
	"context"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"worksync/internal/assistant"
	"worksync/internal/auth"
	"worksync/internal/avatar"
	"worksync/internal/backup"
	"worksync/internal/board"
	"worksync/internal/calendar"
	"worksync/internal/config"
	"worksync/internal/model"
	"worksync/internal/queue"
	"worksync/internal/store"
	"worksync/internal/timecard"
)

// unknownUser is the placeholder shown when a weak user reference dangles.
const unknownUser = "Unknown User"

// Handler holds every collaborator the HTTP layer needs.
type Handler struct {
	Cfg       config.App
	Store     *store.Store
	Timecard  *timecard.Service
	Board     *board.Service
	Calendar  *calendar.Service
	Backup    *backup.Codec
	Assistant *assistant.Client
	Avatars   *avatar.Client // nil when Cloudinary is not configured
	Queue     queue.Queue
}

// Register mounts all portal routes on the engine.
func (h *Handler) Register(r *gin.Engine) {
	r.POST("/v1/auth/login", h.login)
	r.POST("/v1/auth/refresh", h.refresh)

	g := r.Group("/v1", auth.UserAuth(h.Cfg.JWTSigningKey, h.Cfg.JWTIssuer))

	g.GET("/me", h.me)
	g.PUT("/me", h.updateProfile)
	g.POST("/me/avatar", h.uploadAvatar)
	g.GET("/users", h.listUsers)

	g.GET("/timecard", h.timecardToday)
	g.GET("/timecard/history", h.timecardHistory)
	g.POST("/timecard/clock-in", h.clock(queue.TypeClockIn, h.Timecard.ClockIn))
	g.POST("/timecard/clock-out", h.clock(queue.TypeClockOut, h.Timecard.ClockOut))
	g.POST("/timecard/break-start", h.clock(queue.TypeBreakStart, h.Timecard.StartBreak))
	g.POST("/timecard/break-end", h.clock(queue.TypeBreakEnd, h.Timecard.EndBreak))

	g.GET("/threads", h.listThreads)
	g.GET("/threads/:id", h.getThread)
	g.POST("/threads", h.createThread)
	g.POST("/threads/:id/comments", h.addComment)
	g.POST("/threads/:id/summary", h.summarizeThread)
	g.POST("/assistant/draft", h.draft)

	g.GET("/events", h.listEvents)
	g.POST("/events", h.addEvent)

	g.GET("/theme", h.getTheme)
	g.PUT("/theme", h.setTheme)

	g.GET("/backup/export", h.exportBackup)
	g.POST("/backup/import", h.importBackup)
}

// ---- auth ----

func (h *Handler) login(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, ok := h.Store.UserByEmail(strings.TrimSpace(req.Email))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	tokens, err := auth.Issue(user.ID, string(user.Role), h.Cfg.JWTIssuer, h.Cfg.JWTSigningKey, h.Cfg.AccessTTL, h.Cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":          user,
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

func (h *Handler) refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims, err := auth.Parse(req.RefreshToken, h.Cfg.JWTSigningKey, h.Cfg.JWTIssuer)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	tokens, err := auth.Issue(claims.Subject, claims.Role, h.Cfg.JWTIssuer, h.Cfg.JWTSigningKey, h.Cfg.AccessTTL, h.Cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

// ---- profile ----

func (h *Handler) me(c *gin.Context) {
	user, ok := h.Store.UserByID(auth.UserID(c))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req struct {
		Name       string `json:"name" binding:"required"`
		Department string `json:"department"`
		Bio        string `json:"bio"`
		Avatar     string `json:"avatar"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, ok := h.Store.UserByID(auth.UserID(c))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	// Role and email are not editable through profile save.
	user.Name = req.Name
	user.Department = req.Department
	user.Bio = req.Bio
	user.Avatar = req.Avatar
	if _, err := h.Store.UpdateUser(c.Request.Context(), user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) uploadAvatar(c *gin.Context) {
	if h.Avatars == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage not configured"})
		return
	}
	user, ok := h.Store.UserByID(auth.UserID(c))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	var result *avatar.UploadResult
	var err error
	if strings.Contains(c.ContentType(), "multipart/form-data") {
		file, header, ferr := c.Request.FormFile("file")
		if ferr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file field required"})
			return
		}
		defer file.Close()
		data, ferr := io.ReadAll(file)
		if ferr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "read file failed"})
			return
		}
		result, err = h.Avatars.UploadBytes(data, header.Filename)
	} else {
		var body struct {
			Data string `json:"data" binding:"required"`
		}
		if berr := c.ShouldBindJSON(&body); berr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "provide {\"data\": \"<base64 data URL>\"}"})
			return
		}
		result, err = h.Avatars.UploadBase64(body.Data)
	}
	if err != nil {
		log.Printf("avatar upload failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "image upload failed"})
		return
	}

	user.Avatar = result.SecureURL
	if _, err := h.Store.UpdateUser(c.Request.Context(), user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"avatar": result.SecureURL})
}

func (h *Handler) listUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"users": h.Store.Users()})
}

// ---- timecard ----

func (h *Handler) timecardToday(c *gin.Context) {
	userID := auth.UserID(c)
	resp := gin.H{"status": h.Timecard.Status(userID)}
	if rec, ok := h.Timecard.TodayRecord(userID); ok {
		resp["record"] = rec
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) timecardHistory(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	c.JSON(http.StatusOK, gin.H{"records": h.Timecard.History(auth.UserID(c), limit)})
}

func (h *Handler) clock(msgType string, op func(ctx context.Context, userID string) (timecard.Outcome, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := auth.UserID(c)
		outcome, err := op(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !outcome.Applied {
			c.JSON(http.StatusConflict, outcome)
			return
		}
		if h.Queue != nil {
			msg := queue.Message{Type: msgType, Body: []byte(outcome.Record.ID + ":" + userID)}
			if err := h.Queue.Publish(c.Request.Context(), msg); err != nil {
				log.Printf("queue publish failed: %v", err)
			}
		}
		c.JSON(http.StatusOK, outcome)
	}
}

// ---- board ----

type threadView struct {
	model.Thread
	AuthorName string `json:"authorName"`
}

func (h *Handler) threadView(t model.Thread) threadView {
	name := unknownUser
	if u, ok := h.Store.UserByID(t.AuthorID); ok {
		name = u.Name
	}
	return threadView{Thread: t, AuthorName: name}
}

func (h *Handler) listThreads(c *gin.Context) {
	threads := h.Board.Threads()
	views := make([]threadView, len(threads))
	for i, t := range threads {
		views[i] = h.threadView(t)
	}
	c.JSON(http.StatusOK, gin.H{"threads": views})
}

func (h *Handler) getThread(c *gin.Context) {
	t, ok := h.Board.Thread(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "thread not found"})
		return
	}
	c.JSON(http.StatusOK, h.threadView(t))
}

func (h *Handler) createThread(c *gin.Context) {
	var req struct {
		Title    string `json:"title" binding:"required"`
		Content  string `json:"content" binding:"required"`
		Category string `json:"category" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := h.Board.CreateThread(c.Request.Context(), req.Title, req.Content, req.Category, auth.UserID(c))
	if err != nil {
		status := http.StatusInternalServerError
		if err == board.ErrEmptyField {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *Handler) addComment(c *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	comment, err := h.Board.AddComment(c.Request.Context(), c.Param("id"), req.Content, auth.UserID(c))
	if err != nil {
		switch err {
		case board.ErrThreadNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "thread not found"})
		case board.ErrEmptyField:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// ---- assistant ----

func (h *Handler) draft(c *gin.Context) {
	var req struct {
		Topic string `json:"topic" binding:"required"`
		Tone  string `json:"tone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Tone == "" {
		req.Tone = "professional"
	}
	text := h.Assistant.GenerateDraft(c.Request.Context(), req.Topic, req.Tone)
	c.JSON(http.StatusOK, gin.H{"draft": text})
}

func (h *Handler) summarizeThread(c *gin.Context) {
	t, ok := h.Board.Thread(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "thread not found"})
		return
	}
	comments := make([]string, len(t.Comments))
	for i, cm := range t.Comments {
		comments[i] = cm.Content
	}
	text := h.Assistant.Summarize(c.Request.Context(), t.Content, comments)
	c.JSON(http.StatusOK, gin.H{"summary": text})
}

// ---- calendar ----

func (h *Handler) listEvents(c *gin.Context) {
	viewerID := auth.UserID(c)
	if day := c.Query("day"); day != "" {
		parsed, err := time.ParseInLocation("2006-01-02", day, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "day must be YYYY-MM-DD"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": h.Calendar.OnDay(viewerID, parsed)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": h.Calendar.VisibleTo(viewerID)})
}

func (h *Handler) addEvent(c *gin.Context) {
	var req struct {
		Title       string    `json:"title" binding:"required"`
		Start       time.Time `json:"start" binding:"required"`
		End         time.Time `json:"end" binding:"required"`
		IsPublic    bool      `json:"isPublic"`
		Description string    `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	e, err := h.Calendar.AddEvent(c.Request.Context(), req.Title, req.Start, req.End, auth.UserID(c), req.IsPublic, req.Description)
	if err != nil {
		status := http.StatusInternalServerError
		if err == calendar.ErrInvalidEvent {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, e)
}

// ---- theme ----

func (h *Handler) getTheme(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"theme": h.Store.Theme(), "available": model.ThemeColors()})
}

func (h *Handler) setTheme(c *gin.Context) {
	var req struct {
		Theme model.ThemeColor `json:"theme" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ok, err := h.Store.SetTheme(c.Request.Context(), req.Theme)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown theme color"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"theme": req.Theme})
}

// ---- backup ----

func (h *Handler) exportBackup(c *gin.Context) {
	doc, err := h.Backup.Export()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+h.Backup.Filename())
	c.Data(http.StatusOK, "application/json", doc)
}

func (h *Handler) importBackup(c *gin.Context) {
	doc, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
		return
	}
	if err := h.Backup.Import(c.Request.Context(), doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": true})
}
