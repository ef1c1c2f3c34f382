package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"attendance-kiosk/internal/kiosk"
	"attendance-kiosk/internal/model"
)

// stateView is the state plus the display values a renderer needs.
type stateView struct {
	kiosk.State
	RecognizedGrade string `json:"recognized_grade,omitempty"`
	RecognizedRole  string `json:"recognized_role,omitempty"`
}

func (h *handler) view(s kiosk.State) stateView {
	v := stateView{State: s}
	if u := s.RecognizedUser; u != nil {
		v.RecognizedRole = model.Role(u.RoleID).Name()
		if u.GradeID != nil {
			v.RecognizedGrade = h.Kiosk.GradeName(*u.GradeID)
		}
	}
	return v
}

func (h *handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.Checks {
		ok := check(ctx)
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

func (h *handler) state(c *gin.Context) {
	c.JSON(http.StatusOK, h.view(h.Kiosk.State()))
}

func (h *handler) setMode(c *gin.Context) {
	var req struct {
		Mode model.Mode `json:"mode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Kiosk.SetMode(req.Mode); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.view(h.Kiosk.State()))
}

func (h *handler) editDraft(c *gin.Context) {
	var req struct {
		Field string `json:"field" binding:"required"`
		Value string `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	field, err := kiosk.ParseField(req.Field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, err := h.Kiosk.SetField(c.Request.Context(), field, req.Value)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "state": h.view(s)})
		return
	}
	c.JSON(http.StatusOK, h.view(s))
}

func (h *handler) preview(c *gin.Context) {
	p, err := h.Kiosk.Preview()
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handler) register(c *gin.Context) {
	var req struct {
		Confirm bool `json:"confirm"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Confirm {
		p, err := h.Kiosk.Preview()
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusPreconditionRequired, gin.H{"error": "confirmation required", "preview": p})
		return
	}

	s, err := h.Kiosk.Submit(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(statusFor(err), gin.H{"error": s.Message, "state": h.view(s)})
		return
	}
	c.JSON(http.StatusCreated, h.view(s))
}

func (h *handler) clearMessage(c *gin.Context) {
	c.JSON(http.StatusOK, h.view(h.Kiosk.ClearMessage()))
}

func (h *handler) grades(c *gin.Context) {
	catalog := h.Kiosk.Grades()
	c.JSON(http.StatusOK, gin.H{"levels": catalog.Levels(), "grades": catalog})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, kiosk.ErrWrongMode),
		errors.Is(err, kiosk.ErrSubmissionInProgress),
		errors.Is(err, kiosk.ErrDocumentExists):
		return http.StatusConflict
	case errors.Is(err, kiosk.ErrIncompleteDraft):
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}
