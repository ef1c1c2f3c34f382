package server

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"attendance-kiosk/internal/holidays"
	"attendance-kiosk/internal/journal"
	"attendance-kiosk/internal/model"
	"attendance-kiosk/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *handler) dateRange(c *gin.Context) report.Range {
	r := report.Today(h.now())
	if v := c.Query("start_date"); v != "" {
		r.Start = v
	}
	if v := c.Query("end_date"); v != "" {
		r.End = v
	}
	return r
}

func (h *handler) loadDashboard(c *gin.Context) (*report.Dashboard, bool) {
	r := h.dateRange(c)
	if err := r.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	d, err := report.Load(c.Request.Context(), h.Reports, r)
	if err != nil {
		h.Logger.Error("load attendance report", "start", r.Start, "end", r.End, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load attendance data"})
		return nil, false
	}
	return d, true
}

func (h *handler) attendance(c *gin.Context) {
	if d, ok := h.loadDashboard(c); ok {
		c.JSON(http.StatusOK, d)
	}
}

func (h *handler) exportAbsences(c *gin.Context) {
	d, ok := h.loadDashboard(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.Export(&buf, d.Rows); err != nil {
		h.Logger.Error("export absences", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, d.Filename()))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *handler) daysBody() gin.H {
	return gin.H{
		"days":   h.Holidays.Days(),
		"groups": h.Holidays.Groups(),
		"banner": h.Holidays.Banner(),
	}
}

func (h *handler) listDays(c *gin.Context) {
	if _, err := h.Holidays.Refresh(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, h.daysBody())
		return
	}
	c.JSON(http.StatusOK, h.daysBody())
}

func (h *handler) addDay(c *gin.Context) {
	var req struct {
		Date        string `json:"date" form:"date"`
		Description string `json:"description" form:"description"`
		Type        string `json:"type" form:"type"`
	}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Type == "" {
		req.Type = string(model.DayHoliday)
	}
	err := h.Holidays.Add(c.Request.Context(), model.NonWorkingDay{
		Date:        req.Date,
		Description: req.Description,
		Type:        model.DayType(req.Type),
	})
	switch {
	case errors.Is(err, holidays.ErrInvalidDay):
		c.JSON(http.StatusBadRequest, h.daysBody())
	case err != nil:
		c.JSON(http.StatusBadGateway, h.daysBody())
	default:
		c.JSON(http.StatusCreated, h.daysBody())
	}
}

func (h *handler) deleteDay(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := h.Holidays.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusBadGateway, h.daysBody())
		return
	}
	c.JSON(http.StatusOK, h.daysBody())
}

func (h *handler) dismissBanner(c *gin.Context) {
	h.Holidays.Dismiss()
	c.Status(http.StatusNoContent)
}

func (h *handler) listJournal(c *gin.Context) {
	if h.Journal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "journal disabled"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	entries, err := h.Journal.List(c.Request.Context(), journal.Filter{
		DocumentNumber: c.Query("document"),
		Kind:           c.Query("kind"),
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		h.Logger.Error("list journal", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list journal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "limit": limit, "offset": offset})
}
