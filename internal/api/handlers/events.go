package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/phylony/mar-library/internal/models"
	"github.com/phylony/mar-library/internal/storage"
	"github.com/phylony/mar-library/pkg/dto"
)

type EventHandler struct {
	db    *storage.PostgresStore
	minio *storage.MinIOStore
}

func NewEventHandler(db *storage.PostgresStore, minio *storage.MinIOStore) *EventHandler {
	return &EventHandler{db: db, minio: minio}
}

func eventDTO(ev models.TrackEvent) dto.EventResponse {
	r := dto.EventResponse{
		ID:        ev.ID,
		SurfaceID: ev.SurfaceID,
		Timestamp: ev.Timestamp.Format(time.RFC3339),
		Status:    ev.Status,
		Matches:   ev.Matches,
		CreatedAt: ev.CreatedAt.Format(time.RFC3339),
	}
	if ev.Status == "tracking" {
		r.Transform = &dto.TransformResponse{
			M11: ev.M11, M12: ev.M12,
			M21: ev.M21, M22: ev.M22,
			TX: ev.TX, TY: ev.TY,
		}
	}
	if ev.FrameKey != "" {
		r.FrameURL = "/v1/events/" + ev.ID.String() + "/frame"
	}
	return r
}

func (h *EventHandler) List(c *gin.Context) {
	var surfaceID *int
	if s := c.Query("surface_id"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			surfaceID = &v
		}
	}

	var from, to *time.Time
	if fromStr := c.Query("from"); fromStr != "" {
		if t, err := time.Parse(time.RFC3339, fromStr); err == nil {
			from = &t
		}
	}
	if toStr := c.Query("to"); toStr != "" {
		if t, err := time.Parse(time.RFC3339, toStr); err == nil {
			to = &t
		}
	}

	status := c.Query("status")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	events, total, err := h.db.QueryEvents(c.Request.Context(), surfaceID, from, to, status, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.EventResponse, 0, len(events))
	for _, ev := range events {
		resp = append(resp, eventDTO(ev))
	}

	c.JSON(http.StatusOK, dto.EventListResponse{Events: resp, Total: total})
}

func (h *EventHandler) Get(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	ev, err := h.db.GetEvent(c.Request.Context(), eventID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if ev == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}
	c.JSON(http.StatusOK, eventDTO(*ev))
}

// Frame proxies the archived camera frame of an event from MinIO.
func (h *EventHandler) Frame(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	ev, err := h.db.GetEvent(c.Request.Context(), eventID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if ev == nil || ev.FrameKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "frame not found"})
		return
	}

	data, err := h.minio.GetObject(c.Request.Context(), ev.FrameKey)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "frame not found"})
		return
	}

	c.Data(http.StatusOK, "image/jpeg", data)
}

// SearchEvents finds past events by descriptor similarity.
func (h *EventHandler) SearchEvents(c *gin.Context) {
	var req struct {
		Descriptor []float32 `json:"descriptor" binding:"required"`
		Limit      int       `json:"limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Descriptor) != 128 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "descriptor must have 128 components"})
		return
	}

	matches, err := h.db.SearchEventsByDescriptor(c.Request.Context(), req.Descriptor, req.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches})
}
