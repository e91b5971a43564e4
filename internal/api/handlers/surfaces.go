package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/phylony/mar-library/internal/models"
	"github.com/phylony/mar-library/internal/storage"
	"github.com/phylony/mar-library/internal/track"
	"github.com/phylony/mar-library/pkg/dto"
)

type SurfaceHandler struct {
	session *track.Session
	db      *storage.PostgresStore // optional, nil disables persistence
}

func NewSurfaceHandler(session *track.Session, db *storage.PostgresStore) *SurfaceHandler {
	return &SurfaceHandler{session: session, db: db}
}

// transformDTO converts an engine transform to its wire form.
func transformDTO(t track.Affine) *dto.TransformResponse {
	return &dto.TransformResponse{
		M11: t.M11, M12: t.M12,
		M21: t.M21, M22: t.M22,
		TX: t.TX, TY: t.TY,
		GL: t.Mat4(),
	}
}

func surfaceDTO(st track.SurfaceStatus) dto.SurfaceResponse {
	r := dto.SurfaceResponse{
		Handle:    st.Handle,
		Status:    string(st.Status),
		ModelSize: st.ModelSize,
	}
	if st.LastErr != nil {
		r.Error = st.LastErr.Error()
	}
	if st.HasTransform {
		r.Transform = transformDTO(st.Transform)
	}
	return r
}

func (h *SurfaceHandler) Create(c *gin.Context) {
	var req dto.CreateSurfaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	region := track.Ellipse{X: req.X, Y: req.Y, A: req.A, B: req.B, Angle: req.Angle}
	handle, err := h.session.CreateSurface(region)
	if err != nil {
		switch {
		case errors.Is(err, track.ErrNoSurfaceCapacity):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, track.ErrInsufficientSeedKeypoints):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		case errors.Is(err, track.ErrNoFrame):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	if h.db != nil {
		sf := &models.Surface{ID: handle, X: req.X, Y: req.Y, A: req.A, B: req.B, Angle: req.Angle}
		if err := h.db.RecordSurface(c.Request.Context(), sf); err != nil {
			slog.Warn("record surface", "handle", handle, "error", err)
		}
	}

	st, err := h.session.Status(handle)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, surfaceDTO(st))
}

// List returns the live surface table. With history=true it returns the
// persisted registrations instead, including released ones.
func (h *SurfaceHandler) List(c *gin.Context) {
	if c.Query("history") == "true" && h.db != nil {
		surfaces, err := h.db.ListSurfaces(c.Request.Context(), true)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"surfaces": surfaces})
		return
	}

	statuses := h.session.Statuses()
	resp := make([]dto.SurfaceResponse, 0, len(statuses))
	for _, st := range statuses {
		resp = append(resp, surfaceDTO(st))
	}
	c.JSON(http.StatusOK, dto.SurfaceListResponse{Surfaces: resp})
}

func (h *SurfaceHandler) Get(c *gin.Context) {
	handle, ok := parseHandle(c)
	if !ok {
		return
	}
	st, err := h.session.Status(handle)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, surfaceDTO(st))
}

func (h *SurfaceHandler) Release(c *gin.Context) {
	handle, ok := parseHandle(c)
	if !ok {
		return
	}
	if err := h.session.ReleaseSurface(handle); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if h.db != nil {
		if err := h.db.ReleaseSurface(context.WithoutCancel(c.Request.Context()), handle); err != nil {
			slog.Warn("release surface record", "handle", handle, "error", err)
		}
	}
	c.Status(http.StatusNoContent)
}

func (h *SurfaceHandler) Transform(c *gin.Context) {
	handle, ok := parseHandle(c)
	if !ok {
		return
	}
	t, err := h.session.Transform(handle)
	if err != nil {
		switch {
		case errors.Is(err, track.ErrInvalidHandle):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, track.ErrNotTracking):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, transformDTO(t))
}

// Project maps a point through the surface transform. With inverse set,
// the point is taken as frame coordinates and mapped to model space.
func (h *SurfaceHandler) Project(c *gin.Context) {
	handle, ok := parseHandle(c)
	if !ok {
		return
	}
	var req dto.PointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var x, y float64
	var err error
	if req.Inverse {
		x, y, err = h.session.UntransformPoint(handle, req.X, req.Y)
	} else {
		x, y, err = h.session.TransformPoint(handle, req.X, req.Y)
	}
	if err != nil {
		switch {
		case errors.Is(err, track.ErrInvalidHandle):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, track.ErrNotTracking):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, dto.PointResponse{X: x, Y: y})
}

func parseHandle(c *gin.Context) (int, bool) {
	handle, err := strconv.Atoi(c.Param("id"))
	if err != nil || handle < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid surface handle"})
		return 0, false
	}
	return handle, true
}
