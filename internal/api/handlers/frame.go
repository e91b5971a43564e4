package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/phylony/mar-library/internal/track"
	"github.com/phylony/mar-library/pkg/dto"
)

// FrameHandler exposes the detector results of the current frame.
type FrameHandler struct {
	session *track.Session
}

func NewFrameHandler(session *track.Session) *FrameHandler {
	return &FrameHandler{session: session}
}

func (h *FrameHandler) Keypoints(c *gin.Context) {
	kps, err := h.session.Keypoints()
	if err != nil {
		if errors.Is(err, track.ErrNoFrame) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.KeypointResponse, 0, len(kps))
	for _, kp := range kps {
		resp = append(resp, dto.KeypointResponse{
			X:           kp.X,
			Y:           kp.Y,
			Scale:       kp.Scale,
			Orientation: kp.Orientation,
			Score:       kp.Score,
		})
	}
	c.JSON(http.StatusOK, gin.H{"keypoints": resp})
}

func (h *FrameHandler) Regions(c *gin.Context) {
	regions, err := h.session.Regions()
	if err != nil {
		if errors.Is(err, track.ErrNoFrame) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.RegionResponse, 0, len(regions))
	for _, r := range regions {
		resp = append(resp, dto.RegionResponse{X: r.X, Y: r.Y, A: r.A, B: r.B, Angle: r.Angle})
	}
	c.JSON(http.StatusOK, gin.H{"regions": resp})
}
