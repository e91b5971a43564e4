package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phylony/mar-library/internal/track"
	"github.com/phylony/mar-library/pkg/dto"
)

type stubSource struct {
	frame *track.Frame
}

func (s *stubSource) AcquireFrame(ctx context.Context) (*track.Frame, error) {
	return s.frame, nil
}

type stubFeatures struct {
	kps []track.Keypoint
}

func (s *stubFeatures) DetectFeatures(*track.Frame) ([]track.Keypoint, error) {
	return s.kps, nil
}

type stubRegions struct{}

func (stubRegions) DetectRegions(*track.Frame) ([]track.Ellipse, error) {
	return nil, nil
}

// ringKeypoints returns n keypoints on the unit circle around the origin
// with distinct one-hot descriptors.
func ringKeypoints(n int) []track.Keypoint {
	kps := make([]track.Keypoint, n)
	for i := range kps {
		theta := 2 * math.Pi * float64(i) / float64(n)
		kps[i] = track.Keypoint{
			X:     math.Cos(theta),
			Y:     math.Sin(theta),
			Scale: 1,
		}
		kps[i].Desc[i] = 1
	}
	return kps
}

func newSurfaceRouter(feats *stubFeatures) (*gin.Engine, *track.Session) {
	gin.SetMode(gin.TestMode)
	sess := track.NewSession(track.Params{},
		&stubSource{frame: &track.Frame{Width: 640, Height: 480}},
		feats,
		stubRegions{},
	)
	h := NewSurfaceHandler(sess, nil)
	r := gin.New()
	r.POST("/v1/surfaces", h.Create)
	r.GET("/v1/surfaces", h.List)
	r.GET("/v1/surfaces/:id", h.Get)
	r.DELETE("/v1/surfaces/:id", h.Release)
	r.GET("/v1/surfaces/:id/transform", h.Transform)
	r.POST("/v1/surfaces/:id/project", h.Project)
	return r, sess
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createRequest() dto.CreateSurfaceRequest {
	return dto.CreateSurfaceRequest{X: 0, Y: 0, A: 1, B: 1}
}

func TestCreateSurfaceNoFrame(t *testing.T) {
	r, _ := newSurfaceRouter(&stubFeatures{})
	w := doJSON(t, r, http.MethodPost, "/v1/surfaces", createRequest())
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCreateSurfaceBadBody(t *testing.T) {
	r, _ := newSurfaceRouter(&stubFeatures{})
	// Missing semi-axes fails request validation before the engine runs.
	w := doJSON(t, r, http.MethodPost, "/v1/surfaces", map[string]any{"x": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateSurfaceInsufficientSeeds(t *testing.T) {
	r, sess := newSurfaceRouter(&stubFeatures{kps: ringKeypoints(5)})
	_, err := sess.UpdateAll(context.Background())
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodPost, "/v1/surfaces", createRequest())
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCreateSurfaceOK(t *testing.T) {
	r, sess := newSurfaceRouter(&stubFeatures{kps: ringKeypoints(20)})
	_, err := sess.UpdateAll(context.Background())
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodPost, "/v1/surfaces", createRequest())
	require.Equal(t, http.StatusCreated, w.Code)

	var resp dto.SurfaceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Handle)
	assert.Equal(t, "created", resp.Status)
	assert.Equal(t, 20, resp.ModelSize)
	assert.Nil(t, resp.Transform)
}

func TestGetSurface(t *testing.T) {
	r, sess := newSurfaceRouter(&stubFeatures{kps: ringKeypoints(20)})
	_, err := sess.UpdateAll(context.Background())
	require.NoError(t, err)
	_ = doJSON(t, r, http.MethodPost, "/v1/surfaces", createRequest())

	w := doJSON(t, r, http.MethodGet, "/v1/surfaces/0", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/v1/surfaces/9", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/v1/surfaces/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListSurfaces(t *testing.T) {
	r, sess := newSurfaceRouter(&stubFeatures{kps: ringKeypoints(20)})
	_, err := sess.UpdateAll(context.Background())
	require.NoError(t, err)
	_ = doJSON(t, r, http.MethodPost, "/v1/surfaces", createRequest())
	_ = doJSON(t, r, http.MethodPost, "/v1/surfaces", createRequest())

	w := doJSON(t, r, http.MethodGet, "/v1/surfaces", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.SurfaceListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Surfaces, 2)
}

func TestReleaseSurface(t *testing.T) {
	r, sess := newSurfaceRouter(&stubFeatures{kps: ringKeypoints(20)})
	_, err := sess.UpdateAll(context.Background())
	require.NoError(t, err)
	_ = doJSON(t, r, http.MethodPost, "/v1/surfaces", createRequest())

	w := doJSON(t, r, http.MethodDelete, "/v1/surfaces/0", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/v1/surfaces/0", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTransformEndpoint(t *testing.T) {
	ctx := context.Background()
	r, sess := newSurfaceRouter(&stubFeatures{kps: ringKeypoints(20)})
	_, err := sess.UpdateAll(ctx)
	require.NoError(t, err)
	_ = doJSON(t, r, http.MethodPost, "/v1/surfaces", createRequest())

	// No update has run since creation: not tracking yet.
	w := doJSON(t, r, http.MethodGet, "/v1/surfaces/0/transform", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodGet, "/v1/surfaces/7/transform", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	_, err = sess.UpdateAll(ctx)
	require.NoError(t, err)

	w = doJSON(t, r, http.MethodGet, "/v1/surfaces/0/transform", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.TransformResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.InDelta(t, 1, resp.M11, 1e-9)
	assert.InDelta(t, 1, resp.M22, 1e-9)
	assert.InDelta(t, 0, resp.TX, 1e-9)
	assert.InDelta(t, 1, resp.GL[0], 1e-9)
	assert.InDelta(t, 1, resp.GL[15], 1e-9)
}

func TestProjectEndpoint(t *testing.T) {
	ctx := context.Background()
	r, sess := newSurfaceRouter(&stubFeatures{kps: ringKeypoints(20)})
	_, err := sess.UpdateAll(ctx)
	require.NoError(t, err)
	_ = doJSON(t, r, http.MethodPost, "/v1/surfaces", createRequest())
	_, err = sess.UpdateAll(ctx)
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodPost, "/v1/surfaces/0/project", dto.PointRequest{X: 0.5, Y: -0.25})
	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.PointResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.InDelta(t, 0.5, resp.X, 1e-9)
	assert.InDelta(t, -0.25, resp.Y, 1e-9)

	w = doJSON(t, r, http.MethodPost, "/v1/surfaces/0/project", dto.PointRequest{X: 0.5, Y: -0.25, Inverse: true})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.InDelta(t, 0.5, resp.X, 1e-9)

	w = doJSON(t, r, http.MethodPost, "/v1/surfaces/5/project", dto.PointRequest{X: 1, Y: 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
