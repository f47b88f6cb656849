package rooms

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castgrid/backend/internal/models"
	"github.com/castgrid/backend/pkg/response"
)

func setupRouter(t *testing.T) (*gin.Engine, *Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := NewStore(nil, nil)
	h := NewHandler(store, nil, nil)

	r := gin.New()
	r.GET("/companies/:companyId/rooms", h.List)
	r.POST("/companies/:companyId/rooms", h.Create)
	r.POST("/companies/:companyId/rooms/initialize", h.Initialize)
	r.GET("/companies/:companyId/rooms/:roomId", h.GetByID)
	r.PATCH("/companies/:companyId/rooms/:roomId", h.Update)
	r.DELETE("/companies/:companyId/rooms/:roomId", h.Delete)
	r.POST("/companies/:companyId/rooms/:roomId/thumbnail-upload-url", h.ThumbnailUploadURL)
	return r, store
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
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

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.True(t, env.Success)
	raw, err := json.Marshal(env.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func TestHandlerInitializeAndList(t *testing.T) {
	r, _ := setupRouter(t)

	w := doJSON(t, r, http.MethodPost, "/companies/acme/rooms/initialize", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var seeded []models.Room
	decodeData(t, w, &seeded)
	require.Len(t, seeded, SeedRoomCount)

	w = doJSON(t, r, http.MethodGet, "/companies/acme/rooms", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed []models.Room
	decodeData(t, w, &listed)
	assert.Len(t, listed, SeedRoomCount)
}

func TestHandlerCreateAndGet(t *testing.T) {
	r, _ := setupRouter(t)

	w := doJSON(t, r, http.MethodPost, "/companies/acme/rooms", CreateRequest{
		Name:       "Main Stage",
		StreamURL:  "https://youtube.com/watch?v=abc",
		StreamType: "youtube",
		IsActive:   true,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.Room
	decodeData(t, w, &created)
	assert.Equal(t, "acme", created.CompanyID)
	assert.True(t, created.IsActive)

	w = doJSON(t, r, http.MethodGet, "/companies/acme/rooms/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Cross-tenant request must be a 404, not a leak.
	w = doJSON(t, r, http.MethodGet, "/companies/other/rooms/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerCreateRejectsBadStreamType(t *testing.T) {
	r, _ := setupRouter(t)
	w := doJSON(t, r, http.MethodPost, "/companies/acme/rooms", CreateRequest{
		Name:       "Bad",
		StreamType: "rtmp",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerUpdate(t *testing.T) {
	r, store := setupRouter(t)
	room := store.Create(context.Background(), "acme", CreateParams{Name: "A", StreamType: models.StreamTypeHLS})

	w := doJSON(t, r, http.MethodPatch, "/companies/acme/rooms/"+room.ID.String(), map[string]string{
		"stream_url": "http://x/a.m3u8",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var updated models.Room
	decodeData(t, w, &updated)
	assert.Equal(t, "A", updated.Name)
	assert.Equal(t, "http://x/a.m3u8", updated.StreamURL)

	w = doJSON(t, r, http.MethodPatch, "/companies/acme/rooms/00000000-0000-0000-0000-000000000001", map[string]string{"name": "nope"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodPatch, "/companies/acme/rooms/not-a-uuid", map[string]string{"name": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerDeleteIdempotent(t *testing.T) {
	r, store := setupRouter(t)
	room := store.Create(context.Background(), "acme", CreateParams{Name: "Doomed", StreamType: models.StreamTypeHLS})

	w := doJSON(t, r, http.MethodDelete, "/companies/acme/rooms/"+room.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/companies/acme/rooms/"+room.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code, "deleting a missing room is still a success")
}

func TestHandlerThumbnailWithoutStorage(t *testing.T) {
	r, store := setupRouter(t)
	room := store.Create(context.Background(), "acme", CreateParams{Name: "Pic", StreamType: models.StreamTypeHLS})

	w := doJSON(t, r, http.MethodPost, "/companies/acme/rooms/"+room.ID.String()+"/thumbnail-upload-url", ThumbnailUploadRequest{
		Filename: "cover.png",
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
