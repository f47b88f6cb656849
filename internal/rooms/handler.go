package rooms

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/castgrid/backend/internal/models"
	"github.com/castgrid/backend/pkg/response"
	"github.com/castgrid/backend/pkg/storage"
)

// CreateRequest is the body for POST /companies/:companyId/rooms.
type CreateRequest struct {
	Name       string `json:"name" binding:"required"`
	StreamURL  string `json:"stream_url"`
	StreamType string `json:"stream_type" binding:"required"`
	IsActive   bool   `json:"is_active"`
	Thumbnail  string `json:"thumbnail"`
	AutoStart  bool   `json:"auto_start"`
}

// UpdateRequest is the body for PATCH /companies/:companyId/rooms/:roomId.
// Absent fields are left untouched.
type UpdateRequest struct {
	Name       *string `json:"name"`
	StreamURL  *string `json:"stream_url"`
	StreamType *string `json:"stream_type"`
	IsActive   *bool   `json:"is_active"`
	Thumbnail  *string `json:"thumbnail"`
	AutoStart  *bool   `json:"auto_start"`
}

// ThumbnailUploadRequest is the body for the presigned thumbnail upload URL endpoint.
type ThumbnailUploadRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type"`
}

// Handler handles room HTTP endpoints.
type Handler struct {
	store  *Store
	s3     *storage.S3
	logger *zap.Logger
}

// NewHandler creates a room handler. s3 may be nil when thumbnail storage is not configured.
func NewHandler(store *Store, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, s3: s3, logger: logger}
}

// List handles GET /companies/:companyId/rooms.
func (h *Handler) List(c *gin.Context) {
	companyID := c.Param("companyId")
	list := h.store.ListByCompany(c.Request.Context(), companyID)
	response.OK(c, list)
}

// ListAll handles GET /admin/rooms (admin only, unscoped).
func (h *Handler) ListAll(c *gin.Context) {
	response.OK(c, h.store.ListAll(c.Request.Context()))
}

// GetByID handles GET /companies/:companyId/rooms/:roomId.
func (h *Handler) GetByID(c *gin.Context) {
	companyID := c.Param("companyId")
	roomID, err := uuid.Parse(c.Param("roomId"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}
	room := h.store.GetByID(c.Request.Context(), roomID, companyID)
	if room == nil {
		response.NotFound(c, "room not found")
		return
	}
	response.OK(c, room)
}

// Create handles POST /companies/:companyId/rooms (admin only).
func (h *Handler) Create(c *gin.Context) {
	companyID := c.Param("companyId")
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	streamType := models.StreamType(req.StreamType)
	if !models.ValidStreamType(streamType) {
		response.BadRequest(c, "invalid stream_type")
		return
	}
	room := h.store.Create(c.Request.Context(), companyID, CreateParams{
		Name:       req.Name,
		StreamURL:  req.StreamURL,
		StreamType: streamType,
		IsActive:   req.IsActive,
		Thumbnail:  req.Thumbnail,
		AutoStart:  req.AutoStart,
	})
	response.Created(c, room)
}

// Update handles PATCH /companies/:companyId/rooms/:roomId (admin only).
func (h *Handler) Update(c *gin.Context) {
	companyID := c.Param("companyId")
	roomID, err := uuid.Parse(c.Param("roomId"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	upd := Update{
		Name:      req.Name,
		StreamURL: req.StreamURL,
		IsActive:  req.IsActive,
		Thumbnail: req.Thumbnail,
		AutoStart: req.AutoStart,
	}
	if req.StreamType != nil {
		streamType := models.StreamType(*req.StreamType)
		if !models.ValidStreamType(streamType) {
			response.BadRequest(c, "invalid stream_type")
			return
		}
		upd.StreamType = &streamType
	}
	room := h.store.Update(c.Request.Context(), roomID, companyID, upd)
	if room == nil {
		response.NotFound(c, "room not found")
		return
	}
	response.OK(c, room)
}

// Delete handles DELETE /companies/:companyId/rooms/:roomId (admin only).
func (h *Handler) Delete(c *gin.Context) {
	companyID := c.Param("companyId")
	roomID, err := uuid.Parse(c.Param("roomId"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}
	h.store.Delete(c.Request.Context(), roomID, companyID)
	response.NoContent(c)
}

// Initialize handles POST /companies/:companyId/rooms/initialize (admin only).
// Seeds the fixed 8-room grid for a new company; idempotent for existing ones.
func (h *Handler) Initialize(c *gin.Context) {
	companyID := c.Param("companyId")
	list := h.store.InitializeForCompany(c.Request.Context(), companyID)
	response.OK(c, list)
}

// ThumbnailUploadURL handles POST /companies/:companyId/rooms/:roomId/thumbnail-upload-url
// (admin only). Returns a presigned PUT URL and stores the public object URL
// as the room's thumbnail.
func (h *Handler) ThumbnailUploadURL(c *gin.Context) {
	if h.s3 == nil {
		response.Internal(c, "thumbnail storage not configured")
		return
	}
	companyID := c.Param("companyId")
	roomID, err := uuid.Parse(c.Param("roomId"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}
	room := h.store.GetByID(c.Request.Context(), roomID, companyID)
	if room == nil {
		response.NotFound(c, "room not found")
		return
	}
	var req ThumbnailUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !storage.ValidateThumbnailType(req.ContentType, req.Filename) {
		response.BadRequest(c, "unsupported thumbnail type")
		return
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = storage.ContentTypeForFilename(req.Filename)
	}
	key := storage.ThumbnailKey(companyID, roomID.String(), req.Filename)
	uploadURL, err := h.s3.GeneratePresignedUploadURL(c.Request.Context(), key, contentType)
	if err != nil {
		h.logger.Error("presign thumbnail upload", zap.Error(err))
		response.Internal(c, "failed to generate upload url")
		return
	}
	publicURL := h.s3.PublicObjectURL(key)
	h.store.Update(c.Request.Context(), roomID, companyID, Update{Thumbnail: &publicURL})
	response.OK(c, gin.H{"upload_url": uploadURL, "thumbnail_url": publicURL})
}
