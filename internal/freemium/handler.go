package freemium

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/castgrid/backend/internal/middleware"
	"github.com/castgrid/backend/internal/models"
	"github.com/castgrid/backend/pkg/response"
)

// Handler handles viewer gate HTTP endpoints.
type Handler struct {
	mgr *Manager
}

// NewHandler creates a gate handler.
func NewHandler(mgr *Manager) *Handler {
	return &Handler{mgr: mgr}
}

func (h *Handler) gateFor(c *gin.Context) *Gate {
	viewerID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	plan, _ := c.Get(middleware.ContextUserPlan)
	isPro := plan == string(models.PlanPro)
	return h.mgr.Gate(c.Request.Context(), viewerID.String(), isPro)
}

// State handles GET /gate.
func (h *Handler) State(c *gin.Context) {
	response.OK(c, h.gateFor(c).Snapshot())
}

// Start handles POST /gate/start. Silently a no-op when the budget is
// already exhausted; the returned snapshot tells the UI which case it hit.
func (h *Handler) Start(c *gin.Context) {
	gate := h.gateFor(c)
	gate.StartWatching()
	response.OK(c, gate.Snapshot())
}

// Stop handles POST /gate/stop.
func (h *Handler) Stop(c *gin.Context) {
	gate := h.gateFor(c)
	gate.StopWatching()
	response.OK(c, gate.Snapshot())
}

// Slot handles GET /gate/slots/:index. A free viewer probing a locked slot
// also raises the upgrade prompt, mirroring the grid's locked-tile tap.
func (h *Handler) Slot(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		response.BadRequest(c, "invalid slot index")
		return
	}
	gate := h.gateFor(c)
	locked := gate.IsSlotLocked(index)
	if locked {
		gate.PromptUpgrade(ReasonLockedSlot)
	}
	response.OK(c, gin.H{"index": index, "locked": locked})
}

// AckUpgrade handles POST /gate/ack-upgrade: the UI clears the prompt after showing it.
func (h *Handler) AckUpgrade(c *gin.Context) {
	h.gateFor(c).AckUpgrade()
	response.NoContent(c)
}
