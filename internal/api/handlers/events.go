package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facegate/internal/models"
	"github.com/your-org/facegate/pkg/dto"
)

type EventLister interface {
	ListEvents(ctx context.Context, limit int) ([]models.FaceEvent, error)
}

type EventHandler struct {
	events EventLister
}

func NewEventHandler(events EventLister) *EventHandler {
	return &EventHandler{events: events}
}

// List returns the most recent face lifecycle events from the audit table.
func (h *EventHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	events, err := h.events.ListEvents(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.FaceEventResponse, 0, len(events))
	for _, ev := range events {
		resp = append(resp, EventToResponse(ev))
	}

	c.JSON(http.StatusOK, dto.FaceEventListResponse{Events: resp, Total: len(resp)})
}

func EventToResponse(ev models.FaceEvent) dto.FaceEventResponse {
	return dto.FaceEventResponse{
		ID:             ev.ID,
		Type:           string(ev.Type),
		ExternalID:     ev.ExternalID,
		FaceID:         ev.FaceID,
		Classification: ev.Classification,
		Score:          ev.Score,
		Message:        ev.Message,
		Timestamp:      ev.Timestamp.Format(time.RFC3339),
	}
}
