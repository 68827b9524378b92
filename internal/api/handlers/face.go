package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facegate/internal/face"
	"github.com/your-org/facegate/internal/models"
	"github.com/your-org/facegate/internal/recognition"
	"github.com/your-org/facegate/pkg/dto"
)

type FaceChecker interface {
	Check(ctx context.Context, image string) (*face.CheckResult, error)
}

type FaceEnroller interface {
	Enroll(ctx context.Context, image string, consent *bool) (*face.Enrollment, error)
}

type ContactService interface {
	Attach(ctx context.Context, faceID int64, name, phoneNumber *string) (*models.Contact, error)
	List(ctx context.Context, faceID int64) ([]models.Contact, error)
}

type FaceClearer interface {
	ClearAll(ctx context.Context) (*face.ClearReport, error)
}

type FaceHandler struct {
	checker  FaceChecker
	enroller FaceEnroller
	contacts ContactService
	clearer  FaceClearer
}

func NewFaceHandler(checker FaceChecker, enroller FaceEnroller, contacts ContactService, clearer FaceClearer) *FaceHandler {
	return &FaceHandler{checker: checker, enroller: enroller, contacts: contacts, clearer: clearer}
}

func (h *FaceHandler) Check(c *gin.Context) {
	var req dto.ImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.checker.Check(c.Request.Context(), req.Base64Image)
	if err != nil {
		writeError(c, "Face check failed", err)
		return
	}

	matches := make([]dto.MatchResponse, 0, len(result.Matches))
	for _, m := range result.Matches {
		matches = append(matches, dto.MatchResponse{
			ExternalID: m.ExternalID,
			Score:      m.Score,
			Thumbnail:  m.Thumbnail,
			FaceID:     m.FaceID,
		})
	}

	c.JSON(http.StatusOK, dto.CheckResponse{
		Type:      result.Type,
		BestScore: result.BestScore,
		Threshold: result.Threshold,
		Matches:   matches,
	})
}

func (h *FaceHandler) Enroll(c *gin.Context) {
	var req dto.ImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	enrollment, err := h.enroller.Enroll(c.Request.Context(), req.Base64Image, req.Consent)
	if err != nil {
		writeError(c, "Face enrollment failed", err)
		return
	}

	c.JSON(http.StatusOK, dto.EnrollResponse{
		Message:    enrollment.Message,
		FaceID:     enrollment.FaceID,
		ExternalID: enrollment.ExternalID,
		Consent:    enrollment.Consent,
	})
}

// StoreUserDetails attaches contact details to an enrolled face.
func (h *FaceHandler) StoreUserDetails(c *gin.Context) {
	var req dto.UserDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contact, err := h.contacts.Attach(c.Request.Context(), req.FaceID, req.Name, req.PhoneNumber)
	if err != nil {
		writeError(c, "Storing user details failed", err)
		return
	}

	c.JSON(http.StatusOK, dto.UserDetailsResponse{
		Message:     "User details stored successfully",
		FaceID:      contact.FaceID,
		Name:        contact.Name,
		PhoneNumber: contact.PhoneNumber,
	})
}

// ListContacts returns every contact row stored for a face.
func (h *FaceHandler) ListContacts(c *gin.Context) {
	faceID, err := strconv.ParseInt(c.Param("faceId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid face id"})
		return
	}

	contacts, err := h.contacts.List(c.Request.Context(), faceID)
	if err != nil {
		writeError(c, "Listing contacts failed", err)
		return
	}

	resp := dto.ContactListResponse{
		Contacts: make([]dto.ContactResponse, 0, len(contacts)),
		Total:    len(contacts),
	}
	for _, ct := range contacts {
		resp.Contacts = append(resp.Contacts, dto.ContactResponse{
			ID:          ct.ID,
			FaceID:      ct.FaceID,
			Name:        ct.Name,
			PhoneNumber: ct.PhoneNumber,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (h *FaceHandler) Clear(c *gin.Context) {
	report, err := h.clearer.ClearAll(c.Request.Context())
	if err != nil {
		writeError(c, "Failed to clear data", err)
		return
	}

	resp := dto.ClearResponse{
		Message:  "All enrolled faces and index artifacts cleared successfully.",
		Warnings: report.Warnings,
	}
	if len(report.Warnings) > 0 {
		resp.Message = "All enrolled faces cleared; some index artifacts could not be removed."
	}
	c.JSON(http.StatusOK, resp)
}

func (h *FaceHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "API is working"})
}

// writeError maps domain and backend errors onto HTTP statuses.
func writeError(c *gin.Context, op string, err error) {
	var backendErr *recognition.BackendError

	switch {
	case errors.Is(err, face.ErrInvalidImage),
		errors.Is(err, face.ErrInvalidFaceID),
		errors.Is(err, face.ErrFaceNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &backendErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": backendErr.Message})
	case errors.Is(err, recognition.ErrBackendUnavailable):
		slog.Warn(op, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": op + ": " + err.Error()})
	default:
		slog.Error(op, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": op + ": " + err.Error()})
	}
}
