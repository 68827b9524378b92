package face

import (
	"context"
	"errors"
	"fmt"

	"github.com/your-org/facegate/internal/models"
)

// ContactStore validates face ids and stores contact rows.
type ContactStore interface {
	FaceExists(ctx context.Context, faceID int64) (bool, error)
	CreateContact(ctx context.Context, c *models.Contact) error
	ListContacts(ctx context.Context, faceID int64) ([]models.Contact, error)
}

type Contacts struct {
	store ContactStore
}

func NewContacts(store ContactStore) *Contacts {
	return &Contacts{store: store}
}

// Attach adds a contact row to an existing face. Repeated calls for the same
// face add further rows.
func (c *Contacts) Attach(ctx context.Context, faceID int64, name, phoneNumber *string) (*models.Contact, error) {
	if faceID <= 0 {
		return nil, ErrInvalidFaceID
	}

	exists, err := c.store.FaceExists(ctx, faceID)
	if err != nil {
		return nil, fmt.Errorf("check face %d: %w", faceID, err)
	}
	if !exists {
		return nil, ErrFaceNotFound
	}

	contact := &models.Contact{FaceID: faceID, Name: name, PhoneNumber: phoneNumber}
	if err := c.store.CreateContact(ctx, contact); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrFaceNotFound
		}
		return nil, fmt.Errorf("%w: store contact: %w", ErrPersistence, err)
	}
	return contact, nil
}

// List returns the contact rows of an existing face, oldest first.
func (c *Contacts) List(ctx context.Context, faceID int64) ([]models.Contact, error) {
	if faceID <= 0 {
		return nil, ErrInvalidFaceID
	}

	exists, err := c.store.FaceExists(ctx, faceID)
	if err != nil {
		return nil, fmt.Errorf("check face %d: %w", faceID, err)
	}
	if !exists {
		return nil, ErrFaceNotFound
	}

	contacts, err := c.store.ListContacts(ctx, faceID)
	if err != nil {
		return nil, fmt.Errorf("%w: list contacts: %w", ErrPersistence, err)
	}
	return contacts, nil
}
