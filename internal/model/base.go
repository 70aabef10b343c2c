package model

import "time"

type (
	// A Model can be persisted in the database.
	Model interface {
		// GetID returns the primary key of the model.
		GetID() string
		// SetID defines the primary key of the model.
		SetID(id string)
		// SetCreatedAt defines the creation time of the model.
		SetCreatedAt(t time.Time)
		// SetUpdatedAt defines the last modification time of the model.
		SetUpdatedAt(t time.Time)
	}

	// Base holds the fields shared by all the models.
	Base struct {
		ID        string    `json:"id"         storm:"id"`
		CreatedAt time.Time `json:"created_at" storm:"index"`
		UpdatedAt time.Time `json:"updated_at" storm:"index"`
	}
)

// GetID returns the primary key of the model.
func (b *Base) GetID() string {
	return b.ID
}

// SetID defines the primary key of the model.
func (b *Base) SetID(id string) {
	b.ID = id
}

// SetCreatedAt defines the creation time of the model.
func (b *Base) SetCreatedAt(t time.Time) {
	b.CreatedAt = t
}

// SetUpdatedAt defines the last modification time of the model.
func (b *Base) SetUpdatedAt(t time.Time) {
	b.UpdatedAt = t
}
