package database

import (
	"github.com/beamstore/beamstore/internal/model"
)

type (
	// A Client can interacts with the database.
	Client interface {
		// Save inserts or updates the entry in database with the given model.
		Save(m model.Model) error
		// Delete deletes the entry in database with the given model.
		Delete(m model.Model) error
		// Close the database.
		Close() error
		// IsNotFound returns true if err is a not found error.
		IsNotFound(err error) bool

		OwnerInteraction
		FileInteraction
		OrphanInteraction
	}

	// An OwnerInteraction defines all the methods used to interact with an owner record.
	OwnerInteraction interface {
		FindOwnerByKey(key string) (*model.Owner, error)
	}

	// A FileInteraction defines all the methods used to interact with a file record.
	FileInteraction interface {
		FindFileByIdent(ident string) (*model.File, error)
		FindFilesByOwnerID(id string) ([]*model.File, error)
		// CreateFileForOwner persists the file under the owner identified by
		// key, creating the owner record if needed, in a single transaction.
		CreateFileForOwner(key string, file *model.File) error
		// IncrementFileViews adds one to the view counter in its own transaction.
		IncrementFileViews(id string) error
		DeleteFile(id string) error
	}

	// An OrphanInteraction defines all the methods used to interact with an orphan record.
	OrphanInteraction interface {
		CreateOrphans(messageIDs []string) error
		AllOrphans() ([]*model.Orphan, error)
		DeleteOrphan(id string) error
	}
)
