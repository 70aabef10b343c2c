package service

import (
	"context"
	"time"

	"github.com/beamstore/beamstore/internal/database"
	"github.com/beamstore/beamstore/internal/metadata"
	"github.com/beamstore/beamstore/internal/model"
	"github.com/beamstore/beamstore/internal/transport"
	"github.com/mdouchement/logger"
	"github.com/pkg/errors"
)

// A Destroyer removes an object wholesale: the catalog record first, then
// the transport messages. Message deletion is best-effort; failures leave
// orphan records for the scheduler.
type Destroyer struct {
	logger    logger.Logger
	db        database.Client
	messenger transport.Messenger
	metadata  *metadata.Store
	timeout   time.Duration
}

// NewDestroyer returns a new Destroyer.
func NewDestroyer(l logger.Logger, db database.Client, messenger transport.Messenger, store *metadata.Store, timeout time.Duration) *Destroyer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Destroyer{
		logger:    l,
		db:        db,
		messenger: messenger,
		metadata:  store,
		timeout:   timeout,
	}
}

// Destroy removes the object identified by ident. It fails with
// ErrUnauthorized when ownerKey has no owner record and with ErrNotFound
// when the ident is not among the owner's files.
func (s *Destroyer) Destroy(ctx context.Context, ownerKey, ident string) error {
	owner, err := s.db.FindOwnerByKey(ownerKey)
	if err != nil {
		if s.db.IsNotFound(err) {
			return errors.WithStack(ErrUnauthorized)
		}
		return err
	}

	file, err := s.db.FindFileByIdent(ident)
	if err != nil {
		if s.db.IsNotFound(err) {
			return errors.WithStack(ErrNotFound)
		}
		return err
	}
	if file.OwnerID != owner.ID {
		// Reveal nothing about other owners' files.
		return errors.WithStack(ErrNotFound)
	}

	if err = s.db.DeleteFile(file.ID); err != nil {
		return err
	}

	s.deleteMessages(file)

	s.logger.Infof("File deleted[%s]: %s, size: %d [%s]", file.Ident, file.Filename, file.Size, ownerKey)
	return nil
}

func (s *Destroyer) deleteMessages(file *model.File) {
	ids := make([]string, 0, len(file.Messages))
	for _, location := range file.Messages {
		ids = append(ids, location.MessageID)
	}
	if len(ids) == 0 {
		return
	}

	s.metadata.Forget(ids[0])

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.messenger.DeleteMessages(ctx, ids); err != nil {
		s.logger.Errorf("could not delete %d message(s) of %s: %s", len(ids), file.Ident, err)
		if err = s.db.CreateOrphans(ids); err != nil {
			s.logger.Errorf("could not record orphans of %s: %s", file.Ident, err)
		}
	}
}
