package database

import (
	"time"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/codec/json"
	"github.com/asdine/storm/v3/q"
	"github.com/beamstore/beamstore/internal/model"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
)

type strm struct {
	db *storm.DB
}

// StormCodec is the format used to store data in the database.
var StormCodec = storm.Codec(json.Codec)

// StormInit initializes Storm database.
func StormInit(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	if err := db.Init(&model.Owner{}); err != nil {
		return errors.Wrap(err, "could not init owner index")
	}

	if err := db.Init(&model.Orphan{}); err != nil {
		return errors.Wrap(err, "could not init orphan index")
	}

	err = db.Init(&model.File{})
	return errors.Wrap(err, "could not init file index")
}

// StormReIndex rebuilds the indexes of the Storm database.
func StormReIndex(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	if err := db.ReIndex(&model.Owner{}); err != nil {
		return errors.Wrap(err, "could not ReIndex owners")
	}

	if err := db.ReIndex(&model.Orphan{}); err != nil {
		return errors.Wrap(err, "could not ReIndex orphans")
	}

	err = db.ReIndex(&model.File{})
	return errors.Wrap(err, "could not ReIndex files")
}

// StormOpen opens the Storm database and returns a Client.
func StormOpen(database string) (Client, error) {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return nil, errors.Wrap(err, "could not get database connection")
	}

	return &strm{
		db: db,
	}, nil
}

func (c *strm) Save(m model.Model) error {
	stamp(m)
	return errors.Wrap(c.db.Save(m), "could not save the model")
}

func (c *strm) Delete(m model.Model) error {
	return errors.Wrap(c.db.DeleteStruct(m), "could not delete the model")
}

func (c *strm) Close() error {
	return c.db.Close()
}

func (c *strm) IsNotFound(err error) bool {
	return errors.Cause(err) == storm.ErrNotFound
}

//
// Owner
//

func (c *strm) FindOwnerByKey(key string) (*model.Owner, error) {
	var owner model.Owner
	err := c.db.One("Key", key, &owner)
	return &owner, errors.Wrap(err, "could not find owner")
}

//
// File
//

func (c *strm) FindFileByIdent(ident string) (*model.File, error) {
	var file model.File
	err := c.db.One("Ident", ident, &file)
	return &file, errors.Wrap(err, "could not find file")
}

func (c *strm) FindFilesByOwnerID(id string) ([]*model.File, error) {
	files := make([]*model.File, 0)
	err := c.db.Select(q.Eq("OwnerID", id)).OrderBy("CreatedAt").Find(&files)
	if errors.Cause(err) == storm.ErrNotFound {
		return files, nil
	}
	return files, errors.Wrap(err, "could not get files by owner_id")
}

func (c *strm) CreateFileForOwner(key string, file *model.File) error {
	tx, err := c.db.Begin(true)
	if err != nil {
		return errors.Wrap(err, "could not begin transaction")
	}
	defer tx.Rollback()

	var owner model.Owner
	err = tx.One("Key", key, &owner)
	if err == storm.ErrNotFound {
		owner = model.Owner{Key: key}
		stamp(&owner)
		if err = tx.Save(&owner); err != nil {
			return errors.Wrap(err, "could not create owner")
		}
	} else if err != nil {
		return errors.Wrap(err, "could not find owner")
	}

	file.OwnerID = owner.ID
	stamp(file)
	if err = tx.Save(file); err != nil {
		return errors.Wrap(err, "could not create file")
	}

	return errors.Wrap(tx.Commit(), "could not commit file creation")
}

func (c *strm) IncrementFileViews(id string) error {
	tx, err := c.db.Begin(true)
	if err != nil {
		return errors.Wrap(err, "could not begin transaction")
	}
	defer tx.Rollback()

	var file model.File
	if err = tx.One("ID", id, &file); err != nil {
		return errors.Wrap(err, "could not find file")
	}

	file.Views++
	file.SetUpdatedAt(time.Now().UTC())
	if err = tx.Save(&file); err != nil {
		return errors.Wrap(err, "could not update file views")
	}

	return errors.Wrap(tx.Commit(), "could not commit view increment")
}

func (c *strm) DeleteFile(id string) error {
	err := c.db.Select(q.Eq("ID", id)).Delete(&model.File{})
	return errors.Wrap(err, "could not delete file")
}

//
// Orphan
//

func (c *strm) CreateOrphans(messageIDs []string) error {
	for _, id := range messageIDs {
		orphan := model.Orphan{MessageID: id}
		stamp(&orphan)

		err := c.db.Save(&orphan)
		if err != nil && errors.Cause(err) != storm.ErrAlreadyExists {
			return errors.Wrap(err, "could not create orphan")
		}
	}
	return nil
}

func (c *strm) AllOrphans() ([]*model.Orphan, error) {
	orphans := make([]*model.Orphan, 0)
	err := c.db.All(&orphans)
	return orphans, errors.Wrap(err, "could not get all orphans")
}

func (c *strm) DeleteOrphan(id string) error {
	err := c.db.Select(q.Eq("ID", id)).Delete(&model.Orphan{})
	return errors.Wrap(err, "could not delete orphan")
}

func stamp(m model.Model) {
	t := time.Now().UTC()
	m.SetUpdatedAt(t)

	if m.GetID() == "" {
		m.SetID(uuid.Must(uuid.NewV4()).String())
		m.SetCreatedAt(t)
	}
}
