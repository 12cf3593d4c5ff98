package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/zkvault/internal/client/models"
	"github.com/dmitrijs2005/zkvault/internal/client/session"
	"github.com/dmitrijs2005/zkvault/internal/common"
	"github.com/dmitrijs2005/zkvault/internal/logging"
)

const maxIDAttempts = 3

// NoteView is one entry of a note listing. Err is set, and the note left
// empty apart from its id, when the record could not be decrypted.
type NoteView struct {
	models.Note
	Err error
}

type NoteService interface {
	List(ctx context.Context) ([]NoteView, error)
	Get(ctx context.Context, id int64) (*models.Note, error)
	Create(ctx context.Context, title, body string) (int64, error)
	Update(ctx context.Context, id int64, title, body string) error
	Delete(ctx context.Context, id int64) error
}

type noteService struct {
	store RecordStore
	vault Vault
	sess  *session.Session
	log   logging.Logger
}

func NewNoteService(store RecordStore, vault Vault, sess *session.Session, log logging.Logger) NoteService {
	if log == nil {
		log = logging.Nop()
	}
	return &noteService{store: store, vault: vault, sess: sess, log: log}
}

func (s *noteService) owner() (int64, error) {
	identity, err := s.sess.Identity()
	if err != nil {
		return 0, err
	}
	return identity.OwnerID, nil
}

// List decrypts every note, newest first. A note that fails to decrypt is
// reported through NoteView.Err instead of failing the listing.
func (s *noteService) List(ctx context.Context) ([]NoteView, error) {
	ownerID, err := s.owner()
	if err != nil {
		return nil, err
	}

	recs, err := s.store.List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}

	views := make([]NoteView, 0, len(recs))
	for _, r := range recs {
		view := NoteView{Note: models.Note{ID: r.ID(), CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}}

		pt, err := s.vault.DecryptRecord(r.Sealed, ownerID, r.ID())
		if err != nil {
			s.log.Warn(ctx, "note decryption failed", "record_id", r.ID(), "error", err)
			view.Err = err
			views = append(views, view)
			continue
		}

		parsed := models.ParseNote(pt)
		common.WipeByteArray(pt)
		view.Title, view.Body = parsed.Title, parsed.Body
		views = append(views, view)
	}

	sort.SliceStable(views, func(i, j int) bool {
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})
	return views, nil
}

func (s *noteService) Get(ctx context.Context, id int64) (*models.Note, error) {
	ownerID, err := s.owner()
	if err != nil {
		return nil, err
	}

	r, err := s.store.Get(ctx, ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("get note %d: %w", id, err)
	}

	pt, err := s.vault.DecryptRecord(r.Sealed, ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("decrypt note %d: %w", id, err)
	}
	defer common.WipeByteArray(pt)

	note := models.ParseNote(pt)
	note.ID, note.CreatedAt, note.UpdatedAt = id, r.CreatedAt, r.UpdatedAt
	return &note, nil
}

// Create encrypts the note under a fresh random id. When the server
// already holds that id the note is re-encrypted under a new one.
func (s *noteService) Create(ctx context.Context, title, body string) (int64, error) {
	ownerID, err := s.owner()
	if err != nil {
		return 0, err
	}

	pt := models.Note{Title: title, Body: body}.Plaintext()
	defer common.WipeByteArray(pt)

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := NewRecordID()
		if err != nil {
			return 0, err
		}

		rec, err := s.vault.EncryptRecord(pt, ownerID, id)
		if err != nil {
			return 0, fmt.Errorf("encrypt note: %w", err)
		}

		err = s.store.Create(ctx, ownerID, rec)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, common.ErrorAlreadyExists) && !errors.Is(err, common.ErrConflict) {
			return 0, fmt.Errorf("create note: %w", err)
		}
		s.log.Debug(ctx, "record id collision, retrying", "attempt", attempt+1)
	}
	return 0, fmt.Errorf("create note: %w", common.ErrConflict)
}

func (s *noteService) Update(ctx context.Context, id int64, title, body string) error {
	ownerID, err := s.owner()
	if err != nil {
		return err
	}

	pt := models.Note{Title: title, Body: body}.Plaintext()
	defer common.WipeByteArray(pt)

	rec, err := s.vault.EncryptRecord(pt, ownerID, id)
	if err != nil {
		return fmt.Errorf("encrypt note: %w", err)
	}
	if err := s.store.Update(ctx, ownerID, id, rec); err != nil {
		return fmt.Errorf("update note %d: %w", id, err)
	}
	return nil
}

func (s *noteService) Delete(ctx context.Context, id int64) error {
	ownerID, err := s.owner()
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete note %d: %w", id, err)
	}
	return nil
}
