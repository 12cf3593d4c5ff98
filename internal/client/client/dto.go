package client

import (
	"time"

	"github.com/dmitrijs2005/zkvault/internal/client/models"
	"github.com/dmitrijs2005/zkvault/internal/cryptox"
)

type registerRequest struct {
	Email            string `json:"email"`
	UsernameHash     string `json:"usernameHash"`
	PasswordVerifier string `json:"passwordVerifier"`
	LoginSalt        []byte `json:"loginSalt"`
}

type registerResponse struct {
	UserID int64 `json:"userId"`
}

type loginRequest struct {
	Email            string `json:"email"`
	PasswordVerifier string `json:"passwordVerifier"`
}

type loginResponse struct {
	Token     string `json:"token"`
	UserID    int64  `json:"userId"`
	Email     string `json:"email"`
	LoginSalt []byte `json:"loginSalt"`
}

type changePasswordRequest struct {
	CurrentPasswordVerifier string `json:"currentPasswordVerifier"`
	NewPasswordVerifier     string `json:"newPasswordVerifier"`
	NewLoginSalt            []byte `json:"newLoginSalt"`
}

type rotateRequest struct {
	changePasswordRequest
	Records []recordDTO `json:"records"`
}

type recordDTO struct {
	ID         int64  `json:"id,omitempty"`
	Ciphertext []byte `json:"ciphertext"`
	Nonce      []byte `json:"nonce"`
	Tag        []byte `json:"authenticationTag"`
}

type noteDTO struct {
	recordDTO
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type listResponse struct {
	Notes []noteDTO `json:"notes"`
}

func toDTO(id int64, rec *cryptox.EncryptedRecord) recordDTO {
	return recordDTO{ID: id, Ciphertext: rec.Ciphertext, Nonce: rec.Nonce, Tag: rec.Tag}
}

func (n noteDTO) toModel(ownerID int64) models.Record {
	return models.Record{
		Sealed: &cryptox.EncryptedRecord{
			OwnerID:    ownerID,
			RecordID:   n.ID,
			Ciphertext: n.Ciphertext,
			Nonce:      n.Nonce,
			Tag:        n.Tag,
		},
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}
