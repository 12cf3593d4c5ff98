package httpapi

import (
	"time"

	"github.com/dmitrijs2005/zkvault/internal/server/models"
)

type errorResponse struct {
	Error string `json:"error"`
}

type registerRequest struct {
	Email            string `json:"email" binding:"required,email,max=320"`
	UsernameHash     string `json:"usernameHash" binding:"required,base64"`
	PasswordVerifier string `json:"passwordVerifier" binding:"required,base64"`
	LoginSalt        []byte `json:"loginSalt" binding:"required,len=16"`
}

type registerResponse struct {
	UserID int64 `json:"userId"`
}

type loginRequest struct {
	Email            string `json:"email" binding:"required,email"`
	PasswordVerifier string `json:"passwordVerifier" binding:"required"`
}

type loginResponse struct {
	Token     string `json:"token"`
	UserID    int64  `json:"userId"`
	Email     string `json:"email"`
	LoginSalt []byte `json:"loginSalt"`
}

type changePasswordRequest struct {
	CurrentPasswordVerifier string `json:"currentPasswordVerifier" binding:"required"`
	NewPasswordVerifier     string `json:"newPasswordVerifier" binding:"required,base64"`
	NewLoginSalt            []byte `json:"newLoginSalt" binding:"required,len=16"`
}

type recordBody struct {
	ID         int64  `json:"id,omitempty" binding:"omitempty,gt=0"`
	Ciphertext []byte `json:"ciphertext"`
	Nonce      []byte `json:"nonce" binding:"required,len=12"`
	Tag        []byte `json:"authenticationTag" binding:"required,len=16"`
}

type rotateRequest struct {
	changePasswordRequest
	Records []recordBody `json:"records" binding:"dive"`
}

type noteResponse struct {
	ID         int64     `json:"id"`
	Ciphertext []byte    `json:"ciphertext"`
	Nonce      []byte    `json:"nonce"`
	Tag        []byte    `json:"authenticationTag"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type listResponse struct {
	Notes []noteResponse `json:"notes"`
}

type rotateResponse struct {
	Records       int   `json:"records"`
	KeyGeneration int64 `json:"keyGeneration"`
}

func (r recordBody) toModel(id int64) *models.Note {
	if r.Ciphertext == nil {
		r.Ciphertext = []byte{}
	}
	return &models.Note{ID: id, Ciphertext: r.Ciphertext, Nonce: r.Nonce, AuthTag: r.Tag}
}

func toNoteResponse(n *models.Note) noteResponse {
	return noteResponse{
		ID:         n.ID,
		Ciphertext: n.Ciphertext,
		Nonce:      n.Nonce,
		Tag:        n.AuthTag,
		CreatedAt:  n.CreatedAt,
		UpdatedAt:  n.UpdatedAt,
	}
}
