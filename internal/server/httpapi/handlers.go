package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/zkvault/internal/common"
	"github.com/dmitrijs2005/zkvault/internal/server/metrics"
	"github.com/dmitrijs2005/zkvault/internal/server/models"
)

func (s *Server) health(c *gin.Context) {
	if s.db != nil {
		if err := s.db.PingContext(c.Request.Context()); err != nil {
			s.logger.Warn(c.Request.Context(), "health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "database unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if !s.bindJSON(c, &req) {
		return
	}

	user, err := s.users.Register(c.Request.Context(), req.Email, req.UsernameHash, req.PasswordVerifier, req.LoginSalt)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, registerResponse{UserID: user.ID})
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if !s.bindJSON(c, &req) {
		return
	}

	res, err := s.users.Login(c.Request.Context(), req.Email, req.PasswordVerifier)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			s.metrics.ObserveLogin(metrics.OutcomeRejected)
		} else {
			s.metrics.ObserveLogin(metrics.OutcomeError)
		}
		s.abortWithError(c, err)
		return
	}
	s.metrics.ObserveLogin(metrics.OutcomeSuccess)

	c.JSON(http.StatusOK, loginResponse{
		Token:     res.Token,
		UserID:    res.User.ID,
		Email:     res.User.Email,
		LoginSalt: res.User.LoginSalt,
	})
}

func (s *Server) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if !s.bindJSON(c, &req) {
		return
	}

	err := s.users.ChangePassword(c.Request.Context(), userID(c),
		req.CurrentPasswordVerifier, req.NewPasswordVerifier, req.NewLoginSalt)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) rotate(c *gin.Context) {
	var req rotateRequest
	if !s.bindJSON(c, &req) {
		return
	}

	records := make([]models.Note, 0, len(req.Records))
	for _, r := range req.Records {
		if r.ID <= 0 {
			s.metrics.ObserveRotation(metrics.OutcomeRejected, len(req.Records))
			s.abortWithError(c, fmt.Errorf("%w: record id is required", common.ErrorValidation))
			return
		}
		records = append(records, *r.toModel(r.ID))
	}

	res, err := s.users.Rotate(c.Request.Context(), userID(c),
		req.CurrentPasswordVerifier, req.NewPasswordVerifier, req.NewLoginSalt, records)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrConflict):
			s.metrics.ObserveRotation(metrics.OutcomeConflict, len(records))
		case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrorValidation):
			s.metrics.ObserveRotation(metrics.OutcomeRejected, len(records))
		default:
			s.metrics.ObserveRotation(metrics.OutcomeError, len(records))
		}
		s.abortWithError(c, err)
		return
	}
	s.metrics.ObserveRotation(metrics.OutcomeSuccess, res.Records)

	c.JSON(http.StatusOK, rotateResponse{Records: res.Records, KeyGeneration: res.KeyGeneration})
}

func noteID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid note id", common.ErrorValidation)
	}
	return id, nil
}

func (s *Server) listNotes(c *gin.Context) {
	notes, err := s.notes.List(c.Request.Context(), userID(c))
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	out := listResponse{Notes: make([]noteResponse, 0, len(notes))}
	for i := range notes {
		out.Notes = append(out.Notes, toNoteResponse(&notes[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getNote(c *gin.Context) {
	id, err := noteID(c)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	n, err := s.notes.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toNoteResponse(n))
}

func (s *Server) createNote(c *gin.Context) {
	var req recordBody
	if !s.bindJSON(c, &req) {
		return
	}
	if req.ID <= 0 {
		s.abortWithError(c, fmt.Errorf("%w: id is required", common.ErrorValidation))
		return
	}

	n, err := s.notes.Create(c.Request.Context(), userID(c), req.toModel(req.ID))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toNoteResponse(n))
}

func (s *Server) updateNote(c *gin.Context) {
	id, err := noteID(c)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	var req recordBody
	if !s.bindJSON(c, &req) {
		return
	}

	n, err := s.notes.Update(c.Request.Context(), userID(c), req.toModel(id))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toNoteResponse(n))
}

func (s *Server) deleteNote(c *gin.Context) {
	id, err := noteID(c)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	if err := s.notes.Delete(c.Request.Context(), userID(c), id); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
