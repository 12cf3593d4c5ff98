package client

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/zkvault/internal/client/models"
	"github.com/dmitrijs2005/zkvault/internal/client/services"
	"github.com/dmitrijs2005/zkvault/internal/common"
	"github.com/dmitrijs2005/zkvault/internal/cryptox"
)

// HTTPClient talks to the zkvault server over its JSON API.
type HTTPClient struct {
	rc    *resty.Client
	token TokenSource
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient builds a client for baseURL. token may be nil for a client
// that only registers and logs in.
func NewHTTPClient(baseURL string, timeout time.Duration, token TokenSource) *HTTPClient {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "zkvault-cli/1.0").
		SetError(&apiError{})

	c := &HTTPClient{rc: rc, token: token}

	rc.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		r.SetHeader(common.RequestIDHeaderName, uuid.NewString())
		if c.token != nil {
			if t := c.token(); t != "" {
				r.SetAuthToken(t)
			}
		}
		return nil
	})

	return c
}

// Resty exposes the underlying client, e.g. for httpmock in tests.
func (c *HTTPClient) Resty() *resty.Client {
	return c.rc
}

func (c *HTTPClient) req(ctx context.Context) *resty.Request {
	return c.rc.R().SetContext(ctx)
}

func notePath(id int64) string {
	return "/api/notes/" + strconv.FormatInt(id, 10)
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return mapError(c.req(ctx).Get("/healthz"))
}

func (c *HTTPClient) Register(ctx context.Context, cred services.Credential) (int64, error) {
	var out registerResponse
	err := mapError(c.req(ctx).
		SetBody(registerRequest{
			Email:            cred.Email,
			UsernameHash:     cred.UsernameHash,
			PasswordVerifier: cred.PasswordVerifier,
			LoginSalt:        cred.LoginSalt,
		}).
		SetResult(&out).
		Post("/api/auth/register"))
	if err != nil {
		return 0, err
	}
	return out.UserID, nil
}

func (c *HTTPClient) Login(ctx context.Context, email, verifier string) (*services.LoginResult, error) {
	var out loginResponse
	err := mapError(c.req(ctx).
		SetBody(loginRequest{Email: email, PasswordVerifier: verifier}).
		SetResult(&out).
		Post("/api/auth/login"))
	if err != nil {
		return nil, err
	}
	return &services.LoginResult{
		Token:     out.Token,
		OwnerID:   out.UserID,
		Email:     out.Email,
		LoginSalt: out.LoginSalt,
	}, nil
}

func (c *HTTPClient) ChangePassword(ctx context.Context, currentVerifier, newVerifier string, newLoginSalt []byte) error {
	return mapError(c.req(ctx).
		SetBody(changePasswordRequest{
			CurrentPasswordVerifier: currentVerifier,
			NewPasswordVerifier:     newVerifier,
			NewLoginSalt:            newLoginSalt,
		}).
		Put("/api/auth/change-password"))
}

func (c *HTTPClient) CommitRotation(ctx context.Context, commit services.RotationCommit) error {
	body := rotateRequest{
		changePasswordRequest: changePasswordRequest{
			CurrentPasswordVerifier: commit.CurrentVerifier,
			NewPasswordVerifier:     commit.NewVerifier,
			NewLoginSalt:            commit.NewLoginSalt,
		},
		Records: make([]recordDTO, 0, len(commit.Records)),
	}
	for _, r := range commit.Records {
		body.Records = append(body.Records, toDTO(r.RecordID, r))
	}
	return mapError(c.req(ctx).SetBody(body).Post("/api/auth/rotate"))
}

func (c *HTTPClient) List(ctx context.Context, ownerID int64) ([]models.Record, error) {
	var out listResponse
	if err := mapError(c.req(ctx).SetResult(&out).Get("/api/notes")); err != nil {
		return nil, err
	}

	recs := make([]models.Record, 0, len(out.Notes))
	for _, n := range out.Notes {
		recs = append(recs, n.toModel(ownerID))
	}
	return recs, nil
}

func (c *HTTPClient) Get(ctx context.Context, ownerID, recordID int64) (*models.Record, error) {
	var out noteDTO
	if err := mapError(c.req(ctx).SetResult(&out).Get(notePath(recordID))); err != nil {
		return nil, err
	}
	out.ID = recordID
	rec := out.toModel(ownerID)
	return &rec, nil
}

func (c *HTTPClient) Create(ctx context.Context, ownerID int64, rec *cryptox.EncryptedRecord) error {
	return mapError(c.req(ctx).SetBody(toDTO(rec.RecordID, rec)).Post("/api/notes"))
}

func (c *HTTPClient) Update(ctx context.Context, ownerID, recordID int64, rec *cryptox.EncryptedRecord) error {
	return mapError(c.req(ctx).SetBody(toDTO(0, rec)).Put(notePath(recordID)))
}

func (c *HTTPClient) Delete(ctx context.Context, ownerID, recordID int64) error {
	return mapError(c.req(ctx).Delete(notePath(recordID)))
}
