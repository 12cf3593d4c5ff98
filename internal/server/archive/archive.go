// Package archive keeps a copy of an owner's ciphertexts in S3-compatible
// object storage before a key rotation replaces them.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	sc "github.com/dmitrijs2005/zkvault/internal/server/config"
	"github.com/dmitrijs2005/zkvault/internal/server/models"
)

// Archiver stores a snapshot of notes and returns its object key.
type Archiver interface {
	Archive(ctx context.Context, ownerID, generation int64, notes []models.Note) (string, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}

	now = time.Now
)

// Nop discards snapshots. It is used when no bucket is configured.
type Nop struct{}

func (Nop) Archive(context.Context, int64, int64, []models.Note) (string, error) {
	return "", nil
}

// S3Archiver writes snapshots as JSON objects.
type S3Archiver struct {
	client *s3.Client
	bucket string
}

// New returns an S3Archiver when cfg names a bucket and Nop otherwise.
func New(ctx context.Context, cfg *sc.Config) (Archiver, error) {
	if !cfg.ArchiveEnabled() {
		return Nop{}, nil
	}

	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Archiver{client: client, bucket: cfg.S3Bucket}, nil
}

type snapshotNote struct {
	ID         int64     `json:"id"`
	Ciphertext []byte    `json:"ciphertext"`
	Nonce      []byte    `json:"nonce"`
	AuthTag    []byte    `json:"authenticationTag"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type snapshot struct {
	OwnerID    int64          `json:"ownerId"`
	Generation int64          `json:"keyGeneration"`
	TakenAt    time.Time      `json:"takenAt"`
	Notes      []snapshotNote `json:"notes"`
}

// ObjectKey names the snapshot of ownerID's notes under key generation gen.
func ObjectKey(ownerID, gen int64, t time.Time) string {
	return fmt.Sprintf("rotations/%d/%d/%s-%s.json", ownerID, gen, t.UTC().Format("20060102T150405Z"), uuid.NewString())
}

func (a *S3Archiver) Archive(ctx context.Context, ownerID, generation int64, notes []models.Note) (string, error) {
	taken := now()
	snap := snapshot{
		OwnerID:    ownerID,
		Generation: generation,
		TakenAt:    taken,
		Notes:      make([]snapshotNote, 0, len(notes)),
	}
	for _, n := range notes {
		snap.Notes = append(snap.Notes, snapshotNote{
			ID:         n.ID,
			Ciphertext: n.Ciphertext,
			Nonce:      n.Nonce,
			AuthTag:    n.AuthTag,
			UpdatedAt:  n.UpdatedAt,
		})
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	key := ObjectKey(ownerID, generation, taken)
	_, err = putObject(a.client, ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}

	return key, nil
}
