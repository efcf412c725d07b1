// Package remote pushes and pulls the SQLite metadata artifact against an
// S3 bucket. The database file travels as one object next to a manifest
// carrying a generation id and checksum, so a pull can verify what it got
// and a reader can tell two pushes apart.
package remote

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/driftfs/driftfs/internal/logger"
	"github.com/driftfs/driftfs/internal/telemetry"
	"github.com/driftfs/driftfs/pkg/metadata"
)

// ErrNoManifest means the bucket has no pushed artifact yet.
var ErrNoManifest = errors.New("remote: no manifest found")

// ErrChecksumMismatch means the pulled artifact does not match its manifest.
var ErrChecksumMismatch = errors.New("remote: artifact checksum mismatch")

const (
	artifactKey = "metadata.db"
	manifestKey = "manifest.json"
)

// Manifest describes one pushed generation of the artifact.
type Manifest struct {
	Generation string    `json:"generation"`
	Checksum   string    `json:"checksum"` // sha256 hex of the artifact
	Size       int64     `json:"size"`
	PushedAt   time.Time `json:"pushed_at"`
}

// Config locates the bucket. Endpoint and static credentials exist for
// MinIO/localstack style deployments; empty values fall back to the default
// AWS credential chain.
type Config struct {
	Bucket          string
	Region          string
	Prefix          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// objectAPI is the slice of the S3 client the syncer uses. Tests inject an
// in-memory implementation.
type objectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Syncer moves the artifact between the local store and the bucket.
type Syncer struct {
	client objectAPI
	bucket string
	prefix string
}

// NewSyncer builds the S3 client from config.
func NewSyncer(ctx context.Context, cfg Config) (*Syncer, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("remote: bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // required for localstack/MinIO
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return &Syncer{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// newSyncerWithClient exists for tests.
func newSyncerWithClient(client objectAPI, bucket, prefix string) *Syncer {
	return &Syncer{client: client, bucket: bucket, prefix: prefix}
}

func (s *Syncer) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// Push uploads the artifact bytes and a fresh manifest. The caller is
// responsible for checkpointing the WAL first so the file is self-contained.
func (s *Syncer) Push(ctx context.Context, artifact []byte) (*Manifest, error) {
	ctx, span := telemetry.StartSyncSpan(ctx, telemetry.SpanSyncPush, s.bucket,
		telemetry.SyncBytes(int64(len(artifact))))
	defer span.End()

	sum := sha256.Sum256(artifact)
	manifest := &Manifest{
		Generation: uuid.NewString(),
		Checksum:   hex.EncodeToString(sum[:]),
		Size:       int64(len(artifact)),
		PushedAt:   time.Now().UTC(),
	}

	span.SetAttributes(telemetry.SyncGeneration(manifest.Generation))

	if err := s.put(ctx, artifactKey, artifact); err != nil {
		telemetry.RecordError(ctx, err)
		return nil, fmt.Errorf("failed to upload artifact: %w", err)
	}

	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := s.put(ctx, manifestKey, manifestJSON); err != nil {
		return nil, fmt.Errorf("failed to upload manifest: %w", err)
	}

	logger.Info("artifact pushed",
		"bucket", s.bucket,
		"generation", manifest.Generation,
		"size", manifest.Size)
	return manifest, nil
}

// Pull downloads the latest artifact and verifies it against the manifest.
func (s *Syncer) Pull(ctx context.Context) ([]byte, *Manifest, error) {
	ctx, span := telemetry.StartSyncSpan(ctx, telemetry.SpanSyncPull, s.bucket)
	defer span.End()

	manifest, err := s.Manifest(ctx)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, nil, err
	}
	span.SetAttributes(
		telemetry.SyncGeneration(manifest.Generation),
		telemetry.SyncBytes(manifest.Size))

	artifact, err := s.get(ctx, artifactKey)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, nil, fmt.Errorf("failed to download artifact: %w", err)
	}

	sum := sha256.Sum256(artifact)
	if hex.EncodeToString(sum[:]) != manifest.Checksum {
		return nil, nil, ErrChecksumMismatch
	}

	logger.Info("artifact pulled",
		"bucket", s.bucket,
		"generation", manifest.Generation,
		"size", len(artifact))
	return artifact, manifest, nil
}

// Manifest fetches the remote manifest, or ErrNoManifest when nothing was
// pushed yet.
func (s *Syncer) Manifest(ctx context.Context) (*Manifest, error) {
	data, err := s.get(ctx, manifestKey)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNoManifest
		}
		return nil, fmt.Errorf("failed to download manifest: %w", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &manifest, nil
}

// SyncStats pairs the local store counters with the remote manifest for the
// stats command and the control API. Remote is nil when nothing was pushed.
type SyncStats struct {
	Local  *metadata.Stats `json:"local"`
	Remote *Manifest       `json:"remote,omitempty"`
}

// Stats gathers local and remote state. A missing manifest is not an error.
func (s *Syncer) Stats(ctx context.Context, store metadata.Store) (*SyncStats, error) {
	local, err := store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read local stats: %w", err)
	}
	manifest, err := s.Manifest(ctx)
	if err != nil && !errors.Is(err, ErrNoManifest) {
		return nil, err
	}
	return &SyncStats{Local: local, Remote: manifest}, nil
}

func (s *Syncer) put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
		Body:   bytes.NewReader(data),
	})
	return err
}

func (s *Syncer) get(ctx context.Context, name string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// WriteArtifact replaces the local database file atomically so a crashed
// pull never leaves a half-written artifact behind.
func WriteArtifact(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	tmp := path + ".pull"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace artifact: %w", err)
	}
	return nil
}

// isNotFound matches the object-missing shapes the SDK produces.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound" || code == "404"
	}
	return false
}
