package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/patrickmn/go-cache"

	"voice-forms-go/internal/logger"
)

// urlSlack keeps cached links from being handed out moments before expiry.
const urlSlack = time.Minute

type MinioOptions struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
}

// MinioStore keeps recordings in an S3 compatible bucket. Read grants and
// presigned links are cached until shortly before they expire.
type MinioStore struct {
	client *minio.Client
	bucket string
	grants *cache.Cache
	urls   *cache.Cache
	log    *logger.Logger
}

func NewMinio(ctx context.Context, opts MinioOptions, log *logger.Logger) (*MinioStore, error) {
	if opts.Endpoint == "" || opts.AccessKeyID == "" || opts.SecretAccessKey == "" || opts.Bucket == "" {
		return nil, fmt.Errorf("MINIO_ENDPOINT, MINIO_ACCESS_KEY_ID, MINIO_SECRET_ACCESS_KEY and MINIO_BUCKET_NAME must be set")
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %q: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %q: %w", opts.Bucket, err)
		}
		log.WithField("bucket", opts.Bucket).Info("bucket created")
	}

	return &MinioStore{
		client: client,
		bucket: opts.Bucket,
		grants: cache.New(time.Hour, 10*time.Minute),
		urls:   cache.New(time.Hour, 10*time.Minute),
		log:    log.With(map[string]any{"component": "blobstore", "bucket": opts.Bucket}),
	}, nil
}

func (m *MinioStore) PutObject(ctx context.Context, data []byte, key, contentType string) (string, error) {
	info, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	m.log.WithField("object", key).WithField("size", info.Size).Debug("object uploaded")
	return key, nil
}

func (m *MinioStore) GetObject(ctx context.Context, ref string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, ref, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", ref, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%s: %w", ref, ErrNoObject)
		}
		return nil, fmt.Errorf("download %s: %w", ref, err)
	}
	return data, nil
}

// AuthorizeRead issues a grant for prefix. Repeated calls within the TTL
// reuse the same grant.
func (m *MinioStore) AuthorizeRead(_ context.Context, prefix string, ttl time.Duration) (Token, error) {
	if ttl <= 0 {
		return Token{}, fmt.Errorf("ttl must be positive")
	}
	key := fmt.Sprintf("%s|%d", prefix, ttl)
	if v, ok := m.grants.Get(key); ok {
		tok := v.(Token)
		if time.Until(tok.ExpiresAt) > urlSlack {
			return tok, nil
		}
	}
	tok := Token{Prefix: prefix, ExpiresAt: time.Now().Add(ttl)}
	m.grants.Set(key, tok, max(ttl-urlSlack, time.Second))
	return tok, nil
}

// SignedURL presigns a GET for ref that lives as long as tok does.
func (m *MinioStore) SignedURL(ctx context.Context, ref string, tok Token) (string, error) {
	now := time.Now()
	if err := tok.allows(ref, now); err != nil {
		return "", err
	}
	cacheKey := ref + "|" + tok.ExpiresAt.Format(time.RFC3339Nano)
	if v, ok := m.urls.Get(cacheKey); ok {
		return v.(string), nil
	}

	expiry := tok.ExpiresAt.Sub(now).Truncate(time.Second)
	if expiry < time.Second {
		return "", ErrTokenExpired
	}
	u, err := m.client.PresignedGetObject(ctx, m.bucket, ref, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", ref, err)
	}
	link := u.String()
	if expiry > urlSlack {
		m.urls.Set(cacheKey, link, expiry-urlSlack)
	}
	return link, nil
}
