package s3infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/civic-alerts/internal/config"
	"github.com/civic-alerts/internal/infrastructure/awsconf"
	"github.com/civic-alerts/internal/pkg/id"
)

type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store keeps undeliverable webhook payloads for later replay.
type Store struct {
	client putter
	bucket string
	now    func() time.Time
}

// NewClient creates an S3 client. When cfg.AWSEndpointURL is set (LocalStack),
// it overrides the endpoint and enables path-style addressing.
func NewClient(cfg *config.Config) *s3.Client {
	awsCfg, err := awsconf.Load(context.Background(), cfg, cfg.AWSRegion)
	if err != nil {
		panic("failed to load AWS config for S3: " + err.Error())
	}

	clientOpts := []func(*s3.Options){}
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
			o.UsePathStyle = true
		})
	}

	return s3.NewFromConfig(awsCfg, clientOpts...)
}

// NewStore creates a Store with the given S3 client and bucket name.
func NewStore(client *s3.Client, bucket string) *Store {
	return &Store{client: client, bucket: bucket, now: time.Now}
}

// Upload streams r to S3 under key and returns the object URL.
func (s *Store) Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

type failedDelivery struct {
	URL      string          `json:"url"`
	Error    string          `json:"error"`
	FailedAt time.Time       `json:"failedAt"`
	Payload  json.RawMessage `json:"payload"`
}

// Archive stores a webhook payload that could not be delivered, together
// with the target URL and the failure.
func (s *Store) Archive(ctx context.Context, url string, body []byte, cause error) error {
	now := s.now().UTC()
	rec := failedDelivery{URL: url, FailedAt: now, Payload: json.RawMessage(body)}
	if cause != nil {
		rec.Error = cause.Error()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal failed delivery: %w", err)
	}
	_, err = s.Upload(ctx, archiveKey(now, id.NewAt(now)), bytes.NewReader(data), "application/json")
	return err
}

func archiveKey(t time.Time, ref string) string {
	return fmt.Sprintf("webhooks/failed/%s/%s.json", t.Format("2006/01/02"), ref)
}
