// internal/s3source/source.go
package s3source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cdn-logs-collector/internal/model"
	"cdn-logs-collector/internal/pool"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfgLib "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/ssocreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"
)

// LogSuffix is the fixed tail of every raw log export key:
// {prefix}/YYYY/MM/DD/HH/mm/ss/{edgename}_{cname}_access.log.gz
const LogSuffix = "_access.log.gz"

// gzipMagic is the two-byte gzip frame header. Objects are sniffed rather
// than trusted by suffix: some exports are named .gz but hold plain text.
var gzipMagic = []byte{0x1f, 0x8b}

// Client is the slice of the S3 API the source needs. s3.Client satisfies
// it; tests substitute a fake.
type Client interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Source lists and retrieves CDN log objects from one bucket.
type Source struct {
	client Client
	bucket string
}

// New resolves AWS configuration (region, optional shared-config profile)
// and returns a Source for bucket.
func New(ctx context.Context, bucket, region, profile string) (*Source, error) {
	opts := []func(*awsCfgLib.LoadOptions) error{
		awsCfgLib.WithRegion(region),
	}
	if profile != "" {
		opts = append(opts, awsCfgLib.WithSharedConfigProfile(profile))
	}
	awsCfg, err := awsCfgLib.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &Source{client: s3.NewFromConfig(awsCfg), bucket: bucket}, nil
}

// NewWithClient wires an existing client; used by tests.
func NewWithClient(client Client, bucket string) *Source {
	return &Source{client: client, bucket: bucket}
}

// EachLogObject lists objects under prefix whose keys end in LogSuffix,
// in store-listing order, paginating transparently. When since is
// non-zero, objects last modified before it are skipped. fn returning
// false stops the enumeration early.
func (s *Source) EachLogObject(ctx context.Context, prefix string, since time.Time, fn func(model.ObjectRef) bool) error {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("list s3://%s/%s: %w", s.bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, LogSuffix) {
				continue
			}
			lastMod := aws.ToTime(obj.LastModified)
			if !since.IsZero() && lastMod.Before(since) {
				continue
			}
			ref := model.ObjectRef{
				Key:          key,
				LastModified: lastMod,
				Size:         aws.ToInt64(obj.Size),
			}
			if !fn(ref) {
				return nil
			}
		}
	}
	return nil
}

// RawKeys lists up to maxKeys objects under prefix with no suffix or time
// filtering. Diagnostic helper for distinguishing "no matching objects"
// from "no objects at all".
func (s *Source) RawKeys(ctx context.Context, prefix string, maxKeys int) ([]model.ObjectRef, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	var out []model.ObjectRef
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			out = append(out, model.ObjectRef{
				Key:          aws.ToString(obj.Key),
				LastModified: aws.ToTime(obj.LastModified),
				Size:         aws.ToInt64(obj.Size),
			})
			if len(out) >= maxKeys {
				return out, nil
			}
		}
	}
	return out, nil
}

// FetchLines downloads one object, inflates it when it is really gzip,
// and returns its content split into lines. CRLF and LF terminators are
// both accepted. A trailing terminator does not produce a final blank
// line, so line counts reflect actual log lines.
func (s *Source) FetchLines(ctx context.Context, key string) ([]string, error) {
	body, err := s.fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	text := strings.ToValidUTF8(body, "�")
	lines := strings.Split(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines, nil
}

func (s *Source) fetch(ctx context.Context, key string) (string, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
	}
	defer resp.Body.Close()

	buf := pool.BufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer pool.PutBuffer(buf)

	if _, err := io.Copy(buf, resp.Body); err != nil {
		return "", fmt.Errorf("read s3://%s/%s: %w", s.bucket, key, err)
	}
	raw := buf.Bytes()

	if !strings.HasSuffix(key, ".gz") || !bytes.HasPrefix(raw, gzipMagic) {
		// Mislabeled .gz objects degrade to raw-text handling.
		return buf.String(), nil
	}

	gz := pool.GzipReaderPool.Get().(*gzip.Reader)
	if err := gz.Reset(bytes.NewReader(raw)); err != nil {
		return "", fmt.Errorf("gunzip s3://%s/%s: %w", s.bucket, key, err)
	}
	defer pool.GzipReaderPool.Put(gz)

	out := pool.BufferPool.Get().(*bytes.Buffer)
	out.Reset()
	defer pool.PutBuffer(out)
	if _, err := io.Copy(out, gz); err != nil {
		return "", fmt.Errorf("gunzip s3://%s/%s: %w", s.bucket, key, err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("gunzip s3://%s/%s: %w", s.bucket, key, err)
	}
	return out.String(), nil
}

// VerifyAccess checks that the bucket is reachable and readable: a
// HeadBucket plus a one-key listing under prefix. Returns the number of
// keys seen under the prefix (0 or 1).
func (s *Source) VerifyAccess(ctx context.Context, prefix string) (int, error) {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return 0, fmt.Errorf("head bucket s3://%s: %w", s.bucket, err)
	}
	resp, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return 0, fmt.Errorf("list s3://%s/%s: %w", s.bucket, prefix, err)
	}
	return int(aws.ToInt32(resp.KeyCount)), nil
}

// IsCredentialError reports whether err is an expired or unusable SSO
// token, the most common operator-facing failure. The CLI turns it into
// an "aws sso login" hint instead of a raw error chain.
func IsCredentialError(err error) bool {
	var invalidToken *ssocreds.InvalidTokenError
	return errors.As(err, &invalidToken)
}
