package s3source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"cdn-logs-collector/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObject struct {
	key      string
	modified time.Time
	body     []byte
}

// fakeClient serves canned objects through the same API slice the source
// consumes, two keys per page to exercise pagination.
type fakeClient struct {
	objects []fakeObject
	listErr error
	getErr  error
	headErr error
}

const pageSize = 2

func (f *fakeClient) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var matching []fakeObject
	for _, obj := range f.objects {
		if strings.HasPrefix(obj.key, aws.ToString(in.Prefix)) {
			matching = append(matching, obj)
		}
	}
	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		for i, obj := range matching {
			if obj.key == tok {
				start = i
				break
			}
		}
	}
	end := start + pageSize
	if in.MaxKeys != nil && int(*in.MaxKeys) < pageSize {
		end = start + int(*in.MaxKeys)
	}
	if end > len(matching) {
		end = len(matching)
	}
	out := &s3.ListObjectsV2Output{KeyCount: aws.Int32(int32(end - start))}
	for _, obj := range matching[start:end] {
		out.Contents = append(out.Contents, s3types.Object{
			Key:          aws.String(obj.key),
			LastModified: aws.Time(obj.modified),
			Size:         aws.Int64(int64(len(obj.body))),
		})
	}
	if end < len(matching) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(matching[end].key)
	} else {
		out.IsTruncated = aws.Bool(false)
	}
	return out, nil
}

func (f *fakeClient) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, obj := range f.objects {
		if obj.key == aws.ToString(in.Key) {
			return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(obj.body))}, nil
		}
	}
	return nil, errors.New("NoSuchKey")
}

func (f *fakeClient) HeadBucket(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func gzipBytes(t *testing.T, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func collectRefs(t *testing.T, src *Source, prefix string, since time.Time, limit int) []model.ObjectRef {
	t.Helper()
	var refs []model.ObjectRef
	err := src.EachLogObject(context.Background(), prefix, since, func(ref model.ObjectRef) bool {
		refs = append(refs, ref)
		return limit == 0 || len(refs) < limit
	})
	require.NoError(t, err)
	return refs
}

func TestEachLogObjectFiltersByCutoff(t *testing.T) {
	cutoff := time.Date(2026, time.February, 23, 12, 0, 0, 0, time.UTC)
	mk := func(n string, offset time.Duration) fakeObject {
		return fakeObject{key: "logs/" + n + "_access.log.gz", modified: cutoff.Add(offset)}
	}
	client := &fakeClient{objects: []fakeObject{
		mk("old1", -2*time.Hour),
		mk("old2", -time.Minute),
		mk("new1", 0), // exactly at the cutoff is kept
		mk("new2", time.Minute),
		mk("new3", time.Hour),
	}}
	src := NewWithClient(client, "bucket")

	refs := collectRefs(t, src, "logs/", cutoff, 0)
	require.Len(t, refs, 3)
	assert.Equal(t, "logs/new1_access.log.gz", refs[0].Key)
	assert.Equal(t, "logs/new2_access.log.gz", refs[1].Key)
	assert.Equal(t, "logs/new3_access.log.gz", refs[2].Key)

	// An object-count cap truncates to exactly one.
	refs = collectRefs(t, src, "logs/", cutoff, 1)
	require.Len(t, refs, 1)
	assert.Equal(t, "logs/new1_access.log.gz", refs[0].Key)
}

func TestEachLogObjectFiltersBySuffix(t *testing.T) {
	now := time.Now().UTC()
	client := &fakeClient{objects: []fakeObject{
		{key: "logs/a_access.log.gz", modified: now},
		{key: "logs/readme.txt", modified: now},
		{key: "logs/b_access.log", modified: now},
		{key: "logs/c_access.log.gz", modified: now},
	}}
	src := NewWithClient(client, "bucket")

	refs := collectRefs(t, src, "logs/", time.Time{}, 0)
	require.Len(t, refs, 2)
	assert.Equal(t, "logs/a_access.log.gz", refs[0].Key)
	assert.Equal(t, "logs/c_access.log.gz", refs[1].Key)
}

func TestEachLogObjectPaginates(t *testing.T) {
	now := time.Now().UTC()
	var objs []fakeObject
	for _, n := range []string{"a", "b", "c", "d", "e"} {
		objs = append(objs, fakeObject{key: "logs/" + n + "_access.log.gz", modified: now})
	}
	src := NewWithClient(&fakeClient{objects: objs}, "bucket")

	refs := collectRefs(t, src, "logs/", time.Time{}, 0)
	assert.Len(t, refs, 5, "all pages consumed")
}

func TestEachLogObjectListError(t *testing.T) {
	src := NewWithClient(&fakeClient{listErr: errors.New("AccessDenied")}, "bucket")
	err := src.EachLogObject(context.Background(), "logs/", time.Time{}, func(model.ObjectRef) bool { return true })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AccessDenied")
}

func TestRawKeysNoFiltering(t *testing.T) {
	now := time.Now().UTC()
	client := &fakeClient{objects: []fakeObject{
		{key: "logs/readme.txt", modified: now},
		{key: "logs/a_access.log.gz", modified: now},
		{key: "logs/b.json", modified: now},
	}}
	src := NewWithClient(client, "bucket")

	refs, err := src.RawKeys(context.Background(), "logs/", 2)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "logs/readme.txt", refs[0].Key)
}

func TestFetchLinesGzip(t *testing.T) {
	content := "line one\nline two\nline three\n"
	client := &fakeClient{objects: []fakeObject{
		{key: "logs/x_access.log.gz", body: gzipBytes(t, content)},
	}}
	src := NewWithClient(client, "bucket")

	lines, err := src.FetchLines(context.Background(), "logs/x_access.log.gz")
	require.NoError(t, err)
	assert.Equal(t, []string{"line one", "line two", "line three"}, lines)
}

func TestFetchLinesMislabeledGzip(t *testing.T) {
	// Named .gz but holding plain text: degrade to raw-text handling.
	client := &fakeClient{objects: []fakeObject{
		{key: "logs/x_access.log.gz", body: []byte("plain one\nplain two")},
	}}
	src := NewWithClient(client, "bucket")

	lines, err := src.FetchLines(context.Background(), "logs/x_access.log.gz")
	require.NoError(t, err)
	assert.Equal(t, []string{"plain one", "plain two"}, lines)
}

func TestFetchLinesCRLF(t *testing.T) {
	client := &fakeClient{objects: []fakeObject{
		{key: "logs/x.log", body: []byte("one\r\ntwo\r\n")},
	}}
	src := NewWithClient(client, "bucket")

	lines, err := src.FetchLines(context.Background(), "logs/x.log")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, lines)
}

func TestFetchLinesMissingObject(t *testing.T) {
	src := NewWithClient(&fakeClient{}, "bucket")
	_, err := src.FetchLines(context.Background(), "logs/nope.log")
	require.Error(t, err)
}

func TestVerifyAccess(t *testing.T) {
	now := time.Now().UTC()
	client := &fakeClient{objects: []fakeObject{
		{key: "logs/a_access.log.gz", modified: now},
	}}
	src := NewWithClient(client, "bucket")

	n, err := src.VerifyAccess(context.Background(), "logs/")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	src = NewWithClient(&fakeClient{headErr: errors.New("Forbidden")}, "bucket")
	_, err = src.VerifyAccess(context.Background(), "logs/")
	require.Error(t, err)
}
