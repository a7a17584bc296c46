package s3util

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGetter struct {
	objects map[string]string
	bucket  string
}

func (f *fakeGetter) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.bucket = *in.Bucket
	body, ok := f.objects[*in.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestNewScratchDir_UniqueAndCleaned(t *testing.T) {
	root := t.TempDir()

	a, cleanA, err := NewScratchDir(root)
	require.NoError(t, err)
	b, cleanB, err := NewScratchDir(root)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.DirExists(t, a)

	require.NoError(t, os.WriteFile(filepath.Join(a, "frame.jpg"), []byte("x"), 0o600))
	cleanA()
	cleanB()
	assert.NoDirExists(t, a)
	assert.NoDirExists(t, b)
}

func TestDownloadToDir(t *testing.T) {
	dir := t.TempDir()
	client := &fakeGetter{objects: map[string]string{"in/frame_3_2_006.jpg": "jpeg-bytes"}}

	path, err := DownloadToDir(context.Background(), client, "photos", "in/frame_3_2_006.jpg", dir, "frame_3_2_006.jpg")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "frame_3_2_006.jpg"), path)
	assert.Equal(t, "photos", client.bucket)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
}

func TestDownloadToDir_MissingObject(t *testing.T) {
	client := &fakeGetter{objects: map[string]string{}}

	_, err := DownloadToDir(context.Background(), client, "photos", "gone.jpg", t.TempDir(), "gone.jpg")
	assert.ErrorContains(t, err, "S3 GetObject")
}

func TestDownloadToDir_RejectsUnsafeNames(t *testing.T) {
	client := &fakeGetter{objects: map[string]string{}}
	for _, name := range []string{"", ".", "..", "a/b", "../escape.jpg"} {
		_, err := DownloadToDir(context.Background(), client, "photos", "k", t.TempDir(), name)
		assert.ErrorContains(t, err, "invalid local file name", name)
	}
}

func TestDownloadToDir_BackslashInName(t *testing.T) {
	client := &fakeGetter{objects: map[string]string{`cam\a_3_2_006.jpg`: "jpeg-bytes"}}
	dir := t.TempDir()

	path, err := DownloadToDir(context.Background(), client, "photos", `cam\a_3_2_006.jpg`, dir, `cam\a_3_2_006.jpg`)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, `cam\a_3_2_006.jpg`), path)
}
