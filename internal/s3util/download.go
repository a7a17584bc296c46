// Package s3util downloads trigger objects into invocation-scoped scratch
// storage. Every invocation gets its own directory so concurrent invocations
// on a warm container never share a local path, even for identical names.
package s3util

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ObjectGetter is the subset of *s3.Client needed to fetch an object.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// NewScratchDir creates a unique directory under root and returns it with a
// cleanup func that removes it and everything inside.
func NewScratchDir(root string) (string, func(), error) {
	dir := filepath.Join(root, "inspect-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", nil, fmt.Errorf("create scratch dir: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("Failed to remove scratch dir")
		}
	}
	return dir, cleanup, nil
}

// DownloadToDir streams bucket/key into dir/name and returns the local path.
func DownloadToDir(ctx context.Context, client ObjectGetter, bucket, key, dir, name string) (string, error) {
	// name must stay inside dir. Backslash is an ordinary character on Linux.
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, '/') || strings.ContainsRune(name, filepath.Separator) {
		return "", fmt.Errorf("invalid local file name %q", name)
	}
	localPath := filepath.Join(dir, name)

	log.Debug().Str("bucket", bucket).Str("key", key).Str("localPath", localPath).Msg("Downloading from S3")
	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket, Key: &key,
	})
	if err != nil {
		return "", fmt.Errorf("S3 GetObject: %w", err)
	}
	defer result.Body.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, result.Body)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close file: %w", err)
	}
	log.Debug().Str("localPath", localPath).Int64("bytes", n).Msg("Download complete")
	return localPath, nil
}
