// Package filesys prepares local directories backing file:// buckets.
package filesys

import (
	"errors"
	"fmt"
	"net/url"
	"os"
)

var (
	ErrIsNotDir = errors.New("path isn't a directory")
)

func CreateDir(dirPath string, permission os.FileMode, force bool) error {
	stat, err := os.Stat(dirPath)
	if !force && !os.IsNotExist(err) {
		return err
	}

	if stat != nil && !stat.IsDir() {
		return ErrIsNotDir
	}

	if err := os.MkdirAll(dirPath, permission); err != nil {
		return err
	}

	return os.Chmod(dirPath, permission)
}

// EnsureBucketDir creates the directory behind a file:// bucket URL. Other
// schemes are left untouched and return an empty path.
func EnsureBucketDir(bucketURL string) (string, error) {
	u, err := url.Parse(bucketURL)
	if err != nil {
		return "", fmt.Errorf("parse bucket url %q: %w", bucketURL, err)
	}
	if u.Scheme != "file" {
		return "", nil
	}
	if u.Path == "" {
		return "", fmt.Errorf("file bucket url %q has no path", bucketURL)
	}
	if err := CreateDir(u.Path, 0o755, true); err != nil {
		return "", err
	}
	return u.Path, nil
}
