// Package media stores uploaded work images and serves them back by key.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"

	// Drivers reachable through OpenBucket URLs.
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// MaxImageSize is the largest accepted upload.
const MaxImageSize = 5 << 20

var (
	ErrUnsupportedImage = errors.New("unsupported image type")
	ErrTooLarge         = errors.New("image exceeds 5 MiB")
	ErrNotFound         = errors.New("media object not found")
)

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Store is an object bucket for images.
type Store interface {
	// Put stores data under key and returns its public URL.
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
	// KeyForURL returns the object key behind a public URL, or false if the
	// URL does not point into this bucket.
	KeyForURL(url string) (string, bool)
}

// Image is a sniffed upload ready to be stored.
type Image struct {
	Data        []byte
	ContentType string
}

// Key returns a fresh object key for the image under prefix.
func (img Image) Key(prefix string) string {
	return path.Join(prefix, uuid.New().String()+extensions[img.ContentType])
}

// ReadImage reads at most MaxImageSize bytes and checks the content type by sniffing.
func ReadImage(r io.Reader) (Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return Image{}, fmt.Errorf("reading image: %w", err)
	}
	if len(data) > MaxImageSize {
		return Image{}, ErrTooLarge
	}
	ct := http.DetectContentType(data)
	if _, ok := extensions[ct]; !ok {
		return Image{}, fmt.Errorf("%w: %s", ErrUnsupportedImage, ct)
	}
	return Image{Data: data, ContentType: ct}, nil
}

// Bucket exposes a blob bucket under a public URL prefix.
type Bucket struct {
	bucket  *blob.Bucket
	baseURL string
}

var _ Store = (*Bucket)(nil)

// NewBucket wraps an open blob bucket. baseURL is the public prefix, e.g. "/media".
func NewBucket(b *blob.Bucket, baseURL string) *Bucket {
	return &Bucket{bucket: b, baseURL: strings.TrimRight(baseURL, "/")}
}

// NewFileBucket keeps objects as files under dir, creating it if needed.
func NewFileBucket(dir, baseURL string) (*Bucket, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating media directory: %w", err)
	}
	b, err := fileblob.OpenBucket(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("opening media directory: %w", err)
	}
	return NewBucket(b, baseURL), nil
}

// OpenBucket opens a bucket URL such as s3://name?region=eu-west-1,
// gs://name, file:///var/lib/gallery/media or mem://.
func OpenBucket(ctx context.Context, bucketURL, baseURL string) (*Bucket, error) {
	b, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("opening media bucket %s: %w", bucketURL, err)
	}
	return NewBucket(b, baseURL), nil
}

func (b *Bucket) Close() error { return b.bucket.Close() }

func validKey(key string) (string, error) {
	clean := strings.TrimLeft(path.Clean("/"+key), "/")
	if clean == "" || strings.Contains(key, "..") || strings.HasSuffix(key, "/") {
		return "", fmt.Errorf("invalid media key %q", key)
	}
	return clean, nil
}

func (b *Bucket) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	k, err := validKey(key)
	if err != nil {
		return "", err
	}
	opts := &blob.WriterOptions{ContentType: contentType}
	if err := b.bucket.WriteAll(ctx, k, data, opts); err != nil {
		return "", fmt.Errorf("writing object %s: %w", k, err)
	}
	return b.baseURL + "/" + k, nil
}

func (b *Bucket) Delete(ctx context.Context, key string) error {
	k, err := validKey(key)
	if err != nil {
		return err
	}
	if err := b.bucket.Delete(ctx, k); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return ErrNotFound
		}
		return fmt.Errorf("deleting object %s: %w", k, err)
	}
	return nil
}

func (b *Bucket) KeyForURL(url string) (string, bool) {
	prefix := b.baseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix)
	if key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}

// Handler serves stored objects. Mount it under the bucket's base URL with
// the prefix stripped. Keys ending in "/" are never listed.
func (b *Bucket) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		key, err := validKey(r.URL.Path)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		rd, err := b.bucket.NewReader(r.Context(), key, nil)
		if err != nil {
			if gcerrors.Code(err) == gcerrors.NotFound {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "reading object", http.StatusInternalServerError)
			return
		}
		defer rd.Close()

		h := w.Header()
		if ct := rd.ContentType(); ct != "" {
			h.Set("Content-Type", ct)
		}
		h.Set("Content-Length", strconv.FormatInt(rd.Size(), 10))
		if mod := rd.ModTime(); !mod.IsZero() {
			h.Set("Last-Modified", mod.UTC().Format(http.TimeFormat))
		}
		if r.Method == http.MethodHead {
			return
		}
		io.Copy(w, rd)
	})
}
