// Package mirror uploads sealed journal files to S3-compatible object
// storage (R2, MinIO, S3) so sessions survive the machine they ran on.
package mirror

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"
)

const (
	algorithm = "AWS4-HMAC-SHA256"
	service   = "s3"
)

// Bucket is a path-style S3 endpoint signed with SigV4.
type Bucket struct {
	endpoint string
	name     string
	region   string
	keyID    string
	secret   string
	http     *http.Client
	now      func() time.Time
}

// Options configures NewBucket. Region defaults to "auto".
type Options struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Timeout   time.Duration
}

func NewBucket(o Options) (*Bucket, error) {
	endpoint := strings.TrimSpace(o.Endpoint)
	name := strings.TrimSpace(o.Bucket)
	keyID := strings.TrimSpace(o.AccessKey)
	secret := strings.TrimSpace(o.SecretKey)
	if endpoint == "" || name == "" || keyID == "" || secret == "" {
		return nil, errors.New("mirror: endpoint, bucket, access key and secret key are required")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("mirror: parse endpoint: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("mirror: invalid endpoint %q", o.Endpoint)
	}
	region := strings.TrimSpace(o.Region)
	if region == "" {
		region = "auto"
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Bucket{
		endpoint: strings.TrimRight(u.String(), "/"),
		name:     name,
		region:   region,
		keyID:    keyID,
		secret:   secret,
		http:     &http.Client{Timeout: timeout},
		now:      time.Now,
	}, nil
}

// Name is the bucket name.
func (b *Bucket) Name() string { return b.name }

// PutFile uploads the file at localPath under key.
func (b *Bucket) PutFile(ctx context.Context, key, localPath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	return b.Put(ctx, key, data)
}

// Put uploads data under key.
func (b *Bucket) Put(ctx context.Context, key string, data []byte) error {
	key = cleanKey(key)
	if key == "" {
		return errors.New("mirror: empty object key")
	}
	uri := "/" + b.name + "/" + escapeKey(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, b.endpoint+uri, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.ContentLength = int64(len(data))
	req.Header.Set("Content-Type", "application/zstd")
	b.sign(req, uri, sha256Hex(data))

	resp, err := b.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 == 2 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{Code: resp.StatusCode, Key: key, Body: strings.TrimSpace(string(body))}
}

// StatusError is a non-2xx answer from the store.
type StatusError struct {
	Code int
	Key  string
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("mirror: put %s: status %d: %s", e.Key, e.Code, e.Body)
}

// Retryable reports whether a later attempt may succeed.
func (e *StatusError) Retryable() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests || e.Code == http.StatusRequestTimeout
}

func (b *Bucket) sign(req *http.Request, uri, payloadHash string) {
	now := b.now().UTC()
	stamp := now.Format("20060102T150405Z")
	day := now.Format("20060102")
	host := req.URL.Host

	req.Header.Set("x-amz-content-sha256", payloadHash)
	req.Header.Set("x-amz-date", stamp)

	const signed = "host;x-amz-content-sha256;x-amz-date"
	canonical := strings.Join([]string{
		req.Method,
		uri,
		"",
		"host:" + host + "\nx-amz-content-sha256:" + payloadHash + "\nx-amz-date:" + stamp + "\n",
		signed,
		payloadHash,
	}, "\n")
	scope := day + "/" + b.region + "/" + service + "/aws4_request"
	toSign := algorithm + "\n" + stamp + "\n" + scope + "\n" + sha256Hex([]byte(canonical))

	key := hmacSHA256([]byte("AWS4"+b.secret), []byte(day))
	for _, part := range []string{b.region, service, "aws4_request"} {
		key = hmacSHA256(key, []byte(part))
	}
	sig := hex.EncodeToString(hmacSHA256(key, []byte(toSign)))
	req.Header.Set("Authorization", fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		algorithm, b.keyID, scope, signed, sig))
}

// cleanKey normalizes separators and rejects keys escaping the bucket root.
func cleanKey(key string) string {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if key == "" {
		return ""
	}
	clean := strings.TrimPrefix(path.Clean("/"+key), "/")
	if clean == "" || clean == "." {
		return ""
	}
	return clean
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	_, _ = h.Write(data)
	return h.Sum(nil)
}
