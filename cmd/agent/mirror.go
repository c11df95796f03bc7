package main

import (
	"errors"
	"log"
	"os"
	"path"
	"strconv"
	"strings"

	"voxelmind.ai/internal/persistence/mirror"
)

// openMirror builds the journal mirror from VOXELMIND_MIRROR_* variables.
// It returns nil when mirroring is off.
func openMirror(avatar string, logger *log.Logger) (*mirror.Mirror, error) {
	if !envBool("VOXELMIND_MIRROR", false) {
		return nil, nil
	}
	o := mirror.Options{
		Endpoint:  os.Getenv("VOXELMIND_MIRROR_ENDPOINT"),
		Bucket:    os.Getenv("VOXELMIND_MIRROR_BUCKET"),
		Region:    os.Getenv("VOXELMIND_MIRROR_REGION"),
		AccessKey: os.Getenv("VOXELMIND_MIRROR_ACCESS_KEY_ID"),
		SecretKey: os.Getenv("VOXELMIND_MIRROR_SECRET_ACCESS_KEY"),
	}
	b, err := mirror.NewBucket(o)
	if err != nil {
		return nil, errors.New("VOXELMIND_MIRROR=true but VOXELMIND_MIRROR_ENDPOINT/BUCKET/ACCESS_KEY_ID/SECRET_ACCESS_KEY are not fully set")
	}
	prefix := strings.TrimSpace(os.Getenv("VOXELMIND_MIRROR_PREFIX"))
	prefix = path.Join(prefix, strings.ToLower(avatar))
	logger.Printf("journal mirror bucket=%s prefix=%s", b.Name(), prefix)
	return mirror.New(b, prefix, envInt("VOXELMIND_MIRROR_WORKERS", 1), 256, 0, logger), nil
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
