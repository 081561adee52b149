// Package modelhub resolves a model source (local file, S3 object, URL, or
// Hugging Face repository) to a local file, caching downloads in a save
// directory.
//
// The cache directory holds the downloaded files plus a small msgpack index
// (.spkembed-cache) recording, per source, the file name, size, sha256, and
// fetch time. A cached file is reused only if its size and digest still
// match the index.
package modelhub

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/spkembed/pkg/storage"
)

// ErrBadSource is returned for model identifiers that cannot be resolved.
var ErrBadSource = errors.New("modelhub: bad source")

// DefaultHFEndpoint is the Hugging Face hub host.
const DefaultHFEndpoint = "https://huggingface.co"

const indexFile = ".spkembed-cache"

// CacheEntry is one record of the cache index.
type CacheEntry struct {
	Source    string    `msgpack:"source" json:"source" yaml:"source"`
	File      string    `msgpack:"file" json:"file" yaml:"file"`
	Size      int64     `msgpack:"size" json:"size" yaml:"size"`
	SHA256    string    `msgpack:"sha256" json:"sha256" yaml:"sha256"`
	FetchedAt time.Time `msgpack:"fetched_at" json:"fetched_at" yaml:"fetched_at"`
}

// Hub resolves sources into a cache directory. It is safe for concurrent
// use, though downloads of the same source are not deduplicated.
type Hub struct {
	mu     sync.Mutex
	cache  *storage.Local
	logger *slog.Logger

	hfEndpoint string
	hfToken    string
	httpClient *http.Client
	s3Client   storage.S3Client
	now        func() time.Time
}

// Option configures a Hub.
type Option func(*Hub)

// WithHFEndpoint overrides the hub host (default $HF_ENDPOINT or huggingface.co).
func WithHFEndpoint(endpoint string) Option {
	return func(h *Hub) {
		if endpoint != "" {
			h.hfEndpoint = strings.TrimRight(endpoint, "/")
		}
	}
}

// WithHFToken sets the bearer token for hub downloads (default $HF_TOKEN).
func WithHFToken(token string) Option {
	return func(h *Hub) {
		h.hfToken = token
	}
}

// WithHTTPClient sets the client used for hub and URL downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(h *Hub) {
		h.httpClient = c
	}
}

// WithS3Client sets the client for s3:// sources. Without it a client is
// built from the AWS_* environment on first use.
func WithS3Client(c storage.S3Client) Option {
	return func(h *Hub) {
		h.s3Client = c
	}
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// New creates a Hub that caches into savedir, creating it if needed.
func New(savedir string, opts ...Option) (*Hub, error) {
	cache, err := storage.NewLocal(savedir)
	if err != nil {
		return nil, fmt.Errorf("modelhub: savedir: %w", err)
	}
	h := &Hub{
		cache:      cache,
		logger:     slog.Default(),
		hfEndpoint: DefaultHFEndpoint,
		hfToken:    os.Getenv("HF_TOKEN"),
		now:        time.Now,
	}
	if ep := os.Getenv("HF_ENDPOINT"); ep != "" {
		h.hfEndpoint = strings.TrimRight(ep, "/")
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Dir returns the absolute cache directory.
func (h *Hub) Dir() string {
	return h.cache.Root()
}

// Resolve returns a local path for src, downloading it into the cache
// directory unless a verified copy is already there.
func (h *Hub) Resolve(ctx context.Context, src Source) (string, error) {
	if src.Kind == KindLocal {
		return src.Path, nil
	}
	name := src.FileName()
	log := h.logger.With("source", src.Raw, "file", name)

	h.mu.Lock()
	defer h.mu.Unlock()

	index, err := h.loadIndex(ctx)
	if err != nil {
		return "", err
	}

	entry, ok := index[src.Raw]
	switch {
	case ok && entry.File == name:
		if size, sum, err := h.digest(name); err == nil && size == entry.Size && sum == entry.SHA256 {
			log.Debug("model cache hit", "sha256", sum)
			return h.cache.Path(name), nil
		}
		log.Warn("cached model does not match index, refetching")
	case !ok:
		// A file placed in savedir by hand is adopted as is.
		if size, sum, err := h.digest(name); err == nil {
			log.Info("using model already in savedir", "sha256", sum)
			index[src.Raw] = CacheEntry{Source: src.Raw, File: name, Size: size, SHA256: sum, FetchedAt: h.now().UTC()}
			if err := h.saveIndex(ctx, index); err != nil {
				return "", err
			}
			return h.cache.Path(name), nil
		}
	}

	remote, remotePath, err := h.remote(src)
	if err != nil {
		return "", err
	}
	log.Info("fetching model", "kind", src.Kind.String())
	start := h.now()
	res, err := storage.Copy(ctx, h.cache, name, remote, remotePath)
	if err != nil {
		return "", fmt.Errorf("modelhub: fetch %s: %w", src.Raw, err)
	}
	log.Info("model fetched", "bytes", res.Size, "sha256", res.SHA256, "elapsed", h.now().Sub(start))

	index[src.Raw] = CacheEntry{
		Source:    src.Raw,
		File:      name,
		Size:      res.Size,
		SHA256:    res.SHA256,
		FetchedAt: h.now().UTC(),
	}
	if err := h.saveIndex(ctx, index); err != nil {
		return "", err
	}
	return h.cache.Path(name), nil
}

// Cached lists the cache index sorted by source.
func (h *Hub) Cached(ctx context.Context) ([]CacheEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	index, err := h.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CacheEntry, 0, len(index))
	for _, e := range index {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out, nil
}

// Mirror uploads the local model file at path to the S3 location dst.
// It lets a team seed a private bucket once and point --source at it.
func (h *Hub) Mirror(ctx context.Context, path string, dst Source) (storage.CopyResult, error) {
	if dst.Kind != KindS3 {
		return storage.CopyResult{}, fmt.Errorf("%w: mirror target must be s3://, got %s", ErrBadSource, dst.Kind)
	}
	src, err := storage.NewLocal(filepath.Dir(path))
	if err != nil {
		return storage.CopyResult{}, err
	}
	bucket := storage.NewS3(h.s3(), dst.Bucket, "")
	res, err := storage.Copy(ctx, bucket, dst.Key, src, filepath.Base(path))
	if err != nil {
		return storage.CopyResult{}, fmt.Errorf("modelhub: mirror: %w", err)
	}
	h.logger.Info("model mirrored", "bucket", dst.Bucket, "key", dst.Key, "bytes", res.Size)
	return res, nil
}

func (h *Hub) remote(src Source) (storage.FileStore, string, error) {
	switch src.Kind {
	case KindS3:
		return storage.NewS3(h.s3(), src.Bucket, ""), src.Key, nil
	case KindHTTP:
		return storage.NewHTTP(src.URL, storage.WithHTTPClient(h.httpClient)), "", nil
	case KindHub:
		base := h.hfEndpoint + "/" + src.Repo + "/resolve/main"
		return storage.NewHTTP(base,
			storage.WithHTTPClient(h.httpClient),
			storage.WithBearerToken(h.hfToken),
		), src.File, nil
	default:
		return nil, "", fmt.Errorf("%w: cannot fetch %s source", ErrBadSource, src.Kind)
	}
}

func (h *Hub) s3() storage.S3Client {
	if h.s3Client == nil {
		h.s3Client = storage.NewS3Client(storage.S3ConfigFromEnv())
	}
	return h.s3Client
}

// digest returns the size and sha256 of a cached file.
func (h *Hub) digest(name string) (int64, string, error) {
	f, err := os.Open(h.cache.Path(name))
	if err != nil {
		return 0, "", err
	}
	defer f.Close()
	sum := sha256.New()
	n, err := io.Copy(sum, f)
	if err != nil {
		return 0, "", err
	}
	return n, hex.EncodeToString(sum.Sum(nil)), nil
}

func (h *Hub) loadIndex(ctx context.Context) (map[string]CacheEntry, error) {
	index := make(map[string]CacheEntry)
	r, err := h.cache.Read(ctx, indexFile)
	if errors.Is(err, fs.ErrNotExist) {
		return index, nil
	}
	if err != nil {
		return nil, fmt.Errorf("modelhub: read index: %w", err)
	}
	defer r.Close()

	var entries []CacheEntry
	if err := msgpack.NewDecoder(r).Decode(&entries); err != nil {
		// A corrupt index only costs a refetch.
		h.logger.Warn("ignoring unreadable model cache index", "error", err)
		return index, nil
	}
	for _, e := range entries {
		index[e.Source] = e
	}
	return index, nil
}

func (h *Hub) saveIndex(ctx context.Context, index map[string]CacheEntry) error {
	entries := make([]CacheEntry, 0, len(index))
	for _, e := range index {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Source < entries[j].Source })

	data, err := msgpack.Marshal(entries)
	if err != nil {
		return fmt.Errorf("modelhub: encode index: %w", err)
	}
	w, err := h.cache.Write(ctx, indexFile)
	if err != nil {
		return fmt.Errorf("modelhub: write index: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.(storage.Aborter).Abort(err)
		return fmt.Errorf("modelhub: write index: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("modelhub: write index: %w", err)
	}
	return nil
}
