package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"

	"github.com/plenum-ai/plenum/internal/clock"
	"github.com/plenum-ai/plenum/internal/idgen"
	"github.com/plenum-ai/plenum/service/dao"
)

// Fs is a filesystem-backed Service: one JSON file per item under
// baseURL/<userID>/<itemID>.json. Built on viant/afs so the base URL may point
// at any supported storage scheme.
type Fs struct {
	fs      afs.Service
	baseURL string
	config  Config
	mu      sync.Mutex
}

// NewFs creates a filesystem RAG store rooted at baseURL.
func NewFs(fs afs.Service, baseURL string, config Config) (*Fs, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if config.TopK <= 0 {
		config = DefaultConfig()
	}
	ctx := context.Background()
	if exists, _ := fs.Exists(ctx, baseURL); !exists {
		if err := fs.Create(ctx, baseURL, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create rag store %s: %w", baseURL, err)
		}
	}
	return &Fs{fs: fs, baseURL: baseURL, config: config}, nil
}

// Store persists one item as JSON.
func (s *Fs) Store(ctx context.Context, item *Item) error {
	if item == nil {
		return dao.ErrNilEntity
	}
	if item.ID == "" {
		item.ID = idgen.New()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = clock.Now()
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal memory item: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dest := path.Join(s.baseURL, item.UserID, item.ID+".json")
	return s.fs.Upload(ctx, dest, file.DefaultFileOsMode, bytes.NewBuffer(data))
}

// Search loads the user's items and ranks them against the query.
func (s *Fs) Search(ctx context.Context, userID, query string, limit int) ([]Match, error) {
	userDir := path.Join(s.baseURL, userID)
	if exists, _ := s.fs.Exists(ctx, userDir); !exists {
		return nil, nil
	}
	objects, err := s.fs.List(ctx, userDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list memory items: %w", err)
	}
	var items []*Item
	for _, obj := range objects {
		if obj.IsDir() || !strings.HasSuffix(obj.Name(), ".json") {
			continue
		}
		data, err := s.fs.DownloadWithURL(ctx, obj.URL())
		if err != nil {
			continue
		}
		item := &Item{}
		if err := json.Unmarshal(data, item); err != nil {
			continue
		}
		items = append(items, item)
	}
	if limit <= 0 {
		limit = s.config.TopK
	}
	return rank(items, userID, query, limit, s.config.HalfLife), nil
}

var _ Service = (*Fs)(nil)
