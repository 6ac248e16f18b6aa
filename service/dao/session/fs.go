package session

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

	"github.com/plenum-ai/plenum/model/chat"
	"github.com/plenum-ai/plenum/service/dao"
)

// Fs persists sessions as one JSON file per session under baseURL. Built on
// viant/afs so the base URL may point at any supported storage scheme.
type Fs struct {
	fs      afs.Service
	baseURL string
	mu      sync.Mutex
}

// NewFs creates a filesystem session DAO rooted at baseURL.
func NewFs(fs afs.Service, baseURL string) (*Fs, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	ctx := context.Background()
	if exists, _ := fs.Exists(ctx, baseURL); !exists {
		if err := fs.Create(ctx, baseURL, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create session store %s: %w", baseURL, err)
		}
	}
	return &Fs{fs: fs, baseURL: baseURL}, nil
}

// Save persists one session as JSON.
func (s *Fs) Save(ctx context.Context, session *chat.Session) error {
	if session == nil {
		return dao.ErrNilEntity
	}
	if session.ID == "" {
		return dao.ErrInvalidID
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fs.Upload(ctx, s.location(session.ID), file.DefaultFileOsMode, bytes.NewBuffer(data))
}

// Load returns a session by id, or nil when absent.
func (s *Fs) Load(ctx context.Context, id string) (*chat.Session, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	location := s.location(id)
	if exists, _ := s.fs.Exists(ctx, location); !exists {
		return nil, nil
	}
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	session := &chat.Session{}
	if err := json.Unmarshal(data, session); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return session, nil
}

// Delete removes a session file; deleting an absent session is a no-op.
func (s *Fs) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	location := s.location(id)
	if exists, _ := s.fs.Exists(ctx, location); !exists {
		return nil
	}
	return s.fs.Delete(ctx, location)
}

// List returns stored sessions matching the given parameters ("userId",
// "status").
func (s *Fs) List(ctx context.Context, parameters ...*dao.Parameter) ([]*chat.Session, error) {
	objects, err := s.fs.List(ctx, s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	var out []*chat.Session
	for _, obj := range objects {
		if obj.IsDir() || !strings.HasSuffix(obj.Name(), ".json") {
			continue
		}
		data, err := s.fs.DownloadWithURL(ctx, obj.URL())
		if err != nil {
			return nil, err
		}
		session := &chat.Session{}
		if err := json.Unmarshal(data, session); err != nil {
			continue
		}
		if matches(session, parameters) {
			out = append(out, session)
		}
	}
	return out, nil
}

func (s *Fs) location(id string) string {
	return path.Join(s.baseURL, id+".json")
}

func matches(session *chat.Session, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		value, _ := parameter.Value.(string)
		switch strings.ToLower(parameter.Name) {
		case "userid":
			if session.UserID != value {
				return false
			}
		case "status":
			if string(session.Status) != value {
				return false
			}
		}
	}
	return true
}

var _ dao.Service[string, chat.Session] = (*Fs)(nil)
