// Package memory exposes the retrieval store as an agent tool so agents can
// recall and persist facts about the current user.
package memory

import (
	"context"
	"reflect"
	"strings"

	"github.com/pkg/errors"

	"github.com/plenum-ai/plenum/internal/clock"
	"github.com/plenum-ai/plenum/internal/idgen"
	"github.com/plenum-ai/plenum/service/rag"
	"github.com/plenum-ai/plenum/service/tool"
)

const name = "memory"

type Service struct {
	store rag.Service
	limit int
}

type SearchInput struct {
	Query string `json:"query" description:"Free-text query to match against stored memories"`
	Limit int    `json:"limit,omitempty" description:"Maximum number of memories to return"`
}

type SearchOutput struct {
	Memories []string `json:"memories"`
}

type StoreInput struct {
	Text string   `json:"text" description:"Fact to remember about the user"`
	Tags []string `json:"tags,omitempty" description:"Optional labels for later retrieval"`
}

type StoreOutput struct {
	ID string `json:"id"`
}

// New creates the memory tool over the given retrieval store.
func New(store rag.Service, defaultLimit int) *Service {
	if defaultLimit <= 0 {
		defaultLimit = rag.DefaultConfig().TopK
	}
	return &Service{store: store, limit: defaultLimit}
}

func (s *Service) Name() string {
	return name
}

func (s *Service) Methods() tool.Signatures {
	return []tool.Signature{
		{
			Name:        "search",
			Description: "Searches the user's long-term memory.",
			Input:       reflect.TypeOf(&SearchInput{}),
			Output:      reflect.TypeOf(&SearchOutput{}),
		},
		{
			Name:        "store",
			Description: "Saves a fact to the user's long-term memory.",
			Input:       reflect.TypeOf(&StoreInput{}),
			Output:      reflect.TypeOf(&StoreOutput{}),
		},
	}
}

func (s *Service) Method(name string) (tool.Executable, error) {
	switch strings.ToLower(name) {
	case "search":
		return s.search, nil
	case "store":
		return s.save, nil
	default:
		return nil, tool.NewMethodNotFoundError(name)
	}
}

func (s *Service) search(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*SearchInput)
	if !ok {
		return tool.NewInvalidInputError(in)
	}
	output, ok := out.(*SearchOutput)
	if !ok {
		return tool.NewInvalidOutputError(out)
	}
	userID := rag.UserIDFromContext(ctx)
	if userID == "" {
		return errors.New("no user in context")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = s.limit
	}
	matches, err := s.store.Search(ctx, userID, input.Query, limit)
	if err != nil {
		return err
	}
	for _, match := range matches {
		output.Memories = append(output.Memories, match.Item.Text)
	}
	return nil
}

func (s *Service) save(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*StoreInput)
	if !ok {
		return tool.NewInvalidInputError(in)
	}
	output, ok := out.(*StoreOutput)
	if !ok {
		return tool.NewInvalidOutputError(out)
	}
	userID := rag.UserIDFromContext(ctx)
	if userID == "" {
		return errors.New("no user in context")
	}
	if strings.TrimSpace(input.Text) == "" {
		return errors.New("text was empty")
	}
	item := &rag.Item{
		ID:        idgen.New(),
		UserID:    userID,
		Text:      input.Text,
		Tags:      input.Tags,
		CreatedAt: clock.Now(),
	}
	if err := s.store.Store(ctx, item); err != nil {
		return err
	}
	output.ID = item.ID
	return nil
}
