package groups

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/vovakirdan/huddle/internal/core"
	"github.com/vovakirdan/huddle/internal/store"
)

// Common errors for group operations.
var (
	ErrValidation     = errors.New("invalid group request")
	ErrGroupNotFound  = errors.New("group not found")
	ErrNameTaken      = errors.New("group name already taken")
	ErrAlreadyMember  = errors.New("user is already a member")
	ErrNotMember      = errors.New("user is not a member")
	ErrUnknownUser    = errors.New("unknown user")
	ErrCreatorRemoval = errors.New("the creator cannot be removed from a group")
)

const minMembers = 2

var validate = validator.New()

// Directory reports whether a user identity exists.
type Directory interface {
	Exists(ctx context.Context, username string) (bool, error)
}

// Notifier propagates committed group changes to live connections.
type Notifier interface {
	NotifyGroupChange(ctx context.Context, change core.GroupChange) error
}

// CreateRequest describes a new group.
type CreateRequest struct {
	Name    string   `validate:"required,max=50"`
	Creator string   `validate:"required,max=32"`
	Members []string `validate:"dive,max=32"`
}

// Service provides group management business logic.
type Service struct {
	store     store.GroupStore
	directory Directory
	notifier  Notifier
	log       *zerolog.Logger
}

// New creates a group service. directory and notifier may be nil.
func New(st store.GroupStore, directory Directory, notifier Notifier, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{
		store:     st,
		directory: directory,
		notifier:  notifier,
		log:       logger,
	}
}

// Create stores a new group. The creator is always a member and duplicate
// members collapse.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*store.Group, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Creator = strings.TrimSpace(req.Creator)
	req.Members = lo.Map(req.Members, func(m string, _ int) string { return strings.TrimSpace(m) })
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	members := lo.Uniq(lo.Compact(append([]string{req.Creator}, req.Members...)))
	if len(members) < minMembers {
		return nil, fmt.Errorf("%w: a group needs at least %d members", ErrValidation, minMembers)
	}
	for _, m := range members {
		if err := s.checkUser(ctx, m); err != nil {
			return nil, err
		}
	}

	group, err := s.store.CreateGroup(ctx, store.NewGroup{
		Name:      req.Name,
		CreatorID: req.Creator,
		Members:   members,
	})
	if err != nil {
		return nil, mapStoreError(err, "create group")
	}

	s.log.Info().Str("group", group.ID).Str("name", group.Name).Int("members", group.MemberCount()).Msg("group created")
	s.notify(ctx, core.GroupChange{Kind: core.GroupCreated, Group: group})
	return group, nil
}

// Get returns a group by id.
func (s *Service) Get(ctx context.Context, id string) (*store.Group, error) {
	group, err := s.store.GetGroup(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "get group")
	}
	return group, nil
}

// ListByMember returns the groups username belongs to, most recently
// active first.
func (s *Service) ListByMember(ctx context.Context, username string) ([]*store.Group, error) {
	groups, err := s.store.ListGroupsByMember(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, mapStoreError(err, "list groups")
	}
	return groups, nil
}

// AddMember adds username to a group.
func (s *Service) AddMember(ctx context.Context, groupID, username string) (*store.Group, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrValidation)
	}
	if err := s.checkUser(ctx, username); err != nil {
		return nil, err
	}

	group, err := s.store.AddMember(ctx, groupID, username)
	if err != nil {
		return nil, mapStoreError(err, "add member")
	}
	s.notify(ctx, core.GroupChange{Kind: core.GroupMemberAdded, Group: group, User: username})
	return group, nil
}

// RemoveMember removes username from a group. Live subscriptions of the
// removed user are not revoked.
func (s *Service) RemoveMember(ctx context.Context, groupID, username string) (*store.Group, error) {
	username = strings.TrimSpace(username)
	current, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, mapStoreError(err, "get group")
	}
	if current.CreatorID == username {
		return nil, ErrCreatorRemoval
	}

	group, err := s.store.RemoveMember(ctx, groupID, username)
	if err != nil {
		return nil, mapStoreError(err, "remove member")
	}
	s.notify(ctx, core.GroupChange{Kind: core.GroupMemberRemoved, Group: group, User: username})
	return group, nil
}

// RequireMember returns ErrNotMember unless username belongs to the group.
func (s *Service) RequireMember(ctx context.Context, groupID, username string) error {
	group, err := s.Get(ctx, groupID)
	if err != nil {
		return err
	}
	if !group.HasMember(username) {
		return ErrNotMember
	}
	return nil
}

func (s *Service) checkUser(ctx context.Context, username string) error {
	if s.directory == nil {
		return nil
	}
	ok, err := s.directory.Exists(ctx, username)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUser, username)
	}
	return nil
}

func (s *Service) notify(ctx context.Context, change core.GroupChange) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyGroupChange(ctx, change); err != nil {
		s.log.Warn().Err(err).Str("group", change.Group.ID).Str("change", change.Kind.String()).Msg("failed to notify group change")
	}
}

func mapStoreError(err error, op string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrGroupNotFound
	case errors.Is(err, store.ErrNameTaken):
		return ErrNameTaken
	case errors.Is(err, store.ErrAlreadyMember):
		return ErrAlreadyMember
	case errors.Is(err, store.ErrNotMember):
		return ErrNotMember
	}
	return fmt.Errorf("%s: %w", op, err)
}
