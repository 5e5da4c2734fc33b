package group

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/tinoosan/groupledger/internal/errs"
	"github.com/tinoosan/groupledger/internal/events"
	"github.com/tinoosan/groupledger/internal/ledger"
)

// MaxNameLen bounds group names, in characters.
const MaxNameLen = 100

// Repo defines read operations needed by the service.
type Repo interface {
	GroupByID(ctx context.Context, id uuid.UUID) (ledger.Group, error)
	GroupsForUser(ctx context.Context, userID uuid.UUID) ([]ledger.Group, error)
	MembersByGroup(ctx context.Context, groupID uuid.UUID) ([]ledger.Member, error)
}

// Writer defines write operations needed by the service.
type Writer interface {
	// CreateGroup stores the group and its owner membership atomically.
	CreateGroup(ctx context.Context, g ledger.Group, owner ledger.Member) (ledger.Group, error)
	// AddMember returns errs.ErrNotFound for an unknown group and errs.ErrConflict
	// if the user is already a member.
	AddMember(ctx context.Context, m ledger.Member) (ledger.Member, error)
	UpdateGroup(ctx context.Context, g ledger.Group) (ledger.Group, error)
}

// Service manages groups and their rosters.
type Service interface {
	Create(ctx context.Context, name string, creatorID uuid.UUID) (ledger.Group, error)
	Get(ctx context.Context, id uuid.UUID) (ledger.Group, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]ledger.Group, error)
	Members(ctx context.Context, groupID uuid.UUID) ([]ledger.Member, error)
	Join(ctx context.Context, groupID, userID uuid.UUID) (ledger.Member, error)
	Rename(ctx context.Context, groupID, actorID uuid.UUID, name string) (ledger.Group, error)
}

type service struct {
	repo   Repo
	writer Writer
	pub    events.Publisher
	log    *slog.Logger
}

func New(repo Repo, writer Writer, pub events.Publisher, log *slog.Logger) Service {
	return &service{repo: repo, writer: writer, pub: pub, log: log}
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errs.Invalid("name", errs.ReasonRequired)
	}
	if utf8.RuneCountInString(name) > MaxNameLen {
		return "", errs.Invalid("name", errs.ReasonTooLong)
	}
	return name, nil
}

func (s *service) Create(ctx context.Context, name string, creatorID uuid.UUID) (ledger.Group, error) {
	name, err := validateName(name)
	if err != nil {
		return ledger.Group{}, err
	}
	if creatorID == uuid.Nil {
		return ledger.Group{}, errs.Invalid("created_by", errs.ReasonRequired)
	}
	now := time.Now().UTC()
	g := ledger.Group{ID: uuid.New(), Name: name, CreatedBy: creatorID, CreatedAt: now}
	owner := ledger.Member{GroupID: g.ID, UserID: creatorID, Role: ledger.RoleOwner, JoinedAt: now}
	g, err = s.writer.CreateGroup(ctx, g, owner)
	if err != nil {
		return ledger.Group{}, errs.Storage("create group", err)
	}
	s.log.InfoContext(ctx, "group created", "group_id", g.ID, "created_by", creatorID)
	events.Emit(ctx, s.pub, s.log, events.GroupCreated(g))
	return g, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (ledger.Group, error) {
	if id == uuid.Nil {
		return ledger.Group{}, errs.Invalid("group_id", errs.ReasonRequired)
	}
	g, err := s.repo.GroupByID(ctx, id)
	if err != nil {
		return ledger.Group{}, errs.Storage("get group", err)
	}
	return g, nil
}

// ListForUser returns the groups userID belongs to, newest first.
func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]ledger.Group, error) {
	if userID == uuid.Nil {
		return nil, errs.Invalid("user_id", errs.ReasonRequired)
	}
	gs, err := s.repo.GroupsForUser(ctx, userID)
	if err != nil {
		return nil, errs.Storage("list groups", err)
	}
	return gs, nil
}

// Members returns the roster in join order.
func (s *service) Members(ctx context.Context, groupID uuid.UUID) ([]ledger.Member, error) {
	if _, err := s.Get(ctx, groupID); err != nil {
		return nil, err
	}
	ms, err := s.repo.MembersByGroup(ctx, groupID)
	if err != nil {
		return nil, errs.Storage("list members", err)
	}
	return ledger.SortRoster(ms), nil
}

func (s *service) Join(ctx context.Context, groupID, userID uuid.UUID) (ledger.Member, error) {
	if groupID == uuid.Nil {
		return ledger.Member{}, errs.Invalid("group_id", errs.ReasonRequired)
	}
	if userID == uuid.Nil {
		return ledger.Member{}, errs.Invalid("user_id", errs.ReasonRequired)
	}
	m := ledger.Member{GroupID: groupID, UserID: userID, Role: ledger.RoleMember, JoinedAt: time.Now().UTC()}
	m, err := s.writer.AddMember(ctx, m)
	if err != nil {
		return ledger.Member{}, errs.Storage("add member", err)
	}
	s.log.InfoContext(ctx, "member joined", "group_id", groupID, "user_id", userID)
	events.Emit(ctx, s.pub, s.log, events.MemberJoined(m))
	return m, nil
}

// Rename changes the group name. Only the owner may rename.
func (s *service) Rename(ctx context.Context, groupID, actorID uuid.UUID, name string) (ledger.Group, error) {
	name, err := validateName(name)
	if err != nil {
		return ledger.Group{}, err
	}
	g, err := s.Get(ctx, groupID)
	if err != nil {
		return ledger.Group{}, err
	}
	if g.CreatedBy != actorID {
		return ledger.Group{}, errs.ErrForbidden
	}
	g.Name = name
	g, err = s.writer.UpdateGroup(ctx, g)
	if err != nil {
		return ledger.Group{}, errs.Storage("update group", err)
	}
	return g, nil
}
