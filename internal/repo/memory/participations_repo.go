package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/conventionhub/internal/domain/participation"
	"github.com/geocoder89/conventionhub/internal/domain/user"
)

type participationKey struct {
	conventionID int64
	userID       int64
}

// ParticipationsRepo mirrors the postgres repo's column-scoped writes.
// Emails for ListVisitors come from the users repo it is joined with.
type ParticipationsRepo struct {
	mu    sync.RWMutex
	items map[participationKey]participation.Participation
	users *UsersRepo
}

func NewParticipationsRepo(users *UsersRepo) *ParticipationsRepo {
	return &ParticipationsRepo{
		items: make(map[participationKey]participation.Participation),
		users: users,
	}
}

// Put seeds a row; rows are otherwise created outside this service.
func (r *ParticipationsRepo) Put(p participation.Participation) {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	r.mu.Lock()
	r.items[participationKey{p.ConventionID, p.UserID}] = p
	r.mu.Unlock()
}

func (r *ParticipationsRepo) Get(_ context.Context, conventionID, userID int64) (participation.Participation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.items[participationKey{conventionID, userID}]
	if !ok {
		return participation.Participation{}, participation.ErrNotFound
	}
	if p.Stats != nil {
		s := *p.Stats
		p.Stats = &s
	}
	return p, nil
}

func (r *ParticipationsRepo) IsEnabledParticipant(_ context.Context, conventionID, userID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.items[participationKey{conventionID, userID}]
	return ok && p.Enabled, nil
}

func (r *ParticipationsRepo) SetAccessURL(_ context.Context, conventionID, userID int64, url string) error {
	return r.mutate(conventionID, userID, func(p *participation.Participation) {
		p.PersonalAccessURL = &url
	})
}

func (r *ParticipationsRepo) SetRegistrationTask(_ context.Context, conventionID, userID int64, taskID string) error {
	return r.mutate(conventionID, userID, func(p *participation.Participation) {
		p.RegistrationTaskID = &taskID
	})
}

func (r *ParticipationsRepo) UpsertStats(_ context.Context, conventionID, userID int64, s participation.Stats) error {
	return r.mutate(conventionID, userID, func(p *participation.Participation) {
		now := time.Now().UTC()
		s.UpdatedAt = &now
		p.Stats = &s
	})
}

func (r *ParticipationsRepo) ListVisitors(ctx context.Context, conventionID int64) ([]participation.Visitor, error) {
	r.mu.RLock()
	var out []participation.Visitor
	for k, p := range r.items {
		if k.conventionID != conventionID || !p.Enabled || p.Stats == nil {
			continue
		}
		out = append(out, participation.Visitor{UserID: p.UserID, Stats: *p.Stats})
	}
	r.mu.RUnlock()

	for i := range out {
		if r.users == nil {
			break
		}
		u, err := r.users.GetByID(ctx, out[i].UserID)
		if err != nil {
			continue
		}
		out[i].Email = u.Email
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Stats.ConfirmCount != out[j].Stats.ConfirmCount {
			return out[i].Stats.ConfirmCount < out[j].Stats.ConfirmCount
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (r *ParticipationsRepo) mutate(conventionID, userID int64, fn func(p *participation.Participation)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := participationKey{conventionID, userID}
	p, ok := r.items[k]
	if !ok {
		return participation.ErrNotFound
	}
	fn(&p)
	p.UpdatedAt = time.Now().UTC()
	r.items[k] = p
	return nil
}

type UsersRepo struct {
	mu   sync.RWMutex
	byID map[int64]user.User
}

func NewUsersRepo(users ...user.User) *UsersRepo {
	r := &UsersRepo{byID: make(map[int64]user.User)}
	for _, u := range users {
		r.byID[u.ID] = u
	}
	return r
}

func (r *UsersRepo) Put(u user.User) {
	r.mu.Lock()
	r.byID[u.ID] = u
	r.mu.Unlock()
}

func (r *UsersRepo) GetByID(_ context.Context, id int64) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.byID {
		if equalFold(u.Email, email) {
			return u, nil
		}
	}
	return user.User{}, user.ErrNotFound
}
