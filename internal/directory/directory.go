package directory

import (
	"context"
	"strconv"
	"time"

	"github.com/geocoder89/conventionhub/internal/cache"
	"github.com/geocoder89/conventionhub/internal/domain/user"
)

type UserStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id int64) (user.User, error)
}

type ReferenceStore interface {
	SpecialityName(ctx context.Context, id int) (string, error)
	RegionName(ctx context.Context, countryCode string, id int) (string, error)
}

// Directory answers user and demographic lookups. Reference names change
// rarely and are cached; users are always read through.
type Directory struct {
	users UserStore
	refs  ReferenceStore

	specialities *cache.Cache[int, string]
	regions      *cache.Cache[string, string]
}

func New(users UserStore, refs ReferenceStore, ttl time.Duration) *Directory {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Directory{
		users:        users,
		refs:         refs,
		specialities: cache.New[int, string](ttl),
		regions:      cache.New[string, string](ttl),
	}
}

func (d *Directory) UserByEmail(ctx context.Context, email string) (user.User, error) {
	return d.users.GetByEmail(ctx, email)
}

func (d *Directory) UserByID(ctx context.Context, id int64) (user.User, error) {
	return d.users.GetByID(ctx, id)
}

func (d *Directory) SpecialityName(ctx context.Context, id int) (string, error) {
	if id <= 0 {
		return "", nil
	}
	if v, ok := d.specialities.Get(id); ok {
		return v, nil
	}

	name, err := d.refs.SpecialityName(ctx, id)
	if err != nil {
		return "", err
	}
	d.specialities.Set(id, name)
	return name, nil
}

func (d *Directory) RegionName(ctx context.Context, countryCode string, id int) (string, error) {
	if id <= 0 || countryCode == "" {
		return "", nil
	}

	key := countryCode + ":" + strconv.Itoa(id)
	if v, ok := d.regions.Get(key); ok {
		return v, nil
	}

	name, err := d.refs.RegionName(ctx, countryCode, id)
	if err != nil {
		return "", err
	}
	d.regions.Set(key, name)
	return name, nil
}
