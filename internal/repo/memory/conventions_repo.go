package memory

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/conventionhub/internal/domain/convention"
)

type ConventionsRepo struct {
	mu    sync.RWMutex
	items map[int64]convention.Convention
}

func NewConventionsRepo(cs ...convention.Convention) *ConventionsRepo {
	r := &ConventionsRepo{items: make(map[int64]convention.Convention)}
	for _, c := range cs {
		r.items[c.ID] = c
	}
	return r
}

func (r *ConventionsRepo) Put(c convention.Convention) {
	r.mu.Lock()
	r.items[c.ID] = c
	r.mu.Unlock()
}

func (r *ConventionsRepo) GetByID(_ context.Context, id int64) (convention.Convention, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.items[id]
	if !ok {
		return convention.Convention{}, convention.ErrNotFound
	}
	return c, nil
}

func (r *ConventionsRepo) ListWebinarsBetween(_ context.Context, from, to time.Time) ([]convention.Convention, error) {
	r.mu.RLock()
	out := make([]convention.Convention, 0)
	for _, c := range r.items {
		if c.IsOnline && !c.StartAt.Before(from) && c.StartAt.Before(to) {
			out = append(out, c)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartAt.Equal(out[j].StartAt) {
			return out[i].StartAt.Before(out[j].StartAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DirectoryRepo holds speciality names and region names keyed by
// "{country}:{id}".
type DirectoryRepo struct {
	Specialities map[int]string
	Regions      map[string]string
}

func (r *DirectoryRepo) SpecialityName(_ context.Context, id int) (string, error) {
	return r.Specialities[id], nil
}

func (r *DirectoryRepo) RegionName(_ context.Context, countryCode string, id int) (string, error) {
	return r.Regions[countryCode+":"+strconv.Itoa(id)], nil
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
