package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/errs"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/models"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/store"
)

type UserRepo struct {
	store store.Store
}

func NewUserRepo(s store.Store) *UserRepo {
	return &UserRepo{store: s}
}

// FindByEmail returns errs.ErrNotFound when no profile uses email.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	docs, err := r.store.List(ctx, UsersCollection, store.Filter{"email": strings.ToLower(email)}, nil)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, errs.ErrNotFound
	}
	return docToUser(docs[0])
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	doc, err := r.store.Get(ctx, UsersCollection, id)
	if err != nil {
		return nil, err
	}
	return docToUser(doc)
}

// Create stores a new profile and sets its id.
func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(u.Email)
	doc, err := toDoc(u)
	if err != nil {
		return err
	}
	id, err := r.store.Put(ctx, UsersCollection, u.ID, doc)
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

// Update rewrites the stored profile as a whole, dropping any legacy
// field names it was read from.
func (r *UserRepo) Update(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		return errs.Validation("id", "user id is required")
	}
	u.Email = strings.ToLower(u.Email)
	doc, err := toDoc(u)
	if err != nil {
		return err
	}
	_, err = r.store.Put(ctx, UsersCollection, u.ID, doc)
	return err
}

// Role reads the role recorded on the profile keyed by userID.
func (r *UserRepo) Role(ctx context.Context, userID string) (models.Role, error) {
	u, err := r.FindByID(ctx, userID)
	if err != nil {
		return models.RoleUnknown, err
	}
	return models.ParseRole(u.Role), nil
}

// DisplayNames maps user ids to display names for the given ids. Ids with
// no profile are left out.
func (r *UserRepo) DisplayNames(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if _, done := out[id]; done || id == "" {
			continue
		}
		u, err := r.FindByID(ctx, id)
		if errs.ClassOf(err) == errs.ClassNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		if name := u.DisplayName(); name != "" {
			out[id] = name
		}
	}
	return out, nil
}

func docToUser(doc store.Doc) (*models.User, error) {
	rename(doc, "prenom", "firstName")
	rename(doc, "nom", "lastName")
	fixTime(doc, "createdAt")
	var u models.User
	if err := fromDoc(doc, &u); err != nil {
		return nil, fmt.Errorf("user %v: %w", doc[store.IDField], err)
	}
	return &u, nil
}
