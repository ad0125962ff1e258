package repository

import (
	"context"
	"fmt"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/models"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/store"
)

type TemplateRepo struct {
	store store.Store
}

func NewTemplateRepo(s store.Store) *TemplateRepo {
	return &TemplateRepo{store: s}
}

// With returns a repo bound to another store handle, typically the one an
// Atomic callback receives.
func (r *TemplateRepo) With(s store.Store) *TemplateRepo {
	return &TemplateRepo{store: s}
}

// Save writes t, assigning an id when it has none.
func (r *TemplateRepo) Save(ctx context.Context, t *models.Template) error {
	doc, err := toDoc(t)
	if err != nil {
		return err
	}
	id, err := r.store.Put(ctx, TemplatesCollection, t.ID, doc)
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

func (r *TemplateRepo) FindByID(ctx context.Context, id string) (*models.Template, error) {
	doc, err := r.store.Get(ctx, TemplatesCollection, id)
	if err != nil {
		return nil, err
	}
	return docToTemplate(doc)
}

// FindAll lists every template, newest first.
func (r *TemplateRepo) FindAll(ctx context.Context) ([]models.Template, error) {
	return r.find(ctx, nil)
}

func (r *TemplateRepo) FindByCreator(ctx context.Context, creatorID string) ([]models.Template, error) {
	return r.find(ctx, store.Filter{"creatorId": creatorID})
}

func (r *TemplateRepo) FindActive(ctx context.Context) ([]models.Template, error) {
	return r.find(ctx, store.Filter{"active": true})
}

func (r *TemplateRepo) find(ctx context.Context, f store.Filter) ([]models.Template, error) {
	docs, err := r.store.List(ctx, TemplatesCollection, f, newestFirst)
	if err != nil {
		return nil, err
	}
	out := make([]models.Template, 0, len(docs))
	for _, d := range docs {
		t, err := docToTemplate(d)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

func (r *TemplateRepo) SetActive(ctx context.Context, id string, active bool) error {
	return r.store.Patch(ctx, TemplatesCollection, id, store.Doc{"active": active})
}

func (r *TemplateRepo) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, TemplatesCollection, id)
}

func docToTemplate(doc store.Doc) (*models.Template, error) {
	rename(doc, "name", "templateName")
	rename(doc, "createdBy", "creatorId")
	upgradeRules(doc, "aiRules")
	stringifyIDs(doc, "questions")
	stringifyIDs(doc, "weeks")
	stringifyIDs(doc, "exams")
	fixTime(doc, "createdAt")
	fixTime(doc, "updatedAt")
	if _, ok := doc["active"]; !ok {
		doc["active"] = false
	}

	var t models.Template
	if err := fromDoc(doc, &t); err != nil {
		return nil, fmt.Errorf("template %v: %w", doc[store.IDField], err)
	}
	for i := range t.MetaFields {
		if t.MetaFields[i].Kind == "textarea" {
			t.MetaFields[i].Kind = models.FieldMultiline
		}
		if t.MetaFields[i].Kind == "" {
			t.MetaFields[i].Kind = models.FieldText
		}
	}
	return &t, nil
}
