package service

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/errs"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/keys"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/models"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/repository"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/snapshot"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/store"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/visibility"
)

// ActivationMode decides whether activating a template affects others.
type ActivationMode int

const (
	// MultiActive activates templates independently.
	MultiActive ActivationMode = iota
	// SingleActive keeps at most one active template; activating one
	// deactivates the rest in the same atomic write.
	SingleActive
)

// ParseActivationMode accepts "multi" and "single".
func ParseActivationMode(s string) (ActivationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "multi", "multiactive":
		return MultiActive, nil
	case "single", "singleactive":
		return SingleActive, nil
	}
	return MultiActive, errs.Validation("activation_mode", "unknown mode %q", s)
}

type TemplateService struct {
	store     store.Store
	templates *repository.TemplateRepo
	mode      ActivationMode
	logger    *slog.Logger
	now       func() time.Time
}

func NewTemplateService(s store.Store, mode ActivationMode, logger *slog.Logger) *TemplateService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TemplateService{
		store:     s,
		templates: repository.NewTemplateRepo(s),
		mode:      mode,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// FieldInput is a meta field as edited by a coordinator. KeyEdited marks a
// key typed by hand in this edit; otherwise the key follows the label.
type FieldInput struct {
	Key         string           `json:"key"`
	Label       string           `json:"label"`
	Kind        models.FieldKind `json:"type"`
	Required    bool             `json:"required"`
	Placeholder string           `json:"placeholder"`
	KeyEdited   bool             `json:"keyEdited"`
}

// TemplateInput is the full editable content of a template.
type TemplateInput struct {
	Name       string            `json:"templateName"`
	MetaFields []FieldInput      `json:"metaFields"`
	Questions  []models.Question `json:"questions"`
	Weeks      []models.Week     `json:"weeks"`
	Exams      []models.Exam     `json:"exams"`
	Rules      []models.Rule     `json:"aiRules"`
	Active     bool              `json:"active"`
}

func (s *TemplateService) Create(ctx context.Context, actor models.Actor, in TemplateInput) (*models.Template, error) {
	if err := visibility.CanMutateTemplate(actor, nil); err != nil {
		return nil, err
	}
	t := &models.Template{CreatorID: actor.UserID}
	if err := apply(t, in); err != nil {
		return nil, err
	}
	now := s.now()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Active = false

	if err := s.templates.Save(ctx, t); err != nil {
		return nil, err
	}
	s.logger.Info("template created", "template", t.ID, "creator", t.CreatorID)
	if in.Active {
		return s.SetActive(ctx, actor, t.ID, true)
	}
	return t, nil
}

// Update replaces the editable content of a template. Activation is left
// alone; use SetActive.
func (s *TemplateService) Update(ctx context.Context, actor models.Actor, id string, in TemplateInput) (*models.Template, error) {
	t, err := s.templates.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := visibility.CanMutateTemplate(actor, t); err != nil {
		return nil, err
	}
	if err := apply(t, in); err != nil {
		return nil, err
	}
	t.UpdatedAt = s.now()
	if err := s.templates.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// List returns the templates actor may see, newest first.
func (s *TemplateService) List(ctx context.Context, actor models.Actor) ([]models.Template, error) {
	all, err := s.templates.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return visibility.Templates(actor, all)
}

// Catalog lists the active templates an author can pick from.
func (s *TemplateService) Catalog(ctx context.Context, actor models.Actor) ([]models.Template, error) {
	if actor.Role == models.RoleUnknown {
		return []models.Template{}, errs.Denied("", "no known role for user %q", actor.UserID)
	}
	return s.templates.FindActive(ctx)
}

// Get returns a template actor may see.
func (s *TemplateService) Get(ctx context.Context, actor models.Actor, id string) (*models.Template, error) {
	t, err := s.templates.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	seen, err := visibility.Templates(actor, []models.Template{*t})
	if err != nil {
		return nil, err
	}
	if len(seen) == 0 {
		return nil, errs.Denied(string(actor.Role), "template %s is not available", id)
	}
	return t, nil
}

// Delete removes the template. Plans filed against it keep their snapshot.
func (s *TemplateService) Delete(ctx context.Context, actor models.Actor, id string) error {
	t, err := s.templates.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := visibility.CanMutateTemplate(actor, t); err != nil {
		return err
	}
	return s.templates.Delete(ctx, id)
}

func (s *TemplateService) SetActive(ctx context.Context, actor models.Actor, id string, active bool) (*models.Template, error) {
	t, err := s.templates.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := visibility.CanMutateTemplate(actor, t); err != nil {
		return nil, err
	}

	if s.mode == MultiActive || !active {
		if err := s.templates.SetActive(ctx, id, active); err != nil {
			return nil, err
		}
		t.Active = active
		return t, nil
	}

	err = s.store.Atomic(ctx, func(tx store.Store) error {
		repo := s.templates.With(tx)
		others, err := repo.FindActive(ctx)
		if err != nil {
			return err
		}
		for _, o := range others {
			if o.ID == id {
				continue
			}
			if err := repo.SetActive(ctx, o.ID, false); err != nil {
				return err
			}
		}
		return repo.SetActive(ctx, id, true)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("template activated", "template", id, "mode", "single")
	t.Active = true
	return t, nil
}

// apply validates in and copies it onto t, resolving meta field keys
// against t's current fields.
func apply(t *models.Template, in TemplateInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return errs.Validation("templateName", "template name is required")
	}
	if len(in.MetaFields) == 0 {
		return errs.Validation("metaFields", "at least one meta field is required")
	}
	fields, err := resolveFields(t.MetaFields, in.MetaFields)
	if err != nil {
		return err
	}
	for i, q := range in.Questions {
		if strings.TrimSpace(q.Label) == "" {
			return errs.Validation("questions", "question %d has no label", i+1)
		}
	}

	t.Name = name
	t.MetaFields = fields
	t.Questions = append([]models.Question{}, in.Questions...)
	for i := range t.Questions {
		if t.Questions[i].ID == "" {
			t.Questions[i].ID = uuid.NewString()
		}
	}
	s := models.Snapshot{
		Weeks: append([]models.Week{}, in.Weeks...),
		Exams: append([]models.Exam{}, in.Exams...),
		Rules: append([]models.Rule{}, in.Rules...),
	}
	snapshot.EnsureIDs(&s)
	snapshot.RelabelWeeks(s.Weeks)
	t.Weeks, t.Exams, t.StandaloneRules = s.Weeks, s.Exams, s.Rules
	return nil
}

// resolveFields derives each field key. A hand-edited key wins. Otherwise
// a new field, or one whose label changed, takes the normalized label; an
// untouched field keeps its key. When two fields resolve to the same key
// the later one replaces the earlier.
func resolveFields(current []models.FieldSpec, in []FieldInput) ([]models.FieldSpec, error) {
	prev := make(map[string]models.FieldSpec, len(current))
	for _, f := range current {
		prev[f.Key] = f
	}

	out := make([]models.FieldSpec, 0, len(in))
	for i, f := range in {
		label := strings.TrimSpace(f.Label)
		if label == "" {
			return nil, errs.Validation("metaFields", "field %d has no label", i+1)
		}
		key := strings.TrimSpace(f.Key)
		switch {
		case f.KeyEdited && key != "":
		case key == "":
			key = keys.Normalize(label)
		default:
			if old, ok := prev[key]; !ok || old.Label != label {
				key = keys.Normalize(label)
			}
		}
		kind := f.Kind
		switch kind {
		case models.FieldText, models.FieldMultiline:
		case "", "input":
			kind = models.FieldText
		case "textarea":
			kind = models.FieldMultiline
		default:
			return nil, errs.Validation("metaFields", "field %q has unknown type %q", key, kind)
		}
		out = slices.DeleteFunc(out, func(prior models.FieldSpec) bool { return prior.Key == key })
		out = append(out, models.FieldSpec{
			Key:         key,
			Label:       label,
			Kind:        kind,
			Required:    f.Required,
			Placeholder: f.Placeholder,
		})
	}
	return out, nil
}
