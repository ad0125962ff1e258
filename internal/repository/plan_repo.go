package repository

import (
	"context"
	"fmt"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/models"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/snapshot"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/store"
)

type PlanRepo struct {
	store store.Store
}

func NewPlanRepo(s store.Store) *PlanRepo {
	return &PlanRepo{store: s}
}

func (r *PlanRepo) With(s store.Store) *PlanRepo {
	return &PlanRepo{store: s}
}

// Save writes the whole plan, assigning an id when it has none.
func (r *PlanRepo) Save(ctx context.Context, p *models.Plan) error {
	doc, err := toDoc(p)
	if err != nil {
		return err
	}
	id, err := r.store.Put(ctx, PlansCollection, p.ID, doc)
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

func (r *PlanRepo) FindByID(ctx context.Context, id string) (*models.Plan, error) {
	doc, err := r.store.Get(ctx, PlansCollection, id)
	if err != nil {
		return nil, err
	}
	return docToPlan(doc)
}

// FindByAuthor lists one author's plans, newest first.
func (r *PlanRepo) FindByAuthor(ctx context.Context, authorID string) ([]models.Plan, error) {
	return r.find(ctx, store.Filter{"authorId": authorID})
}

// FindAll lists every plan, newest first.
func (r *PlanRepo) FindAll(ctx context.Context) ([]models.Plan, error) {
	return r.find(ctx, nil)
}

func (r *PlanRepo) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, PlansCollection, id)
}

func (r *PlanRepo) find(ctx context.Context, f store.Filter) ([]models.Plan, error) {
	// Legacy plans carry teacherId instead of authorId, so author filters
	// run after the upgrade rather than in the store query.
	docs, err := r.store.List(ctx, PlansCollection, nil, newestFirst)
	if err != nil {
		return nil, err
	}
	out := make([]models.Plan, 0, len(docs))
	for _, d := range docs {
		p, err := docToPlan(d)
		if err != nil {
			return nil, err
		}
		if author, ok := f["authorId"]; ok && p.AuthorID != author {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

// docToPlan decodes a stored plan, upgrading every older shape on the way:
// renamed fields, French status labels, numeric row ids, bare-string rules
// and the flat meta object.
func docToPlan(doc store.Doc) (*models.Plan, error) {
	rename(doc, "formId", "templateId")
	rename(doc, "teacherId", "authorId")
	rename(doc, "coordinatorComment", "reviewerComment")
	rename(doc, "coordinatorId", "reviewerId")
	rename(doc, "pdfUrl", "reportUrl")
	rename(doc, "aiRulesSnapshot", "rulesSnapshot")
	upgradeRules(doc, "rulesSnapshot")
	stringifyIDs(doc, "questionsSnapshot")
	stringifyIDs(doc, "weeksSnapshot")
	stringifyIDs(doc, "examsSnapshot")
	for _, f := range []string{"createdAt", "updatedAt", "validatedAt", "reviewedAt", "approvedAt"} {
		fixTime(doc, f)
	}
	snapshot.NormalizeDoc(doc)

	raw, _ := doc["status"].(string)
	status, ok := models.ParseStatus(raw)
	if !ok {
		return nil, fmt.Errorf("plan %v: unknown status %q", doc[store.IDField], raw)
	}
	doc["status"] = string(status)

	var p models.Plan
	if err := fromDoc(doc, &p); err != nil {
		return nil, fmt.Errorf("plan %v: %w", doc[store.IDField], err)
	}
	if p.Answers == nil {
		p.Answers = map[string]string{}
	}
	p.SetSnapshot(snapshot.Clone(p.Snapshot()))
	return &p, nil
}
