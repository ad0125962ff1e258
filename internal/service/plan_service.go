package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/blob"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/errs"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/lifecycle"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/metric"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/models"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/render"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/repository"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/snapshot"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/store"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/validation"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/visibility"
)

// UnknownAuthor is shown in the review queue for plans whose author has no
// profile.
const UnknownAuthor = "Inconnu"

// PlanService runs the submission workflow: drafting, validation, filing,
// review and the follow-up actions on filed plans.
type PlanService struct {
	store     store.Store
	plans     *repository.PlanRepo
	templates *repository.TemplateRepo
	users     *repository.UserRepo
	engine    *validation.Engine
	blobs     blob.Store
	digestKey []byte
	metrics   *metric.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewPlanService(s store.Store, engine *validation.Engine, blobs blob.Store, digestKey []byte, m *metric.Metrics, logger *slog.Logger) *PlanService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanService{
		store:     s,
		plans:     repository.NewPlanRepo(s),
		templates: repository.NewTemplateRepo(s),
		users:     repository.NewUserRepo(s),
		engine:    engine,
		blobs:     blobs,
		digestKey: digestKey,
		metrics:   m,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// NewDraft starts an authoring session on a template. The draft is not
// stored; the client keeps it until it is submitted.
func (s *PlanService) NewDraft(ctx context.Context, actor models.Actor, templateID string) (*models.Plan, error) {
	t, err := s.visibleTemplate(ctx, actor, templateID)
	if err != nil {
		return nil, err
	}
	snap := structureOf(t)
	snap.Weeks = snapshot.SeedWeeks(snap.Weeks)

	p := &models.Plan{
		TemplateID: t.ID,
		AuthorID:   actor.UserID,
		Status:     models.StatusDraft,
		MetaValues: snapshot.InitValues(snap.MetaFields, nil),
		Answers:    map[string]string{},
	}
	p.SetSnapshot(snap)
	p.Title = snapshot.Title(p.MetaFields, p.MetaValues)
	return p, nil
}

// RowOp is an edit of the week or exam rows of a candidate plan.
type RowOp string

const (
	AddWeek    RowOp = "addWeek"
	RemoveWeek RowOp = "removeWeek"
	AddExam    RowOp = "addExam"
	RemoveExam RowOp = "removeExam"
)

// Rows applies op to the candidate's rows. Rows are addressed by id, and
// weeks are relabeled after every change.
func (s *PlanService) Rows(candidate *models.Plan, op RowOp, id string) (*models.Plan, error) {
	p := *candidate
	snap := snapshot.Clone(candidate.Snapshot())
	snapshot.EnsureIDs(&snap)
	switch op {
	case AddWeek:
		snap.Weeks = snapshot.AddWeek(snap.Weeks)
	case RemoveWeek:
		snap.Weeks = snapshot.RemoveWeek(snap.Weeks, id)
	case AddExam:
		snap.Exams = snapshot.AddExam(snap.Exams)
	case RemoveExam:
		snap.Exams = snapshot.RemoveExam(snap.Exams, id)
	default:
		return nil, errs.Validation("op", "unknown row operation %q", op)
	}
	p.SetSnapshot(snap)
	// Edited rows invalidate any earlier validation pass.
	p.ValidationDigest = ""
	return &p, nil
}

// Validate runs an explicit validation pass over a candidate and returns it
// with its verdict and a digest that Submit and Resubmit check.
//
// The structure graded is always the server's: the current structure of
// the plan's template, or the filed snapshot once that template is gone.
// Only meta values, answers and week/exam rows come from the candidate.
func (s *PlanService) Validate(ctx context.Context, actor models.Actor, candidate *models.Plan) (*models.Plan, error) {
	var p *models.Plan
	if candidate.ID == "" {
		t, err := s.visibleTemplate(ctx, actor, candidate.TemplateID)
		if err != nil {
			return nil, err
		}
		snap := structureOf(t)
		p = &models.Plan{
			TemplateID: t.ID,
			AuthorID:   actor.UserID,
			Status:     models.StatusDraft,
		}
		p.SetSnapshot(snapshot.Rebuild(snap, candidate.Weeks, candidate.Exams))
	} else {
		stored, err := s.plans.FindByID(ctx, candidate.ID)
		if err != nil {
			return nil, err
		}
		if err := visibility.IsAuthor(actor, stored); err != nil {
			return nil, err
		}
		structure, err := s.currentStructure(ctx, stored.TemplateID)
		if err != nil {
			return nil, err
		}
		p = edited(stored, structure, candidate)
	}
	rows := p.Snapshot()
	snapshot.EnsureIDs(&rows)
	p.MetaValues = snapshot.InitValues(p.MetaFields, candidate.MetaValues)
	p.Answers = answersFor(p.Questions, candidate.Answers)
	p.Title = snapshot.Title(p.MetaFields, p.MetaValues)

	s.stamp(ctx, p)
	return p, nil
}

// Submit files a validated draft.
func (s *PlanService) Submit(ctx context.Context, actor models.Actor, candidate *models.Plan) (*models.Plan, error) {
	if candidate.ID != "" {
		return nil, errs.Transition(string(candidate.Status), string(models.StatusSubmitted), "plan was already filed; resubmit it instead")
	}
	if err := knownRole(actor); err != nil {
		return nil, err
	}
	p := s.copyCandidate(candidate)
	p.AuthorID = actor.UserID
	p.Status = models.StatusDraft
	if !validation.Verify(s.digestKey, p) {
		return nil, errs.Transition(string(models.StatusDraft), string(models.StatusSubmitted), "plan must be validated before it is submitted")
	}
	if err := lifecycle.Submit(p, s.now()); err != nil {
		return nil, err
	}
	p.Title = snapshot.Title(p.MetaFields, p.MetaValues)
	p.Version = 1

	if err := s.attachReport(ctx, p); err != nil {
		return nil, err
	}
	if err := s.plans.Save(ctx, p); err != nil {
		return nil, err
	}
	s.metrics.ObserveTransition("submit", string(p.Status))
	s.logger.Info("plan submitted", "plan", p.ID, "author", p.AuthorID, "verdict", p.AIValidation.Status)
	return p, nil
}

// Resubmit files a validated edit of a plan sent back for correction,
// under revision or approved. The filed snapshot is taken afresh from the
// plan's template, with the author's edited rows.
func (s *PlanService) Resubmit(ctx context.Context, actor models.Actor, candidate *models.Plan, expectedVersion *int) (*models.Plan, error) {
	if candidate.ID == "" {
		return nil, errs.Validation("id", "plan id is required")
	}
	stored, err := s.plans.FindByID(ctx, candidate.ID)
	if err != nil {
		return nil, err
	}
	structure, err := s.currentStructure(ctx, stored.TemplateID)
	if err != nil {
		return nil, err
	}
	p, err := s.mutate(ctx, candidate.ID, expectedVersion, func(stored *models.Plan) error {
		if err := visibility.IsAuthor(actor, stored); err != nil {
			return errs.RefusedTransition(string(stored.Status), string(models.StatusSubmitted), err)
		}
		next := edited(stored, structure, candidate)
		next.MetaValues = snapshot.InitValues(next.MetaFields, candidate.MetaValues)
		next.Answers = answersFor(next.Questions, candidate.Answers)
		next.AIValidation = candidate.AIValidation
		next.ValidationDigest = candidate.ValidationDigest
		next.ValidatedAt = candidate.ValidatedAt
		if err := lifecycle.Resubmit(next, s.now()); err != nil {
			return err
		}
		if !validation.Verify(s.digestKey, next) {
			return errs.Transition(string(stored.Status), string(next.Status), "edited plan must be validated before it is resubmitted")
		}
		next.Title = snapshot.Title(next.MetaFields, next.MetaValues)
		*stored = *next
		return nil
	}, func(p *models.Plan) error {
		return s.attachReport(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveTransition("resubmit", string(p.Status))
	s.logger.Info("plan resubmitted", "plan", p.ID, "status", p.Status)
	return p, nil
}

// Revalidate recomputes the cached verdict of a filed plan. Verdicts are
// never refreshed implicitly.
func (s *PlanService) Revalidate(ctx context.Context, actor models.Actor, id string) (*models.Plan, error) {
	stored, err := s.plans.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := visibility.CanSeePlan(actor, stored); err != nil {
		return nil, err
	}
	switch stored.Status {
	case models.StatusSubmitted, models.StatusUnderRevision, models.StatusNeedsCorrection:
	default:
		return nil, errs.Transition(string(stored.Status), string(stored.Status), "only plans awaiting review can be revalidated")
	}

	// Grade outside the write so a slow grader never holds a transaction.
	fresh := *stored
	s.stamp(ctx, &fresh)

	version := stored.Version
	p, err := s.mutate(ctx, id, &version, func(p *models.Plan) error {
		p.AIValidation = fresh.AIValidation
		p.ValidatedAt = fresh.ValidatedAt
		p.ValidationDigest = fresh.ValidationDigest
		p.UpdatedAt = s.now()
		return nil
	}, nil)
	if err != nil {
		return nil, err
	}
	s.logger.Info("plan revalidated", "plan", id, "verdict", p.AIValidation.Status)
	return p, nil
}

// Review records a reviewer's decision.
func (s *PlanService) Review(ctx context.Context, actor models.Actor, id, decision, comment string, expectedVersion *int) (*models.Plan, error) {
	d, err := lifecycle.ParseDecision(decision)
	if err != nil {
		return nil, err
	}
	p, err := s.mutate(ctx, id, expectedVersion, func(p *models.Plan) error {
		return lifecycle.Review(p, actor, d, comment, s.now())
	}, nil)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveTransition("review", string(p.Status))
	s.logger.Info("plan reviewed", "plan", id, "reviewer", actor.UserID, "status", p.Status)
	return p, nil
}

// Amend rewrites the reviewer comment of an approved plan.
func (s *PlanService) Amend(ctx context.Context, actor models.Actor, id, comment string, expectedVersion *int) (*models.Plan, error) {
	p, err := s.mutate(ctx, id, expectedVersion, func(p *models.Plan) error {
		return lifecycle.Amend(p, actor, comment, s.now())
	}, nil)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveTransition("amend", string(p.Status))
	return p, nil
}

// Reopen moves an approved plan back to UnderRevision for its author.
func (s *PlanService) Reopen(ctx context.Context, actor models.Actor, id string, expectedVersion *int) (*models.Plan, error) {
	p, err := s.mutate(ctx, id, expectedVersion, func(p *models.Plan) error {
		return lifecycle.Reopen(p, actor, s.now())
	}, nil)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveTransition("reopen", string(p.Status))
	return p, nil
}

func (s *PlanService) Get(ctx context.Context, actor models.Actor, id string) (*models.Plan, error) {
	p, err := s.plans.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := visibility.CanSeePlan(actor, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListMine is the "my submissions" view, newest first.
func (s *PlanService) ListMine(ctx context.Context, actor models.Actor) ([]models.Plan, error) {
	all, err := s.plans.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return visibility.Plans(actor, all)
}

// Queue is the reviewer queue across all authors, newest first, with each
// author's display name.
func (s *PlanService) Queue(ctx context.Context, actor models.Actor) ([]models.PlanSummary, error) {
	all, err := s.plans.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	queue, err := visibility.Queue(actor, all)
	if err != nil {
		return []models.PlanSummary{}, err
	}
	ids := make([]string, 0, len(queue))
	for _, p := range queue {
		ids = append(ids, p.AuthorID)
	}
	names, err := s.users.DisplayNames(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]models.PlanSummary, 0, len(queue))
	for _, p := range queue {
		name, ok := names[p.AuthorID]
		if !ok {
			name = UnknownAuthor
		}
		out = append(out, models.PlanSummary{Plan: p, AuthorName: name})
	}
	return out, nil
}

// Delete removes an author's own plan unless it is approved.
func (s *PlanService) Delete(ctx context.Context, actor models.Actor, id string) error {
	p, err := s.plans.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := visibility.IsAuthor(actor, p); err != nil {
		return err
	}
	if p.Status == models.StatusApproved {
		return errs.Transition(string(p.Status), "deleted", "approved plans cannot be deleted; reopen it first")
	}
	if err := s.plans.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("plan deleted", "plan", id, "author", actor.UserID)
	return nil
}

// Dashboard holds the counts shown on an actor's home screen.
type Dashboard struct {
	TemplateCount int                   `json:"templateCount,omitempty"`
	PlanCount     int                   `json:"planCount"`
	ByStatus      map[models.Status]int `json:"byStatus"`
}

// Dashboard counts plans per status: an author's own plans, or every plan
// for roles that review. Coordinators also get the number of templates
// they created.
func (s *PlanService) Dashboard(ctx context.Context, actor models.Actor) (*Dashboard, error) {
	if err := knownRole(actor); err != nil {
		return nil, err
	}
	all, err := s.plans.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	plans := all
	if !actor.Role.CanReview() {
		if plans, err = visibility.Plans(actor, all); err != nil {
			return nil, err
		}
	}

	d := &Dashboard{PlanCount: len(plans), ByStatus: make(map[models.Status]int, len(models.Statuses))}
	for _, st := range models.Statuses {
		d.ByStatus[st] = 0
	}
	for _, p := range plans {
		d.ByStatus[p.Status]++
	}
	if actor.Role == models.RoleCoordinator {
		mine, err := s.templates.FindByCreator(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		d.TemplateCount = len(mine)
	}
	return d, nil
}

// mutate loads plan id, checks the optional expected version, applies fn
// and writes the result with a bumped version, all in one atomic write. A
// refusal from fn leaves the stored plan untouched. prepare, when set, runs
// on the changed plan before the write.
func (s *PlanService) mutate(ctx context.Context, id string, expectedVersion *int, fn func(*models.Plan) error, prepare func(*models.Plan) error) (*models.Plan, error) {
	if id == "" {
		return nil, errs.Validation("id", "plan id is required")
	}
	var out *models.Plan
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		repo := s.plans.With(tx)
		p, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if expectedVersion != nil && *expectedVersion != p.Version {
			return errs.Transition(string(p.Status), string(p.Status),
				"plan changed since it was loaded (version %d, expected %d)", p.Version, *expectedVersion)
		}
		if err := fn(p); err != nil {
			return err
		}
		if prepare != nil {
			if err := prepare(p); err != nil {
				return err
			}
		}
		p.Version++
		if err := repo.Save(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// stamp validates p and records the verdict with its digest.
func (s *PlanService) stamp(ctx context.Context, p *models.Plan) {
	verdict := s.engine.Validate(ctx, validation.InputOf(p))
	now := s.now()
	p.AIValidation = &verdict
	p.ValidatedAt = &now
	p.ValidationDigest = validation.Digest(s.digestKey, p)
}

// attachReport renders p, uploads it and records the report URL.
func (s *PlanService) attachReport(ctx context.Context, p *models.Plan) error {
	path := fmt.Sprintf("plans/%s/%s.txt", p.AuthorID, strconv.FormatInt(s.now().UnixMilli(), 10))
	url, err := s.blobs.Upload(ctx, path, render.Report(p), render.ContentType)
	if err != nil {
		return errs.Unavailable("blob store", err)
	}
	p.ReportURL = url
	return nil
}

func (s *PlanService) visibleTemplate(ctx context.Context, actor models.Actor, id string) (*models.Template, error) {
	if id == "" {
		return nil, errs.Validation("templateId", "a template is required")
	}
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

// copyCandidate takes an independent copy of a client-held plan.
func (s *PlanService) copyCandidate(c *models.Plan) *models.Plan {
	p := *c
	p.SetSnapshot(snapshot.Clone(c.Snapshot()))
	p.MetaValues = snapshot.CopyValues(c.MetaValues)
	p.Answers = snapshot.CopyValues(c.Answers)
	return &p
}

// structureOf snapshots t. Questions and rules stored without an id get
// one derived from their position, so two snapshots of the same template
// are identical and answers stay keyed across passes.
func structureOf(t *models.Template) models.Snapshot {
	snap := snapshot.Build(t)
	for i := range snap.Questions {
		if snap.Questions[i].ID == "" {
			snap.Questions[i].ID = "q-" + strconv.Itoa(i+1)
		}
	}
	for i := range snap.Rules {
		if snap.Rules[i].ID == "" {
			snap.Rules[i].ID = "rule-" + strconv.Itoa(i+1)
		}
	}
	snapshot.EnsureIDs(&snap)
	return snap
}

// currentStructure snapshots the template a plan was filed against. It
// returns nil when that template no longer exists.
func (s *PlanService) currentStructure(ctx context.Context, templateID string) (*models.Snapshot, error) {
	if templateID == "" {
		return nil, nil
	}
	t, err := s.templates.FindByID(ctx, templateID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	snap := structureOf(t)
	return &snap, nil
}

// edited is stored with structure, or its own snapshot when structure is
// nil, plus the candidate's rows. Values and answers are trimmed to the
// resulting fields and questions.
func edited(stored *models.Plan, structure *models.Snapshot, candidate *models.Plan) *models.Plan {
	base := stored.Snapshot()
	if structure != nil {
		base = *structure
	}
	p := *stored
	p.SetSnapshot(snapshot.Rebuild(base, candidate.Weeks, candidate.Exams))
	p.MetaValues = snapshot.InitValues(p.MetaFields, stored.MetaValues)
	p.Answers = answersFor(p.Questions, stored.Answers)
	return &p
}

// answersFor keeps the answers to the given questions.
func answersFor(qs []models.Question, in map[string]string) map[string]string {
	out := make(map[string]string, len(qs))
	for _, q := range qs {
		if v, ok := in[q.ID]; ok {
			out[q.ID] = v
		}
	}
	return out
}

func knownRole(actor models.Actor) error {
	if actor.Role == models.RoleUnknown {
		return errs.Denied("", "no known role for user %q", actor.UserID)
	}
	return nil
}
