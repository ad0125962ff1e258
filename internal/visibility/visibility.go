// Package visibility decides which templates and plans an actor may list
// and change. Every decision is derived from role and ownership alone.
package visibility

import (
	"github.com/parisxmas/OxiDB/OxiPlan/internal/errs"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/models"
)

// Templates returns the subset of all the actor may list. Coordinators
// see the templates they created; teachers and reviewers see the active
// catalog. An unknown role gets an empty set and an AccessDenied.
func Templates(actor models.Actor, all []models.Template) ([]models.Template, error) {
	out := make([]models.Template, 0, len(all))
	switch actor.Role {
	case models.RoleCoordinator:
		for _, t := range all {
			if t.CreatorID == actor.UserID {
				out = append(out, t)
			}
		}
	case models.RoleTeacher, models.RoleReviewer:
		for _, t := range all {
			if t.Active {
				out = append(out, t)
			}
		}
	default:
		return out, unknownRole(actor)
	}
	return out, nil
}

// Plans returns the "my submissions" view: authors and coordinators see
// only plans they filed. Reviewers see every plan.
func Plans(actor models.Actor, all []models.Plan) ([]models.Plan, error) {
	out := make([]models.Plan, 0, len(all))
	switch actor.Role {
	case models.RoleTeacher, models.RoleCoordinator:
		for _, p := range all {
			if p.AuthorID == actor.UserID {
				out = append(out, p)
			}
		}
	case models.RoleReviewer:
		out = append(out, all...)
	default:
		return out, unknownRole(actor)
	}
	return out, nil
}

// Queue returns the review queue. It is global across authors and only
// available to roles that can review.
func Queue(actor models.Actor, all []models.Plan) ([]models.Plan, error) {
	if actor.Role == models.RoleUnknown {
		return []models.Plan{}, unknownRole(actor)
	}
	if !actor.Role.CanReview() {
		return []models.Plan{}, errs.Denied(string(actor.Role), "only reviewers can open the review queue")
	}
	return append(make([]models.Plan, 0, len(all)), all...), nil
}

// CanMutateTemplate reports whether actor may edit, delete or (de)activate t.
func CanMutateTemplate(actor models.Actor, t *models.Template) error {
	if actor.Role != models.RoleCoordinator {
		if actor.Role == models.RoleUnknown {
			return unknownRole(actor)
		}
		return errs.Denied(string(actor.Role), "only coordinators manage templates")
	}
	if t != nil && t.CreatorID != actor.UserID {
		return errs.Denied(string(actor.Role), "template %s belongs to another coordinator", t.ID)
	}
	return nil
}

// CanSeePlan reports whether actor may read p.
func CanSeePlan(actor models.Actor, p *models.Plan) error {
	switch {
	case actor.Role == models.RoleUnknown:
		return unknownRole(actor)
	case actor.Role.CanReview(), p.AuthorID == actor.UserID:
		return nil
	}
	return errs.Denied(string(actor.Role), "plan %s belongs to another author", p.ID)
}

// IsAuthor reports whether actor filed p.
func IsAuthor(actor models.Actor, p *models.Plan) error {
	if actor.Role == models.RoleUnknown {
		return unknownRole(actor)
	}
	if p.AuthorID != actor.UserID {
		return errs.Denied(string(actor.Role), "only the author may change plan %s", p.ID)
	}
	return nil
}

func unknownRole(actor models.Actor) error {
	return errs.Denied(string(actor.Role), "no known role for user %q", actor.UserID)
}
