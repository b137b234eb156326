package service

import (
	"context"

	"github.com/noah-isme/docflow-api/internal/models"
)

type audienceDirectory interface {
	ListByAudience(ctx context.Context, filter models.AudienceFilter) ([]models.User, error)
}

// Recipients splits a resolved audience into who gets a persisted
// notification and who gets the live lifecycle event.
type Recipients struct {
	Notify []string
	Push   []string
}

// RecipientResolver turns a file event into the set of users it concerns.
type RecipientResolver struct {
	users audienceDirectory
}

// NewRecipientResolver constructs the resolver.
func NewRecipientResolver(users audienceDirectory) *RecipientResolver {
	return &RecipientResolver{users: users}
}

// Resolve loads the audience for event on the post-transition file. The
// actor never receives their own notification, and only sees the live event
// for reviews.
func (r *RecipientResolver) Resolve(ctx context.Context, file *models.File, event models.EventName, actorID string) (Recipients, error) {
	users, err := r.users.ListByAudience(ctx, audienceFor(file, event))
	if err != nil {
		return Recipients{}, err
	}

	var out Recipients
	seen := make(map[string]struct{}, len(users))
	for _, u := range users {
		if _, dup := seen[u.ID]; dup {
			continue
		}
		seen[u.ID] = struct{}{}
		if u.ID != actorID {
			out.Notify = append(out.Notify, u.ID)
		}
		if u.ID != actorID || event == models.EventFileReviewed {
			out.Push = append(out.Push, u.ID)
		}
	}
	return out, nil
}

// audienceFor is the uploader, every admin and the program officers of each
// department the file currently touches.
func audienceFor(file *models.File, event models.EventName) models.AudienceFilter {
	filter := models.AudienceFilter{Roles: []models.UserRole{models.RoleAdmin}}
	if file == nil {
		return filter
	}
	if file.UploadedBy != "" {
		filter.UserIDs = []string{file.UploadedBy}
	}

	depts := []models.Department{file.Department}
	if file.ForwardedTo != nil {
		depts = append(depts, *file.ForwardedTo)
	}
	if event == models.EventFileReviewed {
		depts = append(depts, reviewingDepartment(file))
	}

	seen := make(map[models.Department]struct{}, len(depts))
	for _, d := range depts {
		if !d.Valid() {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		filter.RoleDepartments = append(filter.RoleDepartments, models.RoleDepartment{Role: models.RoleProgramOfficer, Department: d})
	}
	return filter
}

// reviewingDepartment is the department tagged on the latest review entry.
func reviewingDepartment(file *models.File) models.Department {
	for i := len(file.History) - 1; i >= 0; i-- {
		if file.History[i].Status == models.FileStatusReviewed {
			return file.History[i].Department
		}
	}
	return ""
}
