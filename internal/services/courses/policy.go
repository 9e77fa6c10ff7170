package courses

import (
	"errors"

	"github.com/delawer33/edumaster/internal/domain/enums"
)

var (
	ErrForbidden = errors.New("forbidden")
	ErrArchived  = errors.New("resource is archived")
)

type Action string

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
)

type Actor struct {
	UserID int64
	Role   string
}

// Resource is a closed set: exactly courses, modules and lessons are
// subject to the access policy. The unexported marker keeps outside
// packages from adding cases the policy switch does not know about.
type Resource interface {
	isResource()
}

type CourseResource struct {
	OwnerID int64
	Status  enums.ObjectStatus
}

type ModuleResource struct {
	CourseOwnerID int64
	Status        enums.ObjectStatus
	CourseStatus  enums.ObjectStatus
}

type LessonResource struct {
	CourseOwnerID int64
	Status        enums.ObjectStatus
	CourseStatus  enums.ObjectStatus
}

func (CourseResource) isResource() {}
func (ModuleResource) isResource() {}
func (LessonResource) isResource() {}

// CheckAccess decides whether the actor may perform the action. Owners and
// admins see everything they own; everyone else sees published content
// only. Writes to archived content are rejected even for the owner, so an
// archived course has to be unarchived explicitly before editing.
func CheckAccess(actor Actor, action Action, resource Resource) error {
	if actor.Role == string(enums.RoleAdmin) {
		if action == ActionWrite && resourceStatus(resource) == enums.ObjectStatusArchived {
			return ErrArchived
		}
		return nil
	}

	switch res := resource.(type) {
	case CourseResource:
		return check(actor, action, res.OwnerID, res.Status, enums.ObjectStatusPublished)
	case ModuleResource:
		return check(actor, action, res.CourseOwnerID, res.Status, res.CourseStatus)
	case LessonResource:
		return check(actor, action, res.CourseOwnerID, res.Status, res.CourseStatus)
	default:
		return ErrForbidden
	}
}

func check(actor Actor, action Action, ownerID int64, status, parentStatus enums.ObjectStatus) error {
	isOwner := actor.UserID > 0 && actor.UserID == ownerID

	switch action {
	case ActionWrite:
		if !isOwner {
			return ErrForbidden
		}
		if status == enums.ObjectStatusArchived {
			return ErrArchived
		}
		return nil
	case ActionRead:
		if isOwner {
			return nil
		}
		if status == enums.ObjectStatusPublished && parentStatus == enums.ObjectStatusPublished {
			return nil
		}
		return ErrForbidden
	default:
		return ErrForbidden
	}
}

func resourceStatus(resource Resource) enums.ObjectStatus {
	switch res := resource.(type) {
	case CourseResource:
		return res.Status
	case ModuleResource:
		return res.Status
	case LessonResource:
		return res.Status
	default:
		return ""
	}
}
