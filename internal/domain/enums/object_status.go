package enums

// ObjectStatus is the publication state shared by courses, modules and lessons.
type ObjectStatus string

const (
	ObjectStatusDraft     ObjectStatus = "draft"
	ObjectStatusPublished ObjectStatus = "published"
	ObjectStatusArchived  ObjectStatus = "archived"
)

func (s ObjectStatus) Valid() bool {
	switch s {
	case ObjectStatusDraft, ObjectStatusPublished, ObjectStatusArchived:
		return true
	default:
		return false
	}
}
