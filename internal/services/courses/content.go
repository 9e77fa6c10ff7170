package courses

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/delawer33/edumaster/internal/domain/enums"
	pgrepo "github.com/delawer33/edumaster/internal/repo/postgres"
)

// BlockContent carries exactly one value; which one depends on the block
// type: inline text, an external URL, or an object key in the media bucket.
type BlockContent struct {
	Text      string
	URL       string
	ObjectKey string
}

type CreateLessonBlockInput struct {
	LessonID int64
	Type     enums.LessonBlockType
	Content  BlockContent
}

type UpdateLessonBlockInput struct {
	Type    *enums.LessonBlockType
	Content *BlockContent
	Order   *int
}

// LessonContent is a lesson together with its ordered blocks.
type LessonContent struct {
	Lesson pgrepo.LessonRecord
	Blocks []pgrepo.LessonBlockRecord
}

// ModuleTree nests a module's submodules and lessons under it.
type ModuleTree struct {
	Module     pgrepo.ModuleRecord
	Submodules []ModuleTree
	Lessons    []pgrepo.LessonRecord
}

// CourseContent is the full course layout: top-level module subtrees plus
// lessons attached directly to the course.
type CourseContent struct {
	Course  pgrepo.CourseRecord
	Modules []ModuleTree
	Lessons []pgrepo.LessonRecord
}

func (s *Service) CreateLessonBlock(ctx context.Context, actor Actor, in CreateLessonBlockInput) (pgrepo.LessonBlockRecord, error) {
	lesson, course, err := s.lessonWithCourse(ctx, in.LessonID)
	if err != nil {
		return pgrepo.LessonBlockRecord{}, err
	}

	if err := CheckAccess(actor, ActionWrite, LessonResource{
		CourseOwnerID: course.OwnerID,
		Status:        lesson.Status,
		CourseStatus:  course.Status,
	}); err != nil {
		return pgrepo.LessonBlockRecord{}, err
	}
	if !in.Type.Valid() {
		return pgrepo.LessonBlockRecord{}, ErrValidation
	}
	content, err := resolveBlockContent(in.Type, in.Content)
	if err != nil {
		return pgrepo.LessonBlockRecord{}, err
	}

	rec, err := s.blocks.Create(ctx, pgrepo.CreateLessonBlockParams{
		LessonID: in.LessonID,
		Type:     in.Type,
		Content:  content,
	})
	if err != nil {
		if errors.Is(err, pgrepo.ErrLessonNotFound) {
			return pgrepo.LessonBlockRecord{}, ErrLessonNotFound
		}
		return pgrepo.LessonBlockRecord{}, fmt.Errorf("create lesson block: %w", err)
	}

	return rec, nil
}

func (s *Service) UpdateLessonBlock(ctx context.Context, actor Actor, lessonID, blockID int64, in UpdateLessonBlockInput) (pgrepo.LessonBlockRecord, error) {
	block, err := s.findBlock(ctx, lessonID, blockID)
	if err != nil {
		return pgrepo.LessonBlockRecord{}, err
	}
	lesson, course, err := s.lessonWithCourse(ctx, lessonID)
	if err != nil {
		return pgrepo.LessonBlockRecord{}, err
	}

	if err := CheckAccess(actor, ActionWrite, LessonResource{
		CourseOwnerID: course.OwnerID,
		Status:        lesson.Status,
		CourseStatus:  course.Status,
	}); err != nil {
		return pgrepo.LessonBlockRecord{}, err
	}

	// Changing the type re-shapes the content string, so a new type must
	// come with new content.
	effectiveType := block.Type
	if in.Type != nil {
		if !in.Type.Valid() {
			return pgrepo.LessonBlockRecord{}, ErrValidation
		}
		effectiveType = *in.Type
		if effectiveType != block.Type && in.Content == nil {
			return pgrepo.LessonBlockRecord{}, ErrValidation
		}
	}
	if in.Order != nil && *in.Order <= 0 {
		return pgrepo.LessonBlockRecord{}, ErrValidation
	}

	var content *string
	if in.Content != nil {
		resolved, err := resolveBlockContent(effectiveType, *in.Content)
		if err != nil {
			return pgrepo.LessonBlockRecord{}, err
		}
		content = &resolved
	}

	rec, err := s.blocks.Update(ctx, blockID, pgrepo.UpdateLessonBlockParams{
		Type:    in.Type,
		Content: content,
		Order:   in.Order,
	})
	if err != nil {
		if errors.Is(err, pgrepo.ErrLessonBlockNotFound) {
			return pgrepo.LessonBlockRecord{}, ErrLessonBlockNotFound
		}
		return pgrepo.LessonBlockRecord{}, fmt.Errorf("update lesson block: %w", err)
	}

	return rec, nil
}

func (s *Service) DeleteLessonBlock(ctx context.Context, actor Actor, lessonID, blockID int64) error {
	if _, err := s.findBlock(ctx, lessonID, blockID); err != nil {
		return err
	}
	lesson, course, err := s.lessonWithCourse(ctx, lessonID)
	if err != nil {
		return err
	}

	if err := CheckAccess(actor, ActionWrite, LessonResource{
		CourseOwnerID: course.OwnerID,
		Status:        lesson.Status,
		CourseStatus:  course.Status,
	}); err != nil {
		return err
	}

	if err := s.blocks.Delete(ctx, blockID); err != nil {
		if errors.Is(err, pgrepo.ErrLessonBlockNotFound) {
			return ErrLessonBlockNotFound
		}
		return fmt.Errorf("delete lesson block: %w", err)
	}

	return nil
}

// GetLessonContent resolves the lesson through the usual read checks and
// attaches its blocks.
func (s *Service) GetLessonContent(ctx context.Context, actor Actor, lessonID int64) (LessonContent, error) {
	lesson, err := s.GetLesson(ctx, actor, lessonID)
	if err != nil {
		return LessonContent{}, err
	}

	blocks, err := s.blocks.ListByLesson(ctx, lessonID)
	if err != nil {
		return LessonContent{}, fmt.Errorf("list lesson blocks: %w", err)
	}

	return LessonContent{Lesson: lesson, Blocks: blocks}, nil
}

// GetCourseContent assembles the course layout. Students see the published
// slice of the tree; the owner and admins see all of it.
func (s *Service) GetCourseContent(ctx context.Context, actor Actor, courseID int64) (CourseContent, error) {
	course, err := s.findCourse(ctx, courseID)
	if err != nil {
		return CourseContent{}, err
	}

	if err := CheckAccess(actor, ActionRead, CourseResource{OwnerID: course.OwnerID, Status: course.Status}); err != nil {
		return CourseContent{}, err
	}

	modules, err := s.modules.ListByCourse(ctx, courseID)
	if err != nil {
		return CourseContent{}, fmt.Errorf("list modules: %w", err)
	}
	lessons, err := s.lessons.ListByCourse(ctx, courseID)
	if err != nil {
		return CourseContent{}, fmt.Errorf("list lessons: %w", err)
	}

	ownerView := actor.Role == string(enums.RoleAdmin) || actor.UserID == course.OwnerID
	if !ownerView {
		visibleModules := modules[:0]
		for _, rec := range modules {
			if rec.Status == enums.ObjectStatusPublished {
				visibleModules = append(visibleModules, rec)
			}
		}
		modules = visibleModules

		visibleLessons := lessons[:0]
		for _, rec := range lessons {
			if rec.Status == enums.ObjectStatusPublished {
				visibleLessons = append(visibleLessons, rec)
			}
		}
		lessons = visibleLessons
	}

	submodules := make(map[int64][]pgrepo.ModuleRecord)
	for _, rec := range modules {
		parent := int64(0)
		if rec.ParentModuleID != nil {
			parent = *rec.ParentModuleID
		}
		submodules[parent] = append(submodules[parent], rec)
	}

	moduleLessons := make(map[int64][]pgrepo.LessonRecord)
	var courseLessons []pgrepo.LessonRecord
	for _, rec := range lessons {
		if rec.ModuleID == nil {
			courseLessons = append(courseLessons, rec)
			continue
		}
		moduleLessons[*rec.ModuleID] = append(moduleLessons[*rec.ModuleID], rec)
	}

	var build func(parentID int64) []ModuleTree
	build = func(parentID int64) []ModuleTree {
		var out []ModuleTree
		for _, rec := range submodules[parentID] {
			out = append(out, ModuleTree{
				Module:     rec,
				Submodules: build(rec.ID),
				Lessons:    moduleLessons[rec.ID],
			})
		}
		return out
	}

	return CourseContent{
		Course:  course,
		Modules: build(0),
		Lessons: courseLessons,
	}, nil
}

// findBlock resolves a block and pins it to the lesson in the URL, so a
// block cannot be reached through another lesson's path.
func (s *Service) findBlock(ctx context.Context, lessonID, blockID int64) (pgrepo.LessonBlockRecord, error) {
	if lessonID <= 0 || blockID <= 0 {
		return pgrepo.LessonBlockRecord{}, ErrValidation
	}
	block, err := s.blocks.FindByID(ctx, blockID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrLessonBlockNotFound) {
			return pgrepo.LessonBlockRecord{}, ErrLessonBlockNotFound
		}
		return pgrepo.LessonBlockRecord{}, fmt.Errorf("find lesson block: %w", err)
	}
	if block.LessonID != lessonID {
		return pgrepo.LessonBlockRecord{}, ErrLessonBlockNotFound
	}
	return block, nil
}

func resolveBlockContent(t enums.LessonBlockType, c BlockContent) (string, error) {
	switch {
	case t == enums.LessonBlockText:
		text := strings.TrimSpace(c.Text)
		if text == "" {
			return "", ErrValidation
		}
		return text, nil
	case t.URLBacked():
		raw := strings.TrimSpace(c.URL)
		parsed, err := url.Parse(raw)
		if raw == "" || err != nil || !parsed.IsAbs() {
			return "", ErrValidation
		}
		return raw, nil
	case t.FileBacked():
		key := strings.TrimSpace(c.ObjectKey)
		if key == "" {
			return "", ErrValidation
		}
		return key, nil
	default:
		return "", ErrValidation
	}
}
