package courses

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/delawer33/edumaster/internal/domain/enums"
	pgrepo "github.com/delawer33/edumaster/internal/repo/postgres"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrCourseNotFound      = errors.New("course not found")
	ErrModuleNotFound      = errors.New("module not found")
	ErrLessonNotFound      = errors.New("lesson not found")
	ErrLessonBlockNotFound = errors.New("lesson block not found")
	ErrModuleConflict      = errors.New("module cannot mix submodules and lessons")
)

type CourseStore interface {
	Create(ctx context.Context, p pgrepo.CreateCourseParams) (pgrepo.CourseRecord, error)
	FindByID(ctx context.Context, courseID int64) (pgrepo.CourseRecord, error)
	List(ctx context.Context, statuses []enums.ObjectStatus, ownerID int64) ([]pgrepo.CourseRecord, error)
	Update(ctx context.Context, courseID int64, p pgrepo.UpdateCourseParams) (pgrepo.CourseRecord, error)
	Delete(ctx context.Context, courseID int64) error
}

type ModuleStore interface {
	Create(ctx context.Context, p pgrepo.CreateModuleParams) (pgrepo.ModuleRecord, error)
	FindByID(ctx context.Context, moduleID int64) (pgrepo.ModuleRecord, error)
	ListByCourse(ctx context.Context, courseID int64) ([]pgrepo.ModuleRecord, error)
	UpdateStatus(ctx context.Context, moduleID int64, status enums.ObjectStatus) (pgrepo.ModuleRecord, error)
	Delete(ctx context.Context, moduleID int64) error
}

type LessonStore interface {
	Create(ctx context.Context, p pgrepo.CreateLessonParams) (pgrepo.LessonRecord, error)
	FindByID(ctx context.Context, lessonID int64) (pgrepo.LessonRecord, error)
	ListByModule(ctx context.Context, moduleID int64) ([]pgrepo.LessonRecord, error)
	ListByCourse(ctx context.Context, courseID int64) ([]pgrepo.LessonRecord, error)
	UpdateStatus(ctx context.Context, lessonID int64, status enums.ObjectStatus) (pgrepo.LessonRecord, error)
	Delete(ctx context.Context, lessonID int64) error
}

type LessonBlockStore interface {
	Create(ctx context.Context, p pgrepo.CreateLessonBlockParams) (pgrepo.LessonBlockRecord, error)
	FindByID(ctx context.Context, blockID int64) (pgrepo.LessonBlockRecord, error)
	ListByLesson(ctx context.Context, lessonID int64) ([]pgrepo.LessonBlockRecord, error)
	Update(ctx context.Context, blockID int64, p pgrepo.UpdateLessonBlockParams) (pgrepo.LessonBlockRecord, error)
	Delete(ctx context.Context, blockID int64) error
}

type Dependencies struct {
	Courses CourseStore
	Modules ModuleStore
	Lessons LessonStore
	Blocks  LessonBlockStore
}

type Service struct {
	courses CourseStore
	modules ModuleStore
	lessons LessonStore
	blocks  LessonBlockStore
}

func NewService(deps Dependencies) *Service {
	return &Service{
		courses: deps.Courses,
		modules: deps.Modules,
		lessons: deps.Lessons,
		blocks:  deps.Blocks,
	}
}

type CreateCourseInput struct {
	Title       string
	Description string
	Price       float64
}

func (s *Service) CreateCourse(ctx context.Context, actor Actor, in CreateCourseInput) (pgrepo.CourseRecord, error) {
	if actor.Role != string(enums.RoleTeacher) && actor.Role != string(enums.RoleAdmin) {
		return pgrepo.CourseRecord{}, ErrForbidden
	}
	if strings.TrimSpace(in.Title) == "" || in.Price < 0 {
		return pgrepo.CourseRecord{}, ErrValidation
	}

	rec, err := s.courses.Create(ctx, pgrepo.CreateCourseParams{
		Title:       in.Title,
		Description: in.Description,
		Price:       in.Price,
		OwnerID:     actor.UserID,
	})
	if err != nil {
		return pgrepo.CourseRecord{}, fmt.Errorf("create course: %w", err)
	}

	return rec, nil
}

func (s *Service) GetCourse(ctx context.Context, actor Actor, courseID int64) (pgrepo.CourseRecord, error) {
	course, err := s.findCourse(ctx, courseID)
	if err != nil {
		return pgrepo.CourseRecord{}, err
	}

	if err := CheckAccess(actor, ActionRead, CourseResource{OwnerID: course.OwnerID, Status: course.Status}); err != nil {
		return pgrepo.CourseRecord{}, err
	}

	return course, nil
}

// ListCourses returns every published course plus the actor's own drafts
// and archives.
func (s *Service) ListCourses(ctx context.Context, actor Actor) ([]pgrepo.CourseRecord, error) {
	if actor.Role == string(enums.RoleAdmin) {
		return s.courses.List(ctx, []enums.ObjectStatus{
			enums.ObjectStatusDraft,
			enums.ObjectStatusPublished,
			enums.ObjectStatusArchived,
		}, 0)
	}

	records, err := s.courses.List(ctx, []enums.ObjectStatus{enums.ObjectStatusPublished}, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return records, nil
}

type UpdateCourseInput struct {
	Title       *string
	Description *string
	Price       *float64
	Status      *enums.ObjectStatus
}

func (s *Service) UpdateCourse(ctx context.Context, actor Actor, courseID int64, in UpdateCourseInput) (pgrepo.CourseRecord, error) {
	course, err := s.findCourse(ctx, courseID)
	if err != nil {
		return pgrepo.CourseRecord{}, err
	}

	if err := CheckAccess(actor, ActionWrite, CourseResource{OwnerID: course.OwnerID, Status: course.Status}); err != nil {
		// Unarchiving is the one allowed write on an archived course.
		if !errors.Is(err, ErrArchived) || !isUnarchive(in.Status) {
			return pgrepo.CourseRecord{}, err
		}
	}
	if in.Price != nil && *in.Price < 0 {
		return pgrepo.CourseRecord{}, ErrValidation
	}
	if in.Status != nil && !in.Status.Valid() {
		return pgrepo.CourseRecord{}, ErrValidation
	}

	updated, err := s.courses.Update(ctx, courseID, pgrepo.UpdateCourseParams{
		Title:       in.Title,
		Description: in.Description,
		Price:       in.Price,
		Status:      in.Status,
	})
	if err != nil {
		if errors.Is(err, pgrepo.ErrCourseNotFound) {
			return pgrepo.CourseRecord{}, ErrCourseNotFound
		}
		return pgrepo.CourseRecord{}, fmt.Errorf("update course: %w", err)
	}

	return updated, nil
}

func (s *Service) DeleteCourse(ctx context.Context, actor Actor, courseID int64) error {
	course, err := s.findCourse(ctx, courseID)
	if err != nil {
		return err
	}

	if actor.Role != string(enums.RoleAdmin) && actor.UserID != course.OwnerID {
		return ErrForbidden
	}

	if err := s.courses.Delete(ctx, courseID); err != nil {
		if errors.Is(err, pgrepo.ErrCourseNotFound) {
			return ErrCourseNotFound
		}
		return fmt.Errorf("delete course: %w", err)
	}

	return nil
}

type CreateModuleInput struct {
	CourseID       int64
	ParentModuleID *int64
	Title          string
	Description    string
	Order          int
}

func (s *Service) CreateModule(ctx context.Context, actor Actor, in CreateModuleInput) (pgrepo.ModuleRecord, error) {
	course, err := s.findCourse(ctx, in.CourseID)
	if err != nil {
		return pgrepo.ModuleRecord{}, err
	}

	if err := CheckAccess(actor, ActionWrite, CourseResource{OwnerID: course.OwnerID, Status: course.Status}); err != nil {
		return pgrepo.ModuleRecord{}, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return pgrepo.ModuleRecord{}, ErrValidation
	}
	if in.ParentModuleID != nil {
		parent, err := s.findModule(ctx, *in.ParentModuleID)
		if err != nil {
			return pgrepo.ModuleRecord{}, err
		}
		if parent.CourseID != in.CourseID {
			return pgrepo.ModuleRecord{}, ErrValidation
		}
	}

	rec, err := s.modules.Create(ctx, pgrepo.CreateModuleParams{
		CourseID:       in.CourseID,
		ParentModuleID: in.ParentModuleID,
		Title:          in.Title,
		Description:    in.Description,
		Order:          in.Order,
	})
	if err != nil {
		if errors.Is(err, pgrepo.ErrModuleContentConflict) {
			return pgrepo.ModuleRecord{}, ErrModuleConflict
		}
		if errors.Is(err, pgrepo.ErrModuleNotFound) {
			return pgrepo.ModuleRecord{}, ErrModuleNotFound
		}
		return pgrepo.ModuleRecord{}, fmt.Errorf("create module: %w", err)
	}

	return rec, nil
}

func (s *Service) ListModules(ctx context.Context, actor Actor, courseID int64) ([]pgrepo.ModuleRecord, error) {
	course, err := s.findCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	if err := CheckAccess(actor, ActionRead, CourseResource{OwnerID: course.OwnerID, Status: course.Status}); err != nil {
		return nil, err
	}

	records, err := s.modules.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}

	if actor.Role == string(enums.RoleAdmin) || actor.UserID == course.OwnerID {
		return records, nil
	}

	visible := records[:0]
	for _, rec := range records {
		if rec.Status == enums.ObjectStatusPublished {
			visible = append(visible, rec)
		}
	}
	return visible, nil
}

func (s *Service) UpdateModuleStatus(ctx context.Context, actor Actor, moduleID int64, status enums.ObjectStatus) (pgrepo.ModuleRecord, error) {
	module, err := s.findModule(ctx, moduleID)
	if err != nil {
		return pgrepo.ModuleRecord{}, err
	}
	course, err := s.findCourse(ctx, module.CourseID)
	if err != nil {
		return pgrepo.ModuleRecord{}, err
	}

	if err := CheckAccess(actor, ActionWrite, ModuleResource{
		CourseOwnerID: course.OwnerID,
		Status:        module.Status,
		CourseStatus:  course.Status,
	}); err != nil {
		if !errors.Is(err, ErrArchived) || status == enums.ObjectStatusArchived {
			return pgrepo.ModuleRecord{}, err
		}
	}
	if !status.Valid() {
		return pgrepo.ModuleRecord{}, ErrValidation
	}

	updated, err := s.modules.UpdateStatus(ctx, moduleID, status)
	if err != nil {
		if errors.Is(err, pgrepo.ErrModuleNotFound) {
			return pgrepo.ModuleRecord{}, ErrModuleNotFound
		}
		return pgrepo.ModuleRecord{}, fmt.Errorf("update module status: %w", err)
	}

	return updated, nil
}

// DeleteModule removes the module with everything nested under it.
func (s *Service) DeleteModule(ctx context.Context, actor Actor, moduleID int64) error {
	module, err := s.findModule(ctx, moduleID)
	if err != nil {
		return err
	}
	course, err := s.findCourse(ctx, module.CourseID)
	if err != nil {
		return err
	}

	if err := CheckAccess(actor, ActionWrite, ModuleResource{
		CourseOwnerID: course.OwnerID,
		Status:        module.Status,
		CourseStatus:  course.Status,
	}); err != nil {
		return err
	}

	if err := s.modules.Delete(ctx, moduleID); err != nil {
		if errors.Is(err, pgrepo.ErrModuleNotFound) {
			return ErrModuleNotFound
		}
		return fmt.Errorf("delete module: %w", err)
	}

	return nil
}

type CreateLessonInput struct {
	CourseID int64
	ModuleID *int64
	Title    string
	Summary  string
	Order    int
	Duration *int
}

func (s *Service) CreateLesson(ctx context.Context, actor Actor, in CreateLessonInput) (pgrepo.LessonRecord, error) {
	course, err := s.findCourse(ctx, in.CourseID)
	if err != nil {
		return pgrepo.LessonRecord{}, err
	}

	if err := CheckAccess(actor, ActionWrite, CourseResource{OwnerID: course.OwnerID, Status: course.Status}); err != nil {
		return pgrepo.LessonRecord{}, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return pgrepo.LessonRecord{}, ErrValidation
	}
	if in.ModuleID != nil {
		module, err := s.findModule(ctx, *in.ModuleID)
		if err != nil {
			return pgrepo.LessonRecord{}, err
		}
		if module.CourseID != in.CourseID {
			return pgrepo.LessonRecord{}, ErrValidation
		}
	}

	rec, err := s.lessons.Create(ctx, pgrepo.CreateLessonParams{
		CourseID: in.CourseID,
		ModuleID: in.ModuleID,
		Title:    in.Title,
		Summary:  in.Summary,
		Order:    in.Order,
		Duration: in.Duration,
	})
	if err != nil {
		if errors.Is(err, pgrepo.ErrModuleContentConflict) {
			return pgrepo.LessonRecord{}, ErrModuleConflict
		}
		if errors.Is(err, pgrepo.ErrModuleNotFound) {
			return pgrepo.LessonRecord{}, ErrModuleNotFound
		}
		return pgrepo.LessonRecord{}, fmt.Errorf("create lesson: %w", err)
	}

	return rec, nil
}

func (s *Service) GetLesson(ctx context.Context, actor Actor, lessonID int64) (pgrepo.LessonRecord, error) {
	lesson, err := s.findLesson(ctx, lessonID)
	if err != nil {
		return pgrepo.LessonRecord{}, err
	}
	course, err := s.findCourse(ctx, lesson.CourseID)
	if err != nil {
		return pgrepo.LessonRecord{}, err
	}

	if err := CheckAccess(actor, ActionRead, LessonResource{
		CourseOwnerID: course.OwnerID,
		Status:        lesson.Status,
		CourseStatus:  course.Status,
	}); err != nil {
		return pgrepo.LessonRecord{}, err
	}

	return lesson, nil
}

func (s *Service) ListLessons(ctx context.Context, actor Actor, moduleID int64) ([]pgrepo.LessonRecord, error) {
	module, err := s.findModule(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	course, err := s.findCourse(ctx, module.CourseID)
	if err != nil {
		return nil, err
	}

	if err := CheckAccess(actor, ActionRead, ModuleResource{
		CourseOwnerID: course.OwnerID,
		Status:        module.Status,
		CourseStatus:  course.Status,
	}); err != nil {
		return nil, err
	}

	records, err := s.lessons.ListByModule(ctx, moduleID)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}

	if actor.Role == string(enums.RoleAdmin) || actor.UserID == course.OwnerID {
		return records, nil
	}

	visible := records[:0]
	for _, rec := range records {
		if rec.Status == enums.ObjectStatusPublished {
			visible = append(visible, rec)
		}
	}
	return visible, nil
}

func (s *Service) UpdateLessonStatus(ctx context.Context, actor Actor, lessonID int64, status enums.ObjectStatus) (pgrepo.LessonRecord, error) {
	lesson, err := s.findLesson(ctx, lessonID)
	if err != nil {
		return pgrepo.LessonRecord{}, err
	}
	course, err := s.findCourse(ctx, lesson.CourseID)
	if err != nil {
		return pgrepo.LessonRecord{}, err
	}

	if err := CheckAccess(actor, ActionWrite, LessonResource{
		CourseOwnerID: course.OwnerID,
		Status:        lesson.Status,
		CourseStatus:  course.Status,
	}); err != nil {
		if !errors.Is(err, ErrArchived) || status == enums.ObjectStatusArchived {
			return pgrepo.LessonRecord{}, err
		}
	}
	if !status.Valid() {
		return pgrepo.LessonRecord{}, ErrValidation
	}

	updated, err := s.lessons.UpdateStatus(ctx, lessonID, status)
	if err != nil {
		if errors.Is(err, pgrepo.ErrLessonNotFound) {
			return pgrepo.LessonRecord{}, ErrLessonNotFound
		}
		return pgrepo.LessonRecord{}, fmt.Errorf("update lesson status: %w", err)
	}

	return updated, nil
}

func (s *Service) DeleteLesson(ctx context.Context, actor Actor, lessonID int64) error {
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

	if err := s.lessons.Delete(ctx, lessonID); err != nil {
		if errors.Is(err, pgrepo.ErrLessonNotFound) {
			return ErrLessonNotFound
		}
		return fmt.Errorf("delete lesson: %w", err)
	}

	return nil
}

func (s *Service) findCourse(ctx context.Context, courseID int64) (pgrepo.CourseRecord, error) {
	if courseID <= 0 {
		return pgrepo.CourseRecord{}, ErrValidation
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrCourseNotFound) {
			return pgrepo.CourseRecord{}, ErrCourseNotFound
		}
		return pgrepo.CourseRecord{}, fmt.Errorf("find course: %w", err)
	}
	return course, nil
}

func (s *Service) findModule(ctx context.Context, moduleID int64) (pgrepo.ModuleRecord, error) {
	if moduleID <= 0 {
		return pgrepo.ModuleRecord{}, ErrValidation
	}
	module, err := s.modules.FindByID(ctx, moduleID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrModuleNotFound) {
			return pgrepo.ModuleRecord{}, ErrModuleNotFound
		}
		return pgrepo.ModuleRecord{}, fmt.Errorf("find module: %w", err)
	}
	return module, nil
}

func (s *Service) findLesson(ctx context.Context, lessonID int64) (pgrepo.LessonRecord, error) {
	if lessonID <= 0 {
		return pgrepo.LessonRecord{}, ErrValidation
	}
	lesson, err := s.lessons.FindByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrLessonNotFound) {
			return pgrepo.LessonRecord{}, ErrLessonNotFound
		}
		return pgrepo.LessonRecord{}, fmt.Errorf("find lesson: %w", err)
	}
	return lesson, nil
}

func (s *Service) lessonWithCourse(ctx context.Context, lessonID int64) (pgrepo.LessonRecord, pgrepo.CourseRecord, error) {
	lesson, err := s.findLesson(ctx, lessonID)
	if err != nil {
		return pgrepo.LessonRecord{}, pgrepo.CourseRecord{}, err
	}
	course, err := s.findCourse(ctx, lesson.CourseID)
	if err != nil {
		return pgrepo.LessonRecord{}, pgrepo.CourseRecord{}, err
	}
	return lesson, course, nil
}

func isUnarchive(status *enums.ObjectStatus) bool {
	return status != nil && *status != enums.ObjectStatusArchived
}
