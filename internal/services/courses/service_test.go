package courses_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/delawer33/edumaster/internal/domain/enums"
	pgrepo "github.com/delawer33/edumaster/internal/repo/postgres"
	coursesvc "github.com/delawer33/edumaster/internal/services/courses"
)

func TestCreateCourseRequiresTeacherRole(t *testing.T) {
	svc, _ := newCoursesServiceForTest()

	_, err := svc.CreateCourse(context.Background(), studentActor(), coursesvc.CreateCourseInput{
		Title: "Go from scratch",
		Price: 49.9,
	})
	if !errors.Is(err, coursesvc.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	rec, err := svc.CreateCourse(context.Background(), teacherActor(), coursesvc.CreateCourseInput{
		Title: "Go from scratch",
		Price: 49.9,
	})
	if err != nil {
		t.Fatalf("create course: %v", err)
	}
	if rec.Status != enums.ObjectStatusDraft {
		t.Fatalf("new course should be draft, got %q", rec.Status)
	}
	if rec.OwnerID != teacherActor().UserID {
		t.Fatalf("owner should be the creator, got %d", rec.OwnerID)
	}
}

func TestGetCourseVisibility(t *testing.T) {
	svc, env := newCoursesServiceForTest()
	draft := env.addCourse(teacherActor().UserID, enums.ObjectStatusDraft)
	published := env.addCourse(teacherActor().UserID, enums.ObjectStatusPublished)

	if _, err := svc.GetCourse(context.Background(), studentActor(), draft.ID); !errors.Is(err, coursesvc.ErrForbidden) {
		t.Fatalf("student reading draft: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.GetCourse(context.Background(), studentActor(), published.ID); err != nil {
		t.Fatalf("student reading published: %v", err)
	}
	if _, err := svc.GetCourse(context.Background(), teacherActor(), draft.ID); err != nil {
		t.Fatalf("owner reading own draft: %v", err)
	}
	if _, err := svc.GetCourse(context.Background(), studentActor(), 999); !errors.Is(err, coursesvc.ErrCourseNotFound) {
		t.Fatalf("missing course: expected ErrCourseNotFound, got %v", err)
	}
}

func TestUpdateCourseArchivedIsFrozen(t *testing.T) {
	svc, env := newCoursesServiceForTest()
	archived := env.addCourse(teacherActor().UserID, enums.ObjectStatusArchived)

	title := "New title"
	if _, err := svc.UpdateCourse(context.Background(), teacherActor(), archived.ID, coursesvc.UpdateCourseInput{
		Title: &title,
	}); !errors.Is(err, coursesvc.ErrArchived) {
		t.Fatalf("editing archived course: expected ErrArchived, got %v", err)
	}

	// Moving it back to draft is the one permitted write.
	draft := enums.ObjectStatusDraft
	updated, err := svc.UpdateCourse(context.Background(), teacherActor(), archived.ID, coursesvc.UpdateCourseInput{
		Status: &draft,
	})
	if err != nil {
		t.Fatalf("unarchive: %v", err)
	}
	if updated.Status != enums.ObjectStatusDraft {
		t.Fatalf("expected draft after unarchive, got %q", updated.Status)
	}
}

func TestCreateModuleChecksOwnership(t *testing.T) {
	svc, env := newCoursesServiceForTest()
	course := env.addCourse(teacherActor().UserID, enums.ObjectStatusDraft)

	if _, err := svc.CreateModule(context.Background(), studentActor(), coursesvc.CreateModuleInput{
		CourseID: course.ID,
		Title:    "Basics",
	}); !errors.Is(err, coursesvc.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	rec, err := svc.CreateModule(context.Background(), teacherActor(), coursesvc.CreateModuleInput{
		CourseID: course.ID,
		Title:    "Basics",
	})
	if err != nil {
		t.Fatalf("create module: %v", err)
	}
	if rec.ContentType != enums.ModuleContentEmpty {
		t.Fatalf("new module should be empty, got %q", rec.ContentType)
	}
}

func TestCreateModuleRejectsCrossCourseParent(t *testing.T) {
	svc, env := newCoursesServiceForTest()
	courseA := env.addCourse(teacherActor().UserID, enums.ObjectStatusDraft)
	courseB := env.addCourse(teacherActor().UserID, enums.ObjectStatusDraft)
	parent := env.addModule(courseA.ID, enums.ModuleContentEmpty)

	if _, err := svc.CreateModule(context.Background(), teacherActor(), coursesvc.CreateModuleInput{
		CourseID:       courseB.ID,
		ParentModuleID: &parent.ID,
		Title:          "Nested",
	}); !errors.Is(err, coursesvc.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCreateLessonInModuleWithSubmodules(t *testing.T) {
	svc, env := newCoursesServiceForTest()
	course := env.addCourse(teacherActor().UserID, enums.ObjectStatusDraft)
	parent := env.addModule(course.ID, enums.ModuleContentModules)

	if _, err := svc.CreateLesson(context.Background(), teacherActor(), coursesvc.CreateLessonInput{
		CourseID: course.ID,
		ModuleID: &parent.ID,
		Title:    "Lesson 1",
	}); !errors.Is(err, coursesvc.ErrModuleConflict) {
		t.Fatalf("expected ErrModuleConflict, got %v", err)
	}
}

func TestListModulesHidesDraftsFromStudents(t *testing.T) {
	svc, env := newCoursesServiceForTest()
	course := env.addCourse(teacherActor().UserID, enums.ObjectStatusPublished)
	env.addModuleWithStatus(course.ID, enums.ObjectStatusPublished)
	env.addModuleWithStatus(course.ID, enums.ObjectStatusDraft)

	visible, err := svc.ListModules(context.Background(), studentActor(), course.ID)
	if err != nil {
		t.Fatalf("list modules as student: %v", err)
	}
	if len(visible) != 1 {
		t.Fatalf("student should see only published modules, got %d", len(visible))
	}

	all, err := svc.ListModules(context.Background(), teacherActor(), course.ID)
	if err != nil {
		t.Fatalf("list modules as owner: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("owner should see all modules, got %d", len(all))
	}
}

func teacherActor() coursesvc.Actor {
	return coursesvc.Actor{UserID: 10, Role: string(enums.RoleTeacher)}
}

func studentActor() coursesvc.Actor {
	return coursesvc.Actor{UserID: 20, Role: string(enums.RoleStudent)}
}

type coursesEnv struct {
	nextID  int64
	courses map[int64]pgrepo.CourseRecord
	modules map[int64]pgrepo.ModuleRecord
	lessons map[int64]pgrepo.LessonRecord
	blocks  map[int64]pgrepo.LessonBlockRecord
}

func newCoursesServiceForTest() (*coursesvc.Service, *coursesEnv) {
	env := &coursesEnv{
		nextID:  1,
		courses: make(map[int64]pgrepo.CourseRecord),
		modules: make(map[int64]pgrepo.ModuleRecord),
		lessons: make(map[int64]pgrepo.LessonRecord),
		blocks:  make(map[int64]pgrepo.LessonBlockRecord),
	}
	svc := coursesvc.NewService(coursesvc.Dependencies{
		Courses: (*stubCourseStore)(env),
		Modules: (*stubModuleStore)(env),
		Lessons: (*stubLessonStore)(env),
		Blocks:  (*stubLessonBlockStore)(env),
	})
	return svc, env
}

func (e *coursesEnv) id() int64 {
	id := e.nextID
	e.nextID++
	return id
}

func (e *coursesEnv) addCourse(ownerID int64, status enums.ObjectStatus) pgrepo.CourseRecord {
	rec := pgrepo.CourseRecord{
		ID:        e.id(),
		Title:     "Course",
		Price:     10,
		Status:    status,
		OwnerID:   ownerID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	e.courses[rec.ID] = rec
	return rec
}

func (e *coursesEnv) addModule(courseID int64, contentType enums.ModuleContentType) pgrepo.ModuleRecord {
	rec := pgrepo.ModuleRecord{
		ID:          e.id(),
		CourseID:    courseID,
		Title:       "Module",
		Order:       1,
		Status:      enums.ObjectStatusDraft,
		ContentType: contentType,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	e.modules[rec.ID] = rec
	return rec
}

func (e *coursesEnv) addModuleWithStatus(courseID int64, status enums.ObjectStatus) pgrepo.ModuleRecord {
	rec := e.addModule(courseID, enums.ModuleContentEmpty)
	rec.Status = status
	e.modules[rec.ID] = rec
	return rec
}

func (e *coursesEnv) addLesson(courseID int64, moduleID *int64, status enums.ObjectStatus) pgrepo.LessonRecord {
	rec := pgrepo.LessonRecord{
		ID:        e.id(),
		CourseID:  courseID,
		ModuleID:  moduleID,
		Title:     "Lesson",
		Order:     1,
		Status:    status,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	e.lessons[rec.ID] = rec
	if moduleID != nil {
		module := e.modules[*moduleID]
		module.ContentType = enums.ModuleContentLessons
		e.modules[*moduleID] = module
	}
	return rec
}

type stubCourseStore coursesEnv

func (s *stubCourseStore) Create(_ context.Context, p pgrepo.CreateCourseParams) (pgrepo.CourseRecord, error) {
	env := (*coursesEnv)(s)
	rec := pgrepo.CourseRecord{
		ID:          env.id(),
		Title:       strings.TrimSpace(p.Title),
		Description: p.Description,
		Price:       p.Price,
		Status:      enums.ObjectStatusDraft,
		OwnerID:     p.OwnerID,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	env.courses[rec.ID] = rec
	return rec, nil
}

func (s *stubCourseStore) FindByID(_ context.Context, courseID int64) (pgrepo.CourseRecord, error) {
	rec, ok := s.courses[courseID]
	if !ok {
		return pgrepo.CourseRecord{}, pgrepo.ErrCourseNotFound
	}
	return rec, nil
}

func (s *stubCourseStore) List(_ context.Context, statuses []enums.ObjectStatus, ownerID int64) ([]pgrepo.CourseRecord, error) {
	var out []pgrepo.CourseRecord
	for _, rec := range s.courses {
		matched := false
		for _, status := range statuses {
			if rec.Status == status {
				matched = true
				break
			}
		}
		if matched || (ownerID > 0 && rec.OwnerID == ownerID) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *stubCourseStore) Update(_ context.Context, courseID int64, p pgrepo.UpdateCourseParams) (pgrepo.CourseRecord, error) {
	rec, ok := s.courses[courseID]
	if !ok {
		return pgrepo.CourseRecord{}, pgrepo.ErrCourseNotFound
	}
	if p.Title != nil {
		rec.Title = *p.Title
	}
	if p.Description != nil {
		rec.Description = *p.Description
	}
	if p.Price != nil {
		rec.Price = *p.Price
	}
	if p.Status != nil {
		rec.Status = *p.Status
	}
	rec.UpdatedAt = time.Now()
	s.courses[courseID] = rec
	return rec, nil
}

func (s *stubCourseStore) Delete(_ context.Context, courseID int64) error {
	if _, ok := s.courses[courseID]; !ok {
		return pgrepo.ErrCourseNotFound
	}
	delete(s.courses, courseID)
	return nil
}

type stubModuleStore coursesEnv

func (s *stubModuleStore) Create(_ context.Context, p pgrepo.CreateModuleParams) (pgrepo.ModuleRecord, error) {
	env := (*coursesEnv)(s)
	if p.ParentModuleID != nil {
		parent, ok := env.modules[*p.ParentModuleID]
		if !ok {
			return pgrepo.ModuleRecord{}, pgrepo.ErrModuleNotFound
		}
		if parent.ContentType == enums.ModuleContentLessons {
			return pgrepo.ModuleRecord{}, pgrepo.ErrModuleContentConflict
		}
		parent.ContentType = enums.ModuleContentModules
		env.modules[parent.ID] = parent
	}
	rec := pgrepo.ModuleRecord{
		ID:             env.id(),
		CourseID:       p.CourseID,
		ParentModuleID: p.ParentModuleID,
		Title:          strings.TrimSpace(p.Title),
		Order:          p.Order,
		Status:         enums.ObjectStatusDraft,
		ContentType:    enums.ModuleContentEmpty,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	env.modules[rec.ID] = rec
	return rec, nil
}

func (s *stubModuleStore) FindByID(_ context.Context, moduleID int64) (pgrepo.ModuleRecord, error) {
	rec, ok := s.modules[moduleID]
	if !ok {
		return pgrepo.ModuleRecord{}, pgrepo.ErrModuleNotFound
	}
	return rec, nil
}

func (s *stubModuleStore) ListByCourse(_ context.Context, courseID int64) ([]pgrepo.ModuleRecord, error) {
	var out []pgrepo.ModuleRecord
	for _, rec := range s.modules {
		if rec.CourseID == courseID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *stubModuleStore) UpdateStatus(_ context.Context, moduleID int64, status enums.ObjectStatus) (pgrepo.ModuleRecord, error) {
	rec, ok := s.modules[moduleID]
	if !ok {
		return pgrepo.ModuleRecord{}, pgrepo.ErrModuleNotFound
	}
	rec.Status = status
	rec.UpdatedAt = time.Now()
	s.modules[moduleID] = rec
	return rec, nil
}

func (s *stubModuleStore) Delete(_ context.Context, moduleID int64) error {
	env := (*coursesEnv)(s)
	rec, ok := env.modules[moduleID]
	if !ok {
		return pgrepo.ErrModuleNotFound
	}
	delete(env.modules, moduleID)
	for id, sub := range env.modules {
		if sub.ParentModuleID != nil && *sub.ParentModuleID == moduleID {
			delete(env.modules, id)
		}
	}
	for id, lesson := range env.lessons {
		if lesson.ModuleID != nil && *lesson.ModuleID == moduleID {
			delete(env.lessons, id)
		}
	}
	if rec.ParentModuleID != nil {
		env.resetModuleIfChildless(*rec.ParentModuleID)
	}
	return nil
}

func (e *coursesEnv) resetModuleIfChildless(moduleID int64) {
	parent, ok := e.modules[moduleID]
	if !ok {
		return
	}
	for _, sub := range e.modules {
		if sub.ParentModuleID != nil && *sub.ParentModuleID == moduleID {
			return
		}
	}
	for _, lesson := range e.lessons {
		if lesson.ModuleID != nil && *lesson.ModuleID == moduleID {
			return
		}
	}
	parent.ContentType = enums.ModuleContentEmpty
	e.modules[moduleID] = parent
}

type stubLessonStore coursesEnv

func (s *stubLessonStore) Create(_ context.Context, p pgrepo.CreateLessonParams) (pgrepo.LessonRecord, error) {
	env := (*coursesEnv)(s)
	if p.ModuleID != nil {
		module, ok := env.modules[*p.ModuleID]
		if !ok {
			return pgrepo.LessonRecord{}, pgrepo.ErrModuleNotFound
		}
		if module.ContentType == enums.ModuleContentModules {
			return pgrepo.LessonRecord{}, pgrepo.ErrModuleContentConflict
		}
		module.ContentType = enums.ModuleContentLessons
		env.modules[module.ID] = module
	}
	rec := pgrepo.LessonRecord{
		ID:        env.id(),
		CourseID:  p.CourseID,
		ModuleID:  p.ModuleID,
		Title:     strings.TrimSpace(p.Title),
		Order:     p.Order,
		Duration:  p.Duration,
		Status:    enums.ObjectStatusDraft,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	env.lessons[rec.ID] = rec
	return rec, nil
}

func (s *stubLessonStore) FindByID(_ context.Context, lessonID int64) (pgrepo.LessonRecord, error) {
	rec, ok := s.lessons[lessonID]
	if !ok {
		return pgrepo.LessonRecord{}, pgrepo.ErrLessonNotFound
	}
	return rec, nil
}

func (s *stubLessonStore) ListByModule(_ context.Context, moduleID int64) ([]pgrepo.LessonRecord, error) {
	var out []pgrepo.LessonRecord
	for _, rec := range s.lessons {
		if rec.ModuleID != nil && *rec.ModuleID == moduleID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *stubLessonStore) ListByCourse(_ context.Context, courseID int64) ([]pgrepo.LessonRecord, error) {
	var out []pgrepo.LessonRecord
	for _, rec := range s.lessons {
		if rec.CourseID == courseID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubLessonStore) UpdateStatus(_ context.Context, lessonID int64, status enums.ObjectStatus) (pgrepo.LessonRecord, error) {
	rec, ok := s.lessons[lessonID]
	if !ok {
		return pgrepo.LessonRecord{}, pgrepo.ErrLessonNotFound
	}
	rec.Status = status
	rec.UpdatedAt = time.Now()
	s.lessons[lessonID] = rec
	return rec, nil
}

func (s *stubLessonStore) Delete(_ context.Context, lessonID int64) error {
	env := (*coursesEnv)(s)
	rec, ok := env.lessons[lessonID]
	if !ok {
		return pgrepo.ErrLessonNotFound
	}
	delete(env.lessons, lessonID)
	for id, block := range env.blocks {
		if block.LessonID == lessonID {
			delete(env.blocks, id)
		}
	}
	if rec.ModuleID != nil {
		env.resetModuleIfChildless(*rec.ModuleID)
	}
	return nil
}

type stubLessonBlockStore coursesEnv

func (s *stubLessonBlockStore) Create(_ context.Context, p pgrepo.CreateLessonBlockParams) (pgrepo.LessonBlockRecord, error) {
	env := (*coursesEnv)(s)
	if _, ok := env.lessons[p.LessonID]; !ok {
		return pgrepo.LessonBlockRecord{}, pgrepo.ErrLessonNotFound
	}
	order := 0
	for _, block := range env.blocks {
		if block.LessonID == p.LessonID && block.Order > order {
			order = block.Order
		}
	}
	rec := pgrepo.LessonBlockRecord{
		ID:        env.id(),
		LessonID:  p.LessonID,
		Order:     order + 1,
		Type:      p.Type,
		Content:   p.Content,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	env.blocks[rec.ID] = rec
	return rec, nil
}

func (s *stubLessonBlockStore) FindByID(_ context.Context, blockID int64) (pgrepo.LessonBlockRecord, error) {
	rec, ok := s.blocks[blockID]
	if !ok {
		return pgrepo.LessonBlockRecord{}, pgrepo.ErrLessonBlockNotFound
	}
	return rec, nil
}

func (s *stubLessonBlockStore) ListByLesson(_ context.Context, lessonID int64) ([]pgrepo.LessonBlockRecord, error) {
	var out []pgrepo.LessonBlockRecord
	for _, rec := range s.blocks {
		if rec.LessonID == lessonID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *stubLessonBlockStore) Update(_ context.Context, blockID int64, p pgrepo.UpdateLessonBlockParams) (pgrepo.LessonBlockRecord, error) {
	rec, ok := s.blocks[blockID]
	if !ok {
		return pgrepo.LessonBlockRecord{}, pgrepo.ErrLessonBlockNotFound
	}
	if p.Type != nil {
		rec.Type = *p.Type
	}
	if p.Content != nil {
		rec.Content = *p.Content
	}
	if p.Order != nil {
		rec.Order = *p.Order
	}
	rec.UpdatedAt = time.Now()
	s.blocks[blockID] = rec
	return rec, nil
}

func (s *stubLessonBlockStore) Delete(_ context.Context, blockID int64) error {
	if _, ok := s.blocks[blockID]; !ok {
		return pgrepo.ErrLessonBlockNotFound
	}
	delete(s.blocks, blockID)
	return nil
}
