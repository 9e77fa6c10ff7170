package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/delawer33/edumaster/internal/domain/enums"
	pgrepo "github.com/delawer33/edumaster/internal/repo/postgres"
	authsvc "github.com/delawer33/edumaster/internal/services/auth"
	coursesvc "github.com/delawer33/edumaster/internal/services/courses"
	"github.com/delawer33/edumaster/internal/transport/http/dto"
	httperrors "github.com/delawer33/edumaster/internal/transport/http/errors"
)

type CourseHandler struct {
	service *coursesvc.Service
}

func NewCourseHandler(service *coursesvc.Service) *CourseHandler {
	return &CourseHandler{service: service}
}

func (h *CourseHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req dto.CreateCourseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	rec, err := h.service.CreateCourse(r.Context(), actor, coursesvc.CreateCourseInput{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
	})
	if err != nil {
		handleCoursesError(w, err)
		return
	}

	httperrors.Write(w, http.StatusCreated, courseResponse(rec))
}

func (h *CourseHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	records, err := h.service.ListCourses(r.Context(), actor)
	if err != nil {
		handleCoursesError(w, err)
		return
	}

	courses := make([]dto.CourseResponse, 0, len(records))
	for _, rec := range records {
		courses = append(courses, courseResponse(rec))
	}
	httperrors.Write(w, http.StatusOK, dto.CourseListResponse{Courses: courses})
}

func (h *CourseHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	courseID, ok := pathID(w, r, "course_id")
	if !ok {
		return
	}

	rec, err := h.service.GetCourse(r.Context(), actor, courseID)
	if err != nil {
		handleCoursesError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, courseResponse(rec))
}

func (h *CourseHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	courseID, ok := pathID(w, r, "course_id")
	if !ok {
		return
	}

	var req dto.UpdateCourseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	var status *enums.ObjectStatus
	if req.Status != nil {
		s := enums.ObjectStatus(*req.Status)
		if !s.Valid() {
			writeBadRequest(w, "VALIDATION_ERROR", "status must be draft, published or archived")
			return
		}
		status = &s
	}

	rec, err := h.service.UpdateCourse(r.Context(), actor, courseID, coursesvc.UpdateCourseInput{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Status:      status,
	})
	if err != nil {
		handleCoursesError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, courseResponse(rec))
}

func (h *CourseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	courseID, ok := pathID(w, r, "course_id")
	if !ok {
		return
	}

	if err := h.service.DeleteCourse(r.Context(), actor, courseID); err != nil {
		handleCoursesError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CourseHandler) CreateModule(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	courseID, ok := pathID(w, r, "course_id")
	if !ok {
		return
	}

	var req dto.CreateModuleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	rec, err := h.service.CreateModule(r.Context(), actor, coursesvc.CreateModuleInput{
		CourseID:       courseID,
		ParentModuleID: req.ParentModuleID,
		Title:          req.Title,
		Description:    req.Description,
		Order:          req.Order,
	})
	if err != nil {
		handleCoursesError(w, err)
		return
	}

	httperrors.Write(w, http.StatusCreated, moduleResponse(rec))
}

func (h *CourseHandler) ListModules(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	courseID, ok := pathID(w, r, "course_id")
	if !ok {
		return
	}

	records, err := h.service.ListModules(r.Context(), actor, courseID)
	if err != nil {
		handleCoursesError(w, err)
		return
	}

	modules := make([]dto.ModuleResponse, 0, len(records))
	for _, rec := range records {
		modules = append(modules, moduleResponse(rec))
	}
	httperrors.Write(w, http.StatusOK, dto.ModuleListResponse{Modules: modules})
}

func (h *CourseHandler) UpdateModuleStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	moduleID, ok := pathID(w, r, "module_id")
	if !ok {
		return
	}

	status, ok := decodeStatus(w, r)
	if !ok {
		return
	}

	rec, err := h.service.UpdateModuleStatus(r.Context(), actor, moduleID, status)
	if err != nil {
		handleCoursesError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, moduleResponse(rec))
}

func (h *CourseHandler) CreateLesson(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	courseID, ok := pathID(w, r, "course_id")
	if !ok {
		return
	}

	var req dto.CreateLessonRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	rec, err := h.service.CreateLesson(r.Context(), actor, coursesvc.CreateLessonInput{
		CourseID: courseID,
		ModuleID: req.ModuleID,
		Title:    req.Title,
		Summary:  req.Summary,
		Order:    req.Order,
		Duration: req.Duration,
	})
	if err != nil {
		handleCoursesError(w, err)
		return
	}

	httperrors.Write(w, http.StatusCreated, lessonResponse(rec))
}

func (h *CourseHandler) ListLessons(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	moduleID, ok := pathID(w, r, "module_id")
	if !ok {
		return
	}

	records, err := h.service.ListLessons(r.Context(), actor, moduleID)
	if err != nil {
		handleCoursesError(w, err)
		return
	}

	lessons := make([]dto.LessonResponse, 0, len(records))
	for _, rec := range records {
		lessons = append(lessons, lessonResponse(rec))
	}
	httperrors.Write(w, http.StatusOK, dto.LessonListResponse{Lessons: lessons})
}

// GetLesson returns the lesson together with its content blocks.
func (h *CourseHandler) GetLesson(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	lessonID, ok := pathID(w, r, "lesson_id")
	if !ok {
		return
	}

	content, err := h.service.GetLessonContent(r.Context(), actor, lessonID)
	if err != nil {
		handleCoursesError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, lessonDetailResponse(content))
}

func (h *CourseHandler) DeleteLesson(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	lessonID, ok := pathID(w, r, "lesson_id")
	if !ok {
		return
	}

	if err := h.service.DeleteLesson(r.Context(), actor, lessonID); err != nil {
		handleCoursesError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CourseHandler) DeleteModule(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	moduleID, ok := pathID(w, r, "module_id")
	if !ok {
		return
	}

	if err := h.service.DeleteModule(r.Context(), actor, moduleID); err != nil {
		handleCoursesError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CourseHandler) CreateLessonBlock(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	lessonID, ok := pathID(w, r, "lesson_id")
	if !ok {
		return
	}

	var req dto.CreateLessonBlockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	blockType := enums.LessonBlockType(req.Type)
	if !blockType.Valid() {
		writeBadRequest(w, "VALIDATION_ERROR", "unknown lesson block type")
		return
	}

	rec, err := h.service.CreateLessonBlock(r.Context(), actor, coursesvc.CreateLessonBlockInput{
		LessonID: lessonID,
		Type:     blockType,
		Content:  blockContent(req.Content),
	})
	if err != nil {
		handleCoursesError(w, err)
		return
	}

	httperrors.Write(w, http.StatusCreated, lessonBlockResponse(rec))
}

func (h *CourseHandler) UpdateLessonBlock(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	lessonID, ok := pathID(w, r, "lesson_id")
	if !ok {
		return
	}
	blockID, ok := pathID(w, r, "block_id")
	if !ok {
		return
	}

	var req dto.UpdateLessonBlockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	var in coursesvc.UpdateLessonBlockInput
	if req.Type != nil {
		blockType := enums.LessonBlockType(*req.Type)
		if !blockType.Valid() {
			writeBadRequest(w, "VALIDATION_ERROR", "unknown lesson block type")
			return
		}
		in.Type = &blockType
	}
	if req.Content != nil {
		content := blockContent(*req.Content)
		in.Content = &content
	}
	in.Order = req.Order

	rec, err := h.service.UpdateLessonBlock(r.Context(), actor, lessonID, blockID, in)
	if err != nil {
		handleCoursesError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, lessonBlockResponse(rec))
}

func (h *CourseHandler) DeleteLessonBlock(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	lessonID, ok := pathID(w, r, "lesson_id")
	if !ok {
		return
	}
	blockID, ok := pathID(w, r, "block_id")
	if !ok {
		return
	}

	if err := h.service.DeleteLessonBlock(r.Context(), actor, lessonID, blockID); err != nil {
		handleCoursesError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Content returns the nested module and lesson layout of a course.
func (h *CourseHandler) Content(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	courseID, ok := pathID(w, r, "course_id")
	if !ok {
		return
	}

	content, err := h.service.GetCourseContent(r.Context(), actor, courseID)
	if err != nil {
		handleCoursesError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, courseContentResponse(content))
}

func (h *CourseHandler) UpdateLessonStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	lessonID, ok := pathID(w, r, "lesson_id")
	if !ok {
		return
	}

	status, ok := decodeStatus(w, r)
	if !ok {
		return
	}

	rec, err := h.service.UpdateLessonStatus(r.Context(), actor, lessonID, status)
	if err != nil {
		handleCoursesError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, lessonResponse(rec))
}

func handleCoursesError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, coursesvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "request validation failed")
	case errors.Is(err, coursesvc.ErrForbidden):
		writeForbidden(w, "FORBIDDEN", "access denied")
	case errors.Is(err, coursesvc.ErrArchived):
		httperrors.Write(w, http.StatusConflict, httperrors.APIError{
			Code:    "RESOURCE_ARCHIVED",
			Message: "archived resources cannot be modified",
		})
	case errors.Is(err, coursesvc.ErrModuleConflict):
		httperrors.Write(w, http.StatusConflict, httperrors.APIError{
			Code:    "MODULE_CONTENT_CONFLICT",
			Message: "a module cannot hold both submodules and lessons",
		})
	case errors.Is(err, coursesvc.ErrCourseNotFound):
		writeNotFound(w, "COURSE_NOT_FOUND", "course not found")
	case errors.Is(err, coursesvc.ErrModuleNotFound):
		writeNotFound(w, "MODULE_NOT_FOUND", "module not found")
	case errors.Is(err, coursesvc.ErrLessonNotFound):
		writeNotFound(w, "LESSON_NOT_FOUND", "lesson not found")
	case errors.Is(err, coursesvc.ErrLessonBlockNotFound):
		writeNotFound(w, "LESSON_BLOCK_NOT_FOUND", "lesson block not found")
	default:
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}

func actorFromRequest(w http.ResponseWriter, r *http.Request) (coursesvc.Actor, bool) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return coursesvc.Actor{}, false
	}
	return coursesvc.Actor{UserID: identity.UserID, Role: identity.Role}, true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "VALIDATION_ERROR", name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func decodeStatus(w http.ResponseWriter, r *http.Request) (enums.ObjectStatus, bool) {
	var req dto.UpdateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return "", false
	}
	status := enums.ObjectStatus(req.Status)
	if !status.Valid() {
		writeBadRequest(w, "VALIDATION_ERROR", "status must be draft, published or archived")
		return "", false
	}
	return status, true
}

func courseResponse(rec pgrepo.CourseRecord) dto.CourseResponse {
	return dto.CourseResponse{
		ID:          rec.ID,
		Title:       rec.Title,
		Description: rec.Description,
		Price:       rec.Price,
		Status:      string(rec.Status),
		OwnerID:     rec.OwnerID,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}

func moduleResponse(rec pgrepo.ModuleRecord) dto.ModuleResponse {
	return dto.ModuleResponse{
		ID:             rec.ID,
		CourseID:       rec.CourseID,
		ParentModuleID: rec.ParentModuleID,
		Title:          rec.Title,
		Description:    rec.Description,
		Order:          rec.Order,
		Status:         string(rec.Status),
		ContentType:    string(rec.ContentType),
	}
}

func lessonResponse(rec pgrepo.LessonRecord) dto.LessonResponse {
	return dto.LessonResponse{
		ID:       rec.ID,
		CourseID: rec.CourseID,
		ModuleID: rec.ModuleID,
		Title:    rec.Title,
		Summary:  rec.Summary,
		Order:    rec.Order,
		Duration: rec.Duration,
		Status:   string(rec.Status),
	}
}

func blockContent(p dto.BlockContentPayload) coursesvc.BlockContent {
	return coursesvc.BlockContent{
		Text:      p.Text,
		URL:       p.URL,
		ObjectKey: p.ObjectKey,
	}
}

func lessonBlockResponse(rec pgrepo.LessonBlockRecord) dto.LessonBlockResponse {
	return dto.LessonBlockResponse{
		ID:       rec.ID,
		LessonID: rec.LessonID,
		Order:    rec.Order,
		Type:     string(rec.Type),
		Content:  rec.Content,
	}
}

func lessonDetailResponse(content coursesvc.LessonContent) dto.LessonDetailResponse {
	blocks := make([]dto.LessonBlockResponse, 0, len(content.Blocks))
	for _, rec := range content.Blocks {
		blocks = append(blocks, lessonBlockResponse(rec))
	}
	return dto.LessonDetailResponse{
		LessonResponse: lessonResponse(content.Lesson),
		Blocks:         blocks,
	}
}

func moduleTreeResponse(tree coursesvc.ModuleTree) dto.ModuleTreeResponse {
	submodules := make([]dto.ModuleTreeResponse, 0, len(tree.Submodules))
	for _, sub := range tree.Submodules {
		submodules = append(submodules, moduleTreeResponse(sub))
	}
	lessons := make([]dto.LessonResponse, 0, len(tree.Lessons))
	for _, rec := range tree.Lessons {
		lessons = append(lessons, lessonResponse(rec))
	}
	return dto.ModuleTreeResponse{
		ModuleResponse: moduleResponse(tree.Module),
		Submodules:     submodules,
		Lessons:        lessons,
	}
}

func courseContentResponse(content coursesvc.CourseContent) dto.CourseContentResponse {
	modules := make([]dto.ModuleTreeResponse, 0, len(content.Modules))
	for _, tree := range content.Modules {
		modules = append(modules, moduleTreeResponse(tree))
	}
	lessons := make([]dto.LessonResponse, 0, len(content.Lessons))
	for _, rec := range content.Lessons {
		lessons = append(lessons, lessonResponse(rec))
	}
	return dto.CourseContentResponse{
		Course:  courseResponse(content.Course),
		Modules: modules,
		Lessons: lessons,
	}
}
