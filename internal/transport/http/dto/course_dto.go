package dto

import "time"

type CreateCourseRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

type UpdateCourseRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Status      *string  `json:"status"`
}

type CourseResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Status      string    `json:"status"`
	OwnerID     int64     `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CourseListResponse struct {
	Courses []CourseResponse `json:"courses"`
}

type CreateModuleRequest struct {
	ParentModuleID *int64 `json:"parent_module_id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Order          int    `json:"order"`
}

type ModuleResponse struct {
	ID             int64   `json:"id"`
	CourseID       int64   `json:"course_id"`
	ParentModuleID *int64  `json:"parent_module_id"`
	Title          string  `json:"title"`
	Description    *string `json:"description"`
	Order          int     `json:"order"`
	Status         string  `json:"status"`
	ContentType    string  `json:"content_type"`
}

type ModuleListResponse struct {
	Modules []ModuleResponse `json:"modules"`
}

type CreateLessonRequest struct {
	ModuleID *int64 `json:"module_id"`
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	Order    int    `json:"order"`
	Duration *int   `json:"duration"`
}

type LessonResponse struct {
	ID       int64   `json:"id"`
	CourseID int64   `json:"course_id"`
	ModuleID *int64  `json:"module_id"`
	Title    string  `json:"title"`
	Summary  *string `json:"summary"`
	Order    int     `json:"order"`
	Duration *int    `json:"duration"`
	Status   string  `json:"status"`
}

type LessonListResponse struct {
	Lessons []LessonResponse `json:"lessons"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type BlockContentPayload struct {
	Text      string `json:"text"`
	URL       string `json:"url"`
	ObjectKey string `json:"object_key"`
}

type CreateLessonBlockRequest struct {
	Type    string              `json:"type"`
	Content BlockContentPayload `json:"content"`
}

type UpdateLessonBlockRequest struct {
	Type    *string              `json:"type"`
	Content *BlockContentPayload `json:"content"`
	Order   *int                 `json:"order"`
}

type LessonBlockResponse struct {
	ID       int64  `json:"id"`
	LessonID int64  `json:"lesson_id"`
	Order    int    `json:"order"`
	Type     string `json:"type"`
	Content  string `json:"content"`
}

type LessonDetailResponse struct {
	LessonResponse
	Blocks []LessonBlockResponse `json:"blocks"`
}

type ModuleTreeResponse struct {
	ModuleResponse
	Submodules []ModuleTreeResponse `json:"submodules"`
	Lessons    []LessonResponse     `json:"lessons"`
}

type CourseContentResponse struct {
	Course  CourseResponse       `json:"course"`
	Modules []ModuleTreeResponse `json:"modules"`
	Lessons []LessonResponse     `json:"lessons"`
}
