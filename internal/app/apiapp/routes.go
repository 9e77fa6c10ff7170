package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/delawer33/edumaster/internal/config"
	authsvc "github.com/delawer33/edumaster/internal/services/auth"
	coursesvc "github.com/delawer33/edumaster/internal/services/courses"
	filesvc "github.com/delawer33/edumaster/internal/services/files"
	paymentsvc "github.com/delawer33/edumaster/internal/services/payments"
	"github.com/delawer33/edumaster/internal/transport/http/handlers"
)

type Dependencies struct {
	AuthService    *authsvc.Service
	CourseService  *coursesvc.Service
	FileService    *filesvc.Service
	PaymentService *paymentsvc.Service
	Logger         *zap.Logger
	Config         config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	authHandler := handlers.NewAuthHandler(deps.AuthService)
	courseHandler := handlers.NewCourseHandler(deps.CourseService)
	fileHandler := handlers.NewFileHandler(deps.FileService, deps.Config.Upload.MaxSizeBytes)
	paymentHandler := handlers.NewPaymentHandler(deps.PaymentService)
	healthHandler := handlers.NewHealthHandler()

	authMW := AuthMiddleware(deps.AuthService, deps.Logger)

	r.Get("/healthz", healthHandler.Handle)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.With(authMW).Post("/logout", authHandler.Logout)
		r.With(authMW).Post("/logout_all", authHandler.LogoutAll)
		r.With(authMW).Get("/me", authHandler.Me)
	})

	r.Route("/courses", func(r chi.Router) {
		r.Use(authMW)
		r.Get("/", courseHandler.List)
		r.Post("/", courseHandler.Create)
		r.Get("/{course_id}", courseHandler.Get)
		r.Patch("/{course_id}", courseHandler.Update)
		r.Delete("/{course_id}", courseHandler.Delete)
		r.Get("/{course_id}/content", courseHandler.Content)
		r.Get("/{course_id}/modules", courseHandler.ListModules)
		r.Post("/{course_id}/modules", courseHandler.CreateModule)
		r.Post("/{course_id}/lessons", courseHandler.CreateLesson)
	})

	r.Route("/modules", func(r chi.Router) {
		r.Use(authMW)
		r.Patch("/{module_id}/status", courseHandler.UpdateModuleStatus)
		r.Delete("/{module_id}", courseHandler.DeleteModule)
		r.Get("/{module_id}/lessons", courseHandler.ListLessons)
	})

	r.Route("/lessons", func(r chi.Router) {
		r.Use(authMW)
		r.Get("/{lesson_id}", courseHandler.GetLesson)
		r.Patch("/{lesson_id}/status", courseHandler.UpdateLessonStatus)
		r.Delete("/{lesson_id}", courseHandler.DeleteLesson)
		r.Post("/{lesson_id}/blocks", courseHandler.CreateLessonBlock)
		r.Patch("/{lesson_id}/blocks/{block_id}", courseHandler.UpdateLessonBlock)
		r.Delete("/{lesson_id}/blocks/{block_id}", courseHandler.DeleteLessonBlock)
	})

	r.Route("/files", func(r chi.Router) {
		r.Use(authMW)
		r.Post("/", fileHandler.Upload)
		r.Get("/", fileHandler.List)
		r.Get("/{file_id}", fileHandler.Get)
	})

	r.Route("/payments", func(r chi.Router) {
		r.With(authMW).Post("/stub", paymentHandler.SubmitStub)
		r.Get("/stub/{transaction_id}", paymentHandler.StatusByTransactionID)
		r.Get("/status/{payment_intent_id}", paymentHandler.StatusByIntentID)
	})
}
