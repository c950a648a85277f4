package handlers

import (
	"github.com/gin-gonic/gin"

	"approvedpremises.io/cas/internal/api/middleware"
	"approvedpremises.io/cas/internal/domain"
)

// RegisterHandlers binds every authenticated route. /health is registered
// separately so it can sit outside JWT auth.
func RegisterHandlers(router gin.IRouter, s *Server) {
	anyService := middleware.RequireServiceName("")
	cas1OrCas3 := middleware.RequireServiceName(domain.ServiceCAS1, domain.ServiceCAS1, domain.ServiceCAS3)

	router.GET("/profile", s.GetProfile)
	router.GET("/reference-data/:kind", anyService, s.ListReferenceData)

	apps := router.Group("/applications", cas1OrCas3)
	apps.GET("", s.ListApplications)
	apps.POST("", s.CreateApplication)
	apps.GET("/:applicationId", s.GetApplication)
	apps.PUT("/:applicationId", s.UpdateApplication)
	apps.POST("/:applicationId/submission", s.SubmitApplication)
	apps.POST("/:applicationId/withdrawal", s.WithdrawApplication)

	assessments := router.Group("/assessments", cas1OrCas3)
	assessments.GET("", s.ListAssessments)
	assessments.GET("/:assessmentId", s.GetAssessment)
	assessments.PUT("/:assessmentId", s.UpdateAssessment)
	assessments.POST("/:assessmentId/acceptance", s.AcceptAssessment)
	assessments.POST("/:assessmentId/rejection", s.RejectAssessment)
	assessments.POST("/:assessmentId/allocation", s.ReallocateAssessment)
	assessments.POST("/:assessmentId/notes", s.AddClarificationNote)
	assessments.PUT("/:assessmentId/notes/:noteId", s.UpdateClarificationNote)
	assessments.POST("/:assessmentId/status-updates", s.UpdateReferralStatus)

	requests := router.Group("/placement-requests")
	requests.GET("/:id", s.GetPlacementRequest)
	requests.POST("/:id/withdrawal", s.WithdrawPlacementRequest)
	requests.POST("/:id/booking", s.BookPlacementRequest)

	placementApps := router.Group("/placement-applications")
	placementApps.POST("", s.CreatePlacementApplication)
	placementApps.PUT("/:id", s.UpdatePlacementApplication)
	placementApps.POST("/:id/submission", s.SubmitPlacementApplication)
	placementApps.POST("/:id/decision", s.DecidePlacementApplication)
	placementApps.POST("/:id/withdraw", s.WithdrawPlacementApplication)

	premises := router.Group("/premises/:premisesId")
	premises.GET("/bookings", s.ListBookings)
	premises.POST("/bookings", s.CreateBooking)
	premises.GET("/bookings/:bookingId", s.GetBooking)
	premises.POST("/bookings/:bookingId/arrivals", s.CreateArrival)
	premises.POST("/bookings/:bookingId/departures", s.CreateDeparture)
	premises.POST("/bookings/:bookingId/non-arrivals", s.CreateNonArrival)
	premises.POST("/bookings/:bookingId/cancellations", s.CreateCancellation)
	premises.POST("/bookings/:bookingId/confirmations", s.CreateConfirmation)
	premises.POST("/bookings/:bookingId/extensions", s.CreateExtension)
	premises.GET("/out-of-service-beds", s.ListOutOfServiceBeds)
	premises.POST("/out-of-service-beds", s.CreateOutOfServiceBed)
	premises.POST("/out-of-service-beds/:id/cancellation", s.CancelOutOfServiceBed)

	cas1 := router.Group("/cas1")
	spaces := cas1.Group("/premises/:premisesId/space-bookings/:bookingId")
	spaces.GET("", s.GetSpaceBooking)
	spaces.POST("/arrival", s.RecordSpaceArrival)
	spaces.POST("/departure", s.RecordSpaceDeparture)
	spaces.POST("/non-arrival", s.RecordSpaceNonArrival)
	spaces.POST("/cancellations", s.CancelSpaceBooking)
	cas1.POST("/spaces/search", s.SearchSpaces)

	cas2 := router.Group("/cas2")
	cas2.GET("/applications", s.ListCas2Applications)
	cas2.POST("/applications", s.CreateCas2Application)
	cas2.GET("/applications/:id", s.GetCas2Application)
	cas2.PUT("/applications/:id", s.UpdateCas2Application)
	cas2.POST("/applications/:id/abandon", s.AbandonCas2Application)
	cas2.POST("/submissions", s.SubmitCas2Application)
	cas2.POST("/assessments/:assessmentId/status-updates",
		middleware.RequireRole(domain.RoleCAS2Assessor, domain.RoleCAS2Admin), s.CreateCas2StatusUpdate)

	router.GET("/events/:eventId", s.GetEvent)
	router.POST("/seed", middleware.RequireRole(domain.RoleCAS1Admin, domain.RoleCAS2Admin), s.RunSeed)
}
