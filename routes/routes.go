package routes

import (
	"net/http"
	"path/filepath"

	"campusevents/controller"
	"campusevents/middleware"
	"campusevents/ratelim"
	"campusevents/structs"

	"github.com/julienschmidt/httprouter"
)

func organizerOnly(h httprouter.Handle) httprouter.Handle {
	return middleware.Authenticate(middleware.RequireRole(h, structs.RoleOrganizer))
}

func participantOnly(h httprouter.Handle) httprouter.Handle {
	return middleware.Authenticate(middleware.RequireRole(h, structs.RoleParticipant))
}

func AddStaticRoutes(router *httprouter.Router, uploadDir string) {
	router.ServeFiles("/paymentproofs/*filepath", http.Dir(filepath.Join(uploadDir, "paymentproofs")))
}

func AddAuthRoutes(router *httprouter.Router, ctrl *controller.AuthController) {
	router.POST("/api/auth/register", ratelim.RateLimit(ctrl.Register))
	router.POST("/api/auth/login", ratelim.RateLimit(ctrl.Login))
	router.GET("/api/auth/me", middleware.Authenticate(ctrl.Me))

	router.POST("/api/admin/organizers", middleware.Authenticate(middleware.RequireRole(ctrl.CreateOrganizer, structs.RoleAdmin)))
}

func AddEventsRoutes(router *httprouter.Router, ctrl *controller.EventController) {
	router.GET("/api/events", ratelim.RateLimit(ctrl.ListEvents))
	router.POST("/api/events", organizerOnly(ctrl.CreateEvent))
	router.GET("/api/events/:eventid", middleware.Authenticate(ctrl.GetEvent))
	router.PATCH("/api/events/:eventid", organizerOnly(ctrl.EditEvent))
	router.DELETE("/api/events/:eventid", organizerOnly(ctrl.DeleteEvent))
	router.PATCH("/api/events/:eventid/status", organizerOnly(ctrl.ChangeStatus))
	router.PATCH("/api/events/:eventid/cancel", organizerOnly(ctrl.CancelEvent))

	router.GET("/api/organizer/events", organizerOnly(ctrl.OrganizerEvents))
}

func AddRegistrationRoutes(router *httprouter.Router, ctrl *controller.RegistrationController) {
	router.POST("/api/events/:eventid/register", ratelim.RateLimit(participantOnly(ctrl.Register)))
	router.GET("/api/events/:eventid/registration", middleware.Authenticate(ctrl.MyRegistration))
	router.GET("/api/events/:eventid/registrations", organizerOnly(ctrl.EventRegistrations))
	router.PATCH("/api/events/:eventid/registrations/:registrationid/attendance", organizerOnly(ctrl.OverrideAttendance))
	router.PATCH("/api/events/:eventid/registrations/:registrationid/payment", organizerOnly(ctrl.ReviewPayment))

	router.GET("/api/registrations/mine", participantOnly(ctrl.MyRegistrations))
	router.DELETE("/api/registrations/:eventid", participantOnly(ctrl.Unregister))
	router.PATCH("/api/registrations/attend/:ticketid", organizerOnly(ctrl.MarkAttendance))

	router.GET("/api/tickets/:ticketid/validate", organizerOnly(ctrl.ValidateTicket))
}

func AddDiscussionRoutes(router *httprouter.Router, ctrl *controller.DiscussionController) {
	router.GET("/api/discussions/:eventid", middleware.Authenticate(ctrl.GetThread))
	router.POST("/api/discussions/:eventid", ratelim.RateLimit(middleware.Authenticate(ctrl.PostMessage)))
	router.GET("/api/discussions/:eventid/unread", middleware.Authenticate(ctrl.UnreadCount))
	router.GET("/api/discussions/:eventid/ws", middleware.Authenticate(ctrl.Live))

	router.PATCH("/api/messages/:messageid/delete", middleware.Authenticate(ctrl.DeleteMessage))
	router.PATCH("/api/messages/:messageid/pin", organizerOnly(ctrl.PinMessage))
	router.POST("/api/messages/:messageid/react", middleware.Authenticate(ctrl.React))
}

func AddFeedbackRoutes(router *httprouter.Router, ctrl *controller.FeedbackController) {
	router.POST("/api/feedback/:eventid", participantOnly(ctrl.Submit))
	router.GET("/api/feedback/:eventid", organizerOnly(ctrl.List))
	router.GET("/api/feedback/:eventid/mine", participantOnly(ctrl.Mine))
}

func AddSearchRoutes(router *httprouter.Router, ctrl *controller.SearchController) {
	router.GET("/api/search/events", ratelim.RateLimit(ctrl.SearchEvents))
}
