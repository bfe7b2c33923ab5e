package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"campusevents/auth"
	"campusevents/controller"
	"campusevents/ratelim"
	"campusevents/structs"

	"github.com/julienschmidt/httprouter"
)

func newRouter(t *testing.T) *httprouter.Router {
	t.Helper()
	ratelim.Configure(1000, 1000)
	router := httprouter.New()
	AddAuthRoutes(router, &controller.AuthController{})
	AddEventsRoutes(router, &controller.EventController{})
	AddRegistrationRoutes(router, &controller.RegistrationController{})
	AddDiscussionRoutes(router, &controller.DiscussionController{})
	AddFeedbackRoutes(router, &controller.FeedbackController{})
	AddSearchRoutes(router, &controller.SearchController{})
	AddStaticRoutes(router, t.TempDir())
	return router
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	router := newRouter(t)
	protected := []struct{ method, path string }{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodPost, "/api/admin/organizers"},
		{http.MethodPost, "/api/events"},
		{http.MethodGet, "/api/events/ev1"},
		{http.MethodPatch, "/api/events/ev1/status"},
		{http.MethodPatch, "/api/events/ev1/cancel"},
		{http.MethodGet, "/api/organizer/events"},
		{http.MethodPost, "/api/events/ev1/register"},
		{http.MethodGet, "/api/events/ev1/registrations"},
		{http.MethodPatch, "/api/events/ev1/registrations/r1/payment"},
		{http.MethodGet, "/api/registrations/mine"},
		{http.MethodDelete, "/api/registrations/ev1"},
		{http.MethodPatch, "/api/registrations/attend/TKT-1"},
		{http.MethodGet, "/api/tickets/TKT-1/validate"},
		{http.MethodGet, "/api/discussions/ev1"},
		{http.MethodGet, "/api/discussions/ev1/ws"},
		{http.MethodPatch, "/api/messages/m1/pin"},
		{http.MethodPost, "/api/feedback/ev1"},
		{http.MethodGet, "/api/feedback/ev1/mine"},
	}
	for _, rt := range protected {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(rt.method, rt.path, nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: got %d, want 401", rt.method, rt.path, w.Code)
		}
	}
}

func TestRoleGates(t *testing.T) {
	router := newRouter(t)
	tok, err := auth.IssueToken(&structs.User{UserID: "p1", Role: structs.RoleParticipant}, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{"/api/organizer/events", "/api/events/ev1/registrations", "/api/feedback/ev1"} {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		r.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)
		if w.Code != http.StatusForbidden {
			t.Errorf("participant on %s: got %d, want 403", path, w.Code)
		}
	}

	orgTok, _ := auth.IssueToken(&structs.User{UserID: "o1", Role: structs.RoleOrganizer}, time.Now())
	r := httptest.NewRequest(http.MethodPost, "/api/admin/organizers", nil)
	r.Header.Set("Authorization", "Bearer "+orgTok)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusForbidden {
		t.Errorf("organizer creating organizers: got %d", w.Code)
	}
}

func TestSearchIsPublic(t *testing.T) {
	router := newRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/search/events?q=chess", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("got %d", w.Code)
	}
}
