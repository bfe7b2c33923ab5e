package controller

import (
	"net/http"

	"campusevents/events"
	"campusevents/service"
	"campusevents/utils"

	"github.com/julienschmidt/httprouter"
)

type EventController struct {
	EventSvc *service.EventService
}

func NewEventController(eventSvc *service.EventService) *EventController {
	return &EventController{EventSvc: eventSvc}
}

func (ctrl *EventController) ListEvents(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list, err := ctrl.EventSvc.ListEvents(r.Context(), r.URL.Query().Get("tag"), utils.QueryInt(r, "page", 1), utils.QueryInt(r, "limit", 20))
	if err != nil {
		utils.SendError(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, list)
}

func (ctrl *EventController) OrganizerEvents(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list, err := ctrl.EventSvc.OrganizerEvents(r.Context(), actorOf(r), utils.QueryInt(r, "page", 1), utils.QueryInt(r, "limit", 20))
	if err != nil {
		utils.SendError(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, list)
}

func (ctrl *EventController) GetEvent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ev, err := ctrl.EventSvc.GetEvent(r.Context(), actorOf(r), ps.ByName("eventid"))
	if err != nil {
		utils.SendError(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, ev)
}

func (ctrl *EventController) CreateEvent(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in service.EventInput
	if err := decode(w, r, &in); err != nil {
		utils.SendError(w, err)
		return
	}
	ev, err := ctrl.EventSvc.CreateEvent(r.Context(), actorOf(r), in)
	if err != nil {
		utils.SendError(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusCreated, ev)
}

func (ctrl *EventController) EditEvent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var patch events.Patch
	if err := decode(w, r, &patch); err != nil {
		utils.SendError(w, err)
		return
	}
	ev, err := ctrl.EventSvc.UpdateEvent(r.Context(), actorOf(r), ps.ByName("eventid"), patch)
	if err != nil {
		utils.SendError(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, ev)
}

type statusRequest struct {
	NewStatus string `json:"newStatus"`
}

func (ctrl *EventController) ChangeStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req statusRequest
	if r.ContentLength != 0 {
		if err := decode(w, r, &req); err != nil {
			utils.SendError(w, err)
			return
		}
	}
	ev, err := ctrl.EventSvc.ChangeStatus(r.Context(), actorOf(r), ps.ByName("eventid"), req.NewStatus)
	if err != nil {
		utils.SendError(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, ev)
}

func (ctrl *EventController) CancelEvent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ev, err := ctrl.EventSvc.CancelEvent(r.Context(), actorOf(r), ps.ByName("eventid"))
	if err != nil {
		utils.SendError(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, ev)
}

func (ctrl *EventController) DeleteEvent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := ctrl.EventSvc.DeleteEvent(r.Context(), actorOf(r), ps.ByName("eventid")); err != nil {
		utils.SendError(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, map[string]string{"message": "Event deleted successfully"})
}
