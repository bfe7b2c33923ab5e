package controller

import (
	"log"
	"net/http"
	"time"

	"campusevents/apperr"
	"campusevents/hub"
	"campusevents/service"
	"campusevents/utils"

	"github.com/julienschmidt/httprouter"
)

type DiscussionController struct {
	DiscussionSvc *service.DiscussionService
	Hub           *hub.Hub
}

func NewDiscussionController(svc *service.DiscussionService, h *hub.Hub) *DiscussionController {
	return &DiscussionController{DiscussionSvc: svc, Hub: h}
}

func (ctrl *DiscussionController) GetThread(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	th, err := ctrl.DiscussionSvc.Thread(r.Context(), actorOf(r), ps.ByName("eventid"))
	if err != nil {
		utils.SendError(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, th)
}

func (ctrl *DiscussionController) PostMessage(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var in service.PostInput
	if err := decode(w, r, &in); err != nil {
		utils.SendError(w, err)
		return
	}
	msg, err := ctrl.DiscussionSvc.Post(r.Context(), actorOf(r), ps.ByName("eventid"), in)
	if err != nil {
		utils.SendError(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusCreated, msg)
}

func (ctrl *DiscussionController) DeleteMessage(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	msg, err := ctrl.DiscussionSvc.Delete(r.Context(), actorOf(r), ps.ByName("messageid"))
	if err != nil {
		utils.SendError(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, msg)
}

func (ctrl *DiscussionController) PinMessage(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	msg, err := ctrl.DiscussionSvc.TogglePin(r.Context(), actorOf(r), ps.ByName("messageid"))
	if err != nil {
		utils.SendError(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, msg)
}

type reactRequest struct {
	Emoji string `json:"emoji" validate:"required"`
}

func (ctrl *DiscussionController) React(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req reactRequest
	if err := decode(w, r, &req); err != nil {
		utils.SendError(w, err)
		return
	}
	msg, err := ctrl.DiscussionSvc.React(r.Context(), actorOf(r), ps.ByName("messageid"), req.Emoji)
	if err != nil {
		utils.SendError(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, msg)
}

// UnreadCount counts messages newer than ?since= (RFC 3339). A missing
// value counts everything.
func (ctrl *DiscussionController) UnreadCount(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			utils.SendError(w, apperr.Validationf("since must be an RFC 3339 timestamp"))
			return
		}
		since = t
	}
	n, err := ctrl.DiscussionSvc.UnreadCount(r.Context(), actorOf(r), ps.ByName("eventid"), since)
	if err != nil {
		utils.SendError(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, map[string]int64{"unread": n})
}

// Live upgrades to a websocket that receives the event's discussion updates.
func (ctrl *DiscussionController) Live(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	eventID := ps.ByName("eventid")
	actor := actorOf(r)
	if _, _, err := ctrl.DiscussionSvc.Access(r.Context(), actor, eventID); err != nil {
		utils.SendError(w, err)
		return
	}
	if err := ctrl.Hub.Serve(w, r, eventID, actor.UserID); err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
	}
}
