package controller

import (
	"net/http"
	"strconv"

	"campusevents/service"
	"campusevents/utils"

	"github.com/julienschmidt/httprouter"
)

type FeedbackController struct {
	FeedbackSvc *service.FeedbackService
}

func NewFeedbackController(svc *service.FeedbackService) *FeedbackController {
	return &FeedbackController{FeedbackSvc: svc}
}

func (ctrl *FeedbackController) Submit(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var in service.FeedbackInput
	if err := decode(w, r, &in); err != nil {
		utils.SendError(w, err)
		return
	}
	fb, created, err := ctrl.FeedbackSvc.Submit(r.Context(), actorOf(r), ps.ByName("eventid"), in)
	if err != nil {
		utils.SendError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	utils.SendJSONResponse(w, status, fb)
}

func (ctrl *FeedbackController) List(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rating := 0
	if v := r.URL.Query().Get("rating"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			utils.SendError(w, service.ErrInvalidRating)
			return
		}
		rating = n
	}
	list, err := ctrl.FeedbackSvc.ListForEvent(r.Context(), actorOf(r), ps.ByName("eventid"), rating)
	if err != nil {
		utils.SendError(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, list)
}

func (ctrl *FeedbackController) Mine(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	fb, err := ctrl.FeedbackSvc.Mine(r.Context(), actorOf(r), ps.ByName("eventid"))
	if err != nil {
		utils.SendError(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, map[string]any{"feedback": fb})
}
