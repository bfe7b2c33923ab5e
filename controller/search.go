package controller

import (
	"net/http"

	"campusevents/autocom"
	"campusevents/utils"

	"github.com/julienschmidt/httprouter"
)

type SearchController struct {
	Index *autocom.Index
}

// SearchEvents suggests published events by title prefix. Without Redis it
// returns an empty list.
func (ctrl *SearchController) SearchEvents(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if ctrl.Index == nil {
		utils.SendJSONResponse(w, http.StatusOK, []autocom.Suggestion{})
		return
	}
	list, err := ctrl.Index.Search(r.Context(), r.URL.Query().Get("q"), int64(utils.QueryInt(r, "limit", 10)))
	if err != nil {
		utils.SendError(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, list)
}
