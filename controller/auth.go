package controller

import (
	"net/http"

	"campusevents/service"
	"campusevents/utils"

	"github.com/julienschmidt/httprouter"
)

type AuthController struct {
	AuthSvc *service.AuthService
}

func NewAuthController(svc *service.AuthService) *AuthController {
	return &AuthController{AuthSvc: svc}
}

func (ctrl *AuthController) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in service.SignupInput
	if err := decode(w, r, &in); err != nil {
		utils.SendError(w, err)
		return
	}
	sess, err := ctrl.AuthSvc.Signup(r.Context(), in)
	if err != nil {
		utils.SendError(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusCreated, sess)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (ctrl *AuthController) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		utils.SendError(w, err)
		return
	}
	sess, err := ctrl.AuthSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		utils.SendError(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, sess)
}

func (ctrl *AuthController) Me(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	user, err := ctrl.AuthSvc.Me(r.Context(), actorOf(r))
	if err != nil {
		utils.SendError(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, user)
}

func (ctrl *AuthController) CreateOrganizer(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in service.OrganizerInput
	if err := decode(w, r, &in); err != nil {
		utils.SendError(w, err)
		return
	}
	user, err := ctrl.AuthSvc.CreateOrganizer(r.Context(), in)
	if err != nil {
		utils.SendError(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusCreated, user)
}
