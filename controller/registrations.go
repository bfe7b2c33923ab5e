package controller

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"log"
	"mime"
	"net/http"
	"strings"

	"campusevents/apperr"
	"campusevents/media"
	"campusevents/service"
	"campusevents/structs"
	"campusevents/utils"

	"github.com/julienschmidt/httprouter"
)

const maxProofBytes = 10 << 20

type RegistrationController struct {
	RegSvc    *service.RegistrationService
	UploadDir string
}

func NewRegistrationController(regSvc *service.RegistrationService, uploadDir string) *RegistrationController {
	return &RegistrationController{RegSvc: regSvc, UploadDir: uploadDir}
}

type registerRequest struct {
	CustomFormResponses   map[string]any                `json:"customFormResponses"`
	PaymentProof          string                        `json:"paymentProof"`
	MerchandiseSelections *structs.MerchandiseSelection `json:"merchandiseSelections"`
}

// decodeDataURL accepts "data:image/png;base64,..." or bare base64.
func decodeDataURL(s string) ([]byte, error) {
	if i := strings.Index(s, ","); strings.HasPrefix(s, "data:") && i > 0 {
		meta := s[5:i]
		if mt := strings.SplitN(meta, ";", 2)[0]; !media.SupportedImageTypes[mt] {
			return nil, apperr.Validationf("Unsupported payment proof type %q", mt)
		}
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, apperr.Validationf("Payment proof is not valid base64")
	}
	if len(data) > maxProofBytes {
		return nil, apperr.Validationf("Payment proof exceeds 10MB")
	}
	return data, nil
}

// readRegistration parses either a JSON body or a multipart form whose "data"
// field holds the JSON and whose "paymentProof" field holds the image.
func (ctrl *RegistrationController) readRegistration(w http.ResponseWriter, r *http.Request) (registerRequest, io.Reader, error) {
	var req registerRequest
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct != "multipart/form-data" {
		// base64 inflates the proof by a third
		if err := decodeLimit(w, r, &req, maxProofBytes*4/3+maxBodyBytes); err != nil {
			return req, nil, err
		}
		if req.PaymentProof == "" {
			return req, nil, nil
		}
		data, err := decodeDataURL(req.PaymentProof)
		if err != nil {
			return req, nil, err
		}
		return req, bytes.NewReader(data), nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxProofBytes+maxBodyBytes)
	if err := r.ParseMultipartForm(maxProofBytes); err != nil {
		return req, nil, apperr.Validationf("Unable to parse form")
	}
	if data := r.FormValue("data"); data != "" {
		if err := json.Unmarshal([]byte(data), &req); err != nil {
			return req, nil, apperr.Validationf("Invalid registration data")
		}
	}
	file, header, err := r.FormFile("paymentProof")
	if err == http.ErrMissingFile {
		return req, nil, nil
	}
	if err != nil {
		return req, nil, apperr.Validationf("Error retrieving payment proof")
	}
	if !media.SupportedImageTypes[header.Header.Get("Content-Type")] {
		file.Close()
		return req, nil, apperr.Validationf("Invalid file type. Supported formats: JPEG, PNG, WebP, GIF, BMP, TIFF.")
	}
	return req, file, nil
}

func (ctrl *RegistrationController) Register(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	req, proof, err := ctrl.readRegistration(w, r)
	if err != nil {
		utils.SendError(w, err)
		return
	}
	if c, ok := proof.(io.Closer); ok {
		defer c.Close()
	}

	in := service.RegisterInput{FormResponses: req.CustomFormResponses, Merchandise: req.MerchandiseSelections}
	if proof != nil {
		path, err := media.SavePaymentProof(ctrl.UploadDir, utils.GenerateID(16), proof)
		if err != nil {
			log.Printf("Failed to store payment proof: %v", err)
			utils.SendError(w, apperr.Validationf("Payment proof must be a readable image"))
			return
		}
		in.PaymentProof = path
	}

	res, err := ctrl.RegSvc.Register(r.Context(), actorOf(r), ps.ByName("eventid"), in)
	if err != nil {
		if in.PaymentProof != "" {
			media.RemovePaymentProof(ctrl.UploadDir, in.PaymentProof)
		}
		utils.SendError(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusCreated, res)
}

func (ctrl *RegistrationController) Unregister(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := ctrl.RegSvc.Unregister(r.Context(), actorOf(r), ps.ByName("eventid")); err != nil {
		utils.SendError(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, map[string]string{"message": "Registration cancelled"})
}

func (ctrl *RegistrationController) MyRegistration(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reg, err := ctrl.RegSvc.Registration(r.Context(), actorOf(r), ps.ByName("eventid"))
	if err != nil {
		utils.SendError(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, map[string]any{"registered": reg != nil, "registration": reg})
}

func (ctrl *RegistrationController) MyRegistrations(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list, err := ctrl.RegSvc.MyRegistrations(r.Context(), actorOf(r))
	if err != nil {
		utils.SendError(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, list)
}

func (ctrl *RegistrationController) EventRegistrations(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	view, err := ctrl.RegSvc.ListForEvent(r.Context(), actorOf(r), ps.ByName("eventid"))
	if err != nil {
		utils.SendError(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, view)
}

func (ctrl *RegistrationController) MarkAttendance(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	res, err := ctrl.RegSvc.MarkAttendance(r.Context(), actorOf(r), ps.ByName("ticketid"))
	if err != nil {
		utils.SendError(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, res)
}

func (ctrl *RegistrationController) ValidateTicket(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	st, err := ctrl.RegSvc.ValidateTicket(r.Context(), actorOf(r), ps.ByName("ticketid"))
	if err != nil {
		utils.SendError(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, st)
}

type attendanceRequest struct {
	Attended *bool  `json:"attended" validate:"required"`
	Reason   string `json:"reason" validate:"required,max=500"`
}

func (ctrl *RegistrationController) OverrideAttendance(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req attendanceRequest
	if err := decode(w, r, &req); err != nil {
		utils.SendError(w, err)
		return
	}
	reg, err := ctrl.RegSvc.OverrideAttendance(r.Context(), actorOf(r), ps.ByName("eventid"), ps.ByName("registrationid"), *req.Attended, req.Reason)
	if err != nil {
		utils.SendError(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, reg)
}

type paymentRequest struct {
	Action string `json:"action" validate:"required,oneof=approve reject"`
	Reason string `json:"reason" validate:"max=500"`
}

func (ctrl *RegistrationController) ReviewPayment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req paymentRequest
	if err := decode(w, r, &req); err != nil {
		utils.SendError(w, err)
		return
	}
	reg, err := ctrl.RegSvc.ReviewPayment(r.Context(), actorOf(r), ps.ByName("eventid"), ps.ByName("registrationid"), req.Action, req.Reason)
	if err != nil {
		utils.SendError(w, err)
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, reg)
}
