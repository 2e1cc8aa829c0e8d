package handlers

import (
	"errors"
	"io"
	"net/http"

	"invoice-desk/internal/logctx"
	"invoice-desk/internal/notion"
	"invoice-desk/internal/submission"
	"invoice-desk/internal/validate"
)

// maxPayloadBytes caps a submission body.
const maxPayloadBytes = 1 << 20

type createdData struct {
	ID string `json:"id"`
}

type createResponse struct {
	Message string      `json:"message"`
	Data    createdData `json:"data"`
}

type validationResponse struct {
	Message string                `json:"message"`
	Errors  []validate.FieldError `json:"errors"`
}

type nextInvoiceResponse struct {
	NextInvoiceNumber string `json:"nextInvoiceNumber"`
}

// CreateInvoice accepts a consulting or expense entry and records it.
func (h *Handlers) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	logger := logctx.Logger(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var email string
	if user := GetUserFromContext(r); user != nil {
		email = user.Email
	}

	res, err := h.submissions.Submit(r.Context(), email, body)
	if err != nil {
		h.writeSubmitError(w, r, err)
		return
	}

	logger.Info("entry submitted", "entry_type", res.EntryType, "page_id", res.PageID, "notified", res.Notified)
	writeJSON(w, http.StatusOK, createResponse{
		Message: res.Message,
		Data:    createdData{ID: res.PageID},
	})
}

func (h *Handlers) writeSubmitError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validate.Error
	var upstream *submission.UpstreamError

	switch {
	case errors.Is(err, submission.ErrUnauthenticated), errors.Is(err, submission.ErrForbidden):
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, validationResponse{
			Message: "Invalid entry",
			Errors:  verr.Fields,
		})
	case errors.As(err, &upstream):
		if apiErr, ok := notion.AsAPIError(err); ok && apiErr.IsClientError() {
			writeMessage(w, http.StatusBadRequest, apiErr.Message)
			return
		}
		writeMessage(w, http.StatusInternalServerError, "Failed to create entry")
	default:
		logctx.Logger(r.Context()).Error("submission failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}

// GetNextInvoice returns the suggested number for the next consulting entry.
func (h *Handlers) GetNextInvoice(w http.ResponseWriter, r *http.Request) {
	next, err := h.invoices.Next(r.Context())
	if err != nil {
		logctx.Logger(r.Context()).Error("invoice number lookup failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Failed to generate invoice number")
		return
	}
	writeJSON(w, http.StatusOK, nextInvoiceResponse{NextInvoiceNumber: next})
}
