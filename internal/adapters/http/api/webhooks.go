package api

import (
	"errors"
	"io"
	"net/http"

	service "github.com/okian/stripe-connect/internal/app"
	"github.com/okian/stripe-connect/internal/domain/errs"
)

// maxWebhookBytes caps a Stripe event body.
const maxWebhookBytes = 64 << 10

// WebhookHandler receives Connect events from Stripe.
type WebhookHandler struct{ handler }

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// HandleIndexConnectData handles POST /webhooks/connect/index-connect-data.
func (h *WebhookHandler) HandleIndexConnectData(w http.ResponseWriter, r *http.Request) {
	const op = "api.index_connect_data"
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, errs.FieldCode("body"), errs.Wrap(op, errs.ErrInvalid, errs.FieldCode("body"), err))
			return
		}
		h.fail(w, r, errs.Wrap(op, errs.ErrInvalid, errs.FieldCode("body"), err))
		return
	}
	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		h.fail(w, r, errs.New(op, errs.ErrInvalid, errs.CodeInvalidSignature))
		return
	}

	status, err := h.deps.IngestWebhook(r.Context(), payload, signature)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if status == service.IngestDuplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: status, Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: status})
}
