package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"go.trai.ch/zerr"

	"github.com/kacperjurak/gocvcore"
	"github.com/kacperjurak/gocvcore/internal/utils"
	"github.com/kacperjurak/gocvcore/internal/workbook"
	"github.com/kacperjurak/gocvcore/pkg/palette"
	"github.com/kacperjurak/gocvcore/pkg/plot"
)

// ErrBadRequest marks malformed request parameters.
var ErrBadRequest = zerr.New("bad request")

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// CORS sets the cross-origin headers and answers preflight requests.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeError writes an error response with the status derived from err.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, fallback int) {
	status := statusFor(err, fallback)
	if status >= http.StatusInternalServerError {
		zerr.Log(r.Context(), logger, err)
	} else {
		logger.Info("request rejected", slog.String("path", r.URL.Path), slog.Int("status", status), slog.String("error", err.Error()))
	}
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: err.Error(), RequestID: utils.RequestID(r.Context())})
}

// statusFor maps data errors to 422 and malformed requests to 400. Anything else gets
// fallback.
func statusFor(err error, fallback int) int {
	if errors.Is(err, ErrBadRequest) {
		return http.StatusBadRequest
	}

	var (
		schema  *gocvcore.SchemaError
		missing *gocvcore.MissingFieldError
		index   *gocvcore.InvalidCycleIndexError
		policy  *gocvcore.SmoothingPolicyError
	)
	switch {
	case errors.As(err, &schema), errors.As(err, &missing), errors.As(err, &index), errors.As(err, &policy):
		return http.StatusUnprocessableEntity
	}

	for _, target := range []error{
		gocvcore.ErrInvalidMass,
		gocvcore.ErrInvalidCycleRange,
		workbook.ErrSheetNotFound,
		workbook.ErrInfoSheetMissing,
		workbook.ErrMassNotNumeric,
		plot.ErrNoCycles,
		plot.ErrInvalidAxis,
		palette.ErrUnknownPalette,
		palette.ErrInvalidColor,
	} {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity
		}
	}
	return fallback
}

func badRequest(err error, field string) error {
	return zerr.With(zerr.Wrap(ErrBadRequest, "invalid "+field+": "+err.Error()), "field", field)
}
