package server

import (
	"encoding/json"
	"image/png"
	"net/http"

	apperrors "github.com/GriffinCanCode/coordwatch/internal/errors"
	"github.com/GriffinCanCode/coordwatch/internal/trace"
	"github.com/GriffinCanCode/coordwatch/pkg/action"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor().Status())
}

// handleAction applies a fixed control action and answers with the
// resulting status.
func (s *Server) handleAction(a action.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := trace.StartSpan(r.Context(), "http_action")
		defer span.End()
		span.SetAttr("type", string(a.Type))

		if err := s.monitor().Handle(ctx, a); err != nil {
			span.Fail(err)
			trace.Logger(ctx).Warn("control request failed", "type", a.Type, "error", err)
			writeJSON(w, httpStatus(err), errorMessage(err))
			return
		}
		writeJSON(w, http.StatusOK, s.monitor().Status())
	}
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	ctx, span := trace.StartSpan(r.Context(), "http_toggle")
	defer span.End()

	if err := s.monitor().Toggle(ctx); err != nil {
		span.Fail(err)
		trace.Logger(ctx).Warn("toggle failed", "error", err)
		writeJSON(w, httpStatus(err), errorMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, s.monitor().Status())
}

// handleRegion serves the last preprocessed region as PNG.
func (s *Server) handleRegion(w http.ResponseWriter, r *http.Request) {
	img := s.monitor().LastRegion()
	if img == nil {
		http.Error(w, "no region captured yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, img); err != nil {
		trace.Logger(r.Context()).Warn("region encode failed", "error", err)
	}
}

func httpStatus(err error) int {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeInvalidArgument, apperrors.CodeConfigInvalid:
		return http.StatusBadRequest
	case apperrors.CodeCancelled:
		return http.StatusConflict
	case apperrors.CodeCaptureUnavailable, apperrors.CodeRecognizerInitFailed, apperrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
