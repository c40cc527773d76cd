package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

type shutdownRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) probe(name string) probeResult {
	view := h.service.Instance()
	return probeResult{Probe: name, State: view.State, InstanceID: view.InstanceID}
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, h.probe("liveness"))
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if !h.service.Ready() {
		writeError(w, r, http.StatusServiceUnavailable, "NOT_READY", "instance is "+strings.ToLower(string(h.service.State())))
		return
	}
	writeSuccess(w, http.StatusOK, h.probe("readiness"))
}

func (h *Handler) instance(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, h.service.Instance())
}

func (h *Handler) shutdown(w http.ResponseWriter, r *http.Request) {
	if !h.service.AdminEnabled() {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "resource not found")
		return
	}
	token, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}

	var req shutdownRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	view, err := h.service.RequestShutdown(r.Context(), token, strings.TrimSpace(req.Reason))
	if err != nil {
		status, code, msg := mapDomainError(err)
		logRejected(r.Context(), "request_shutdown", status, code, err)
		writeError(w, r, status, code, msg)
		return
	}
	writeSuccess(w, http.StatusAccepted, view)
}

// decodeOptionalBody accepts an empty body and rejects unknown fields otherwise.
func decodeOptionalBody(r *http.Request, out any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.New("invalid request body")
	}
	return nil
}
