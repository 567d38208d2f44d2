package api

import (
	"net/http"
)

// RegisterResponse is the JSON body returned by PUT /devices/{name}.
type RegisterResponse struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
}

// handleRegister handles PUT /devices/{name}. Without a device header a new,
// unauthorized device is created; with one, the named device is claimed and
// renamed. The assigned id is returned in the Location header.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "device name is required")
		return
	}

	id, err := s.coord.Register(r.Context(), deviceFrom(r.Context()), name)
	if err != nil {
		writeSyncError(w, r, err)
		return
	}

	w.Header().Set("Location", id)
	writeJSON(w, http.StatusOK, RegisterResponse{DeviceID: id, Name: name})
}

// handleDeregister handles DELETE /devices/{id}. A device may only deregister
// itself; an already-deregistered device is success.
func (s *Server) handleDeregister(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.Deregister(r.Context(), deviceFrom(r.Context()), r.PathValue("id")); err != nil {
		writeSyncError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusOK)
}
