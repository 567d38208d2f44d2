package api

import (
	"io"
	"net/http"

	"github.com/anders/showsync/internal/sync"
)

// ChecksumHeader declares the MD5 hex digest of the request body on pushes
// and echoes it on responses (alongside ETag).
const ChecksumHeader = "Content-MD5"

// PullResponse is the JSON body of GET /records/all and GET /records/pending.
type PullResponse struct {
	Data     []sync.Record `json:"data"`
	Checksum string        `json:"checksum"`
}

// StatusResponse is the generic success body for idempotent operations.
type StatusResponse struct {
	Status string `json:"status"`
}

var statusOK = StatusResponse{Status: "ok"}

// handlePushRecord handles POST /records. The body is the record envelope
// {id, body}; Content-MD5 must carry its MD5 hex digest. The checksum is
// echoed as the response ETag once the record is persisted.
func (s *Server) handlePushRecord(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "read request body")
		return
	}

	rec, sum, err := s.coord.Push(r.Context(), deviceFrom(r.Context()), payload, r.Header.Get(ChecksumHeader))
	if err != nil {
		writeSyncError(w, r, err)
		return
	}

	s.metrics.RecordPush()
	w.Header().Set("ETag", sum)
	w.Header().Set(ChecksumHeader, sum)
	writeJSON(w, http.StatusOK, rec)
}

// handleDeleteRecord handles DELETE /records/{id}. Deleting a record that
// does not exist is already-converged and returns success.
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.Delete(r.Context(), deviceFrom(r.Context()), r.PathValue("id")); err != nil {
		writeSyncError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusOK)
}

// handlePullAll handles GET /records/all: every non-purged record plus a
// checksum over the serialized set, for bulk/first-time sync.
func (s *Server) handlePullAll(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordPullRequest()

	recs, sum, err := s.coord.PullAll(r.Context(), deviceFrom(r.Context()))
	if err != nil {
		writeSyncError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PullResponse{Data: recs, Checksum: sum})
}

// handlePullPending handles GET /records/pending: records still pending for
// the calling device. The payload checksum doubles as the ETag.
func (s *Server) handlePullPending(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordPullRequest()

	recs, sum, err := s.coord.PullPending(r.Context(), deviceFrom(r.Context()))
	if err != nil {
		writeSyncError(w, r, err)
		return
	}
	w.Header().Set("ETag", sum)
	writeJSON(w, http.StatusOK, PullResponse{Data: recs, Checksum: sum})
}

// handleAcknowledge handles DELETE /records/{id}/pending: the calling device
// confirms it durably applied the pulled record. Repeats succeed silently.
func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.AcknowledgePending(r.Context(), deviceFrom(r.Context()), r.PathValue("id")); err != nil {
		writeSyncError(w, r, err)
		return
	}
	s.metrics.RecordAck()
	writeJSON(w, http.StatusOK, statusOK)
}
