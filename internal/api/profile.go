package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kalambet/jobtrail/internal/storage"
)

type profileResponse struct {
	Profile map[string]string `json:"profile"`
	Version int               `json:"version"`
}

func handleGetProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keys, version, err := deps.Profile.Snapshot()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to get profile: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, profileResponse{Profile: keys, Version: version})
	}
}

type patchProfileRequest struct {
	ExpectedVersion int               `json:"expected_version"`
	Updates         map[string]string `json:"updates"`
}

// handlePatchProfile applies profile edits under compare-and-swap. A stale
// expected_version gets 409 plus the current version so the client can
// re-fetch and merge by hand.
func handlePatchProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req patchProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body: %v", err)
			return
		}
		if len(req.Updates) == 0 {
			httpError(w, http.StatusBadRequest, "INVALID_INPUT", "updates must not be empty")
			return
		}

		next, err := deps.Profile.Update(req.ExpectedVersion, req.Updates)
		if errors.Is(err, storage.ErrVersionConflict) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":           "profile was modified concurrently, re-fetch and retry",
				"code":            "VERSION_CONFLICT",
				"current_version": next,
			})
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to update profile: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "updated", "version": next})
	}
}
