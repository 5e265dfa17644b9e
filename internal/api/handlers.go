package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hyperengineering/courier"
	"github.com/rs/zerolog"
)

// statusResponse is the body of GET /api/sync/status.
type statusResponse struct {
	courier.SyncStatus
	Message string              `json:"message"`
	Stats   *courier.StoreStats `json:"stats,omitempty"`
}

// syncResponse is the body of the sync endpoints.
type syncResponse struct {
	OK     bool                   `json:"ok"`
	Error  string                 `json:"error,omitempty"`
	Status courier.SyncStatus     `json:"status"`
	Logs   *courier.LogSyncResult `json:"logs,omitempty"`
}

// preferenceBody is the body of PUT /api/preferences/{key}.
type preferenceBody struct {
	Value courier.Value `json:"value"`
}

func getPreferences(c *courier.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prefs, err := c.Preferences().GetAllPreferences()
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to get preferences")
			writeError(w, http.StatusInternalServerError, "Failed to get preferences")
			return
		}

		writeJSON(w, http.StatusOK, prefs)
	}
}

func getPreference(c *courier.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := courier.ParsePreferenceKey(chi.URLParam(r, "key"))
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}

		v, err := c.Preferences().Get(key)
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Str("key", string(key)).Msg("failed to get preference")
			writeError(w, errorStatus(err), "Failed to get preference")
			return
		}

		writeJSON(w, http.StatusOK, map[courier.PreferenceKey]courier.Value{key: v})
	}
}

// updatePreferences applies every key in the body or none of them.
func updatePreferences(c *courier.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]courier.Value
		if err := decodeBody(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		updates := make(courier.Preferences, len(body))
		for name, v := range body {
			key, err := courier.ParsePreferenceKey(name)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			updates[key] = v
		}

		if err := c.Preferences().UpdatePreferences(updates); err != nil {
			status := errorStatus(err)
			if status == http.StatusInternalServerError {
				zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to save preferences")
			}
			writeError(w, status, err.Error())
			return
		}

		getPreferences(c)(w, r)
	}
}

func updatePreference(c *courier.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := courier.ParsePreferenceKey(chi.URLParam(r, "key"))
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}

		var body preferenceBody
		if err := decodeBody(w, r, &body); err != nil || !body.Value.IsValid() {
			writeError(w, http.StatusBadRequest, `Body must be {"value": <scalar>}`)
			return
		}

		if err := c.Preferences().UpdatePreference(key, body.Value); err != nil {
			status := errorStatus(err)
			if status == http.StatusInternalServerError {
				zerolog.Ctx(r.Context()).Error().Err(err).Str("key", string(key)).Msg("failed to save preference")
			}
			writeError(w, status, err.Error())
			return
		}

		getPreference(c)(w, r)
	}
}

func syncPreferences(c *courier.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeSyncResult(w, r, c, c.SyncPreferences(r.Context()), nil)
	}
}

func forceSync(c *courier.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeSyncResult(w, r, c, c.ForceSync(r.Context()), nil)
	}
}

func syncLogs(c *courier.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := c.SyncLogs(r.Context())
		writeSyncResult(w, r, c, err, result)
	}
}

func writeSyncResult(w http.ResponseWriter, r *http.Request, c *courier.Client, err error, logs *courier.LogSyncResult) {
	resp := syncResponse{
		OK:     err == nil,
		Status: c.Status(),
		Logs:   logs,
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("sync request failed")
		resp.Error = err.Error()
		writeJSON(w, errorStatus(err), resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func syncStatus(c *courier.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := c.Status()
		resp := statusResponse{SyncStatus: st, Message: st.Message()}

		stats, err := c.Stats()
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to read store stats")
			writeError(w, errorStatus(err), "Failed to read store stats")
			return
		}
		resp.Stats = stats

		writeJSON(w, http.StatusOK, resp)
	}
}

func recordCall(c *courier.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rec courier.CallLog
		if err := decodeBody(w, r, &rec); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		saved, err := c.RecordCall(r.Context(), rec)
		if err != nil {
			writeError(w, errorStatus(err), err.Error())
			return
		}

		writeJSON(w, http.StatusCreated, saved)
	}
}

func recordSMS(c *courier.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rec courier.SMSLog
		if err := decodeBody(w, r, &rec); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		saved, err := c.RecordSMS(r.Context(), rec)
		if err != nil {
			writeError(w, errorStatus(err), err.Error())
			return
		}

		writeJSON(w, http.StatusCreated, saved)
	}
}

func health(c *courier.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := c.HealthCheck(r.Context())
		code := http.StatusOK
		if !status.Healthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, status)
	}
}
