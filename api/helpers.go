package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/vocdoni/encrypted-survey/log"
)

// httpWriteJSON helper function allows to write a JSON response.
func httpWriteJSON(w http.ResponseWriter, data any) {
	jdata, err := json.Marshal(data)
	if err != nil {
		ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	n, err := w.Write(jdata)
	if err != nil {
		log.Warnw("failed to write http response", "error", err)
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
	log.Debugw("api response", "bytes", n, "data", strings.ReplaceAll(string(jdata), "\"", ""))
}

// httpWriteOK helper function allows to write an OK response.
func httpWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// httpWriteError writes err as the API error of the first ledger or gateway
// failure it wraps, or as an internal error otherwise.
func httpWriteError(w http.ResponseWriter, err error) {
	for _, e := range domainErrors {
		if errors.Is(err, e.Err) {
			Error{Err: err, Code: e.Code, HTTPstatus: e.HTTPstatus}.Write(w)
			return
		}
	}
	log.Warnw("unexpected API error", "error", err.Error())
	ErrGenericInternalServerError.WithErr(err).Write(w)
}
