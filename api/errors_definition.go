//nolint:lll
package api

import (
	"fmt"
	"net/http"

	"github.com/vocdoni/encrypted-survey/gateway"
	"github.com/vocdoni/encrypted-survey/ledger"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the user's fault,
// and they return HTTP Status 400, 403 or 404, whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500 or 503, or something else if appropriate.
//
// NEVER change any of the current error codes, only append new errors after the current last 4XXX or 5XXX
// If you notice there's a gap, DON'T fill it in, that code was used in the past and shouldn't be reused.
//
// Ledger and gateway failures wrap their sentinel errors, so clients can
// match them with errors.Is after ErrorFromResponse.
var (
	ErrResourceNotFound    = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody       = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrInvalidSignature    = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid signature")}
	ErrMalformedAddress    = Error{Code: 40006, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed address")}
	ErrSurveyNotFound      = Error{Code: 40007, HTTPstatus: http.StatusNotFound, Err: ledger.ErrSurveyNotFound}
	ErrMalformedParam      = Error{Code: 40008, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed parameter")}
	ErrStaleRequest        = Error{Code: 40009, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("request timestamp out of range")}
	ErrNotOwner            = Error{Code: 40010, HTTPstatus: http.StatusForbidden, Err: ledger.ErrNotOwner}
	ErrAlreadyConfigured   = Error{Code: 40011, HTTPstatus: http.StatusConflict, Err: ledger.ErrAlreadyConfigured}
	ErrTooFewOptions       = Error{Code: 40012, HTTPstatus: http.StatusBadRequest, Err: ledger.ErrTooFewOptions}
	ErrTooManyOptions      = Error{Code: 40013, HTTPstatus: http.StatusBadRequest, Err: ledger.ErrTooManyOptions}
	ErrSurveyNotConfigured = Error{Code: 40014, HTTPstatus: http.StatusConflict, Err: ledger.ErrSurveyNotConfigured}
	ErrSurveyClosed        = Error{Code: 40015, HTTPstatus: http.StatusConflict, Err: ledger.ErrSurveyClosed}
	ErrAlreadyVoted        = Error{Code: 40016, HTTPstatus: http.StatusConflict, Err: ledger.ErrAlreadyVoted}
	ErrInvalidOption       = Error{Code: 40017, HTTPstatus: http.StatusBadRequest, Err: ledger.ErrInvalidOption}
	ErrInvalidProof        = Error{Code: 40018, HTTPstatus: http.StatusBadRequest, Err: ledger.ErrInvalidProof}
	ErrAlreadyFinalized    = Error{Code: 40019, HTTPstatus: http.StatusConflict, Err: ledger.ErrAlreadyFinalized}
	ErrSurveyMismatch      = Error{Code: 40020, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("payload survey does not match the URL")}
	ErrInvalidWeight       = Error{Code: 40021, HTTPstatus: http.StatusBadRequest, Err: gateway.ErrInvalidWeight}
	ErrUnauthorized        = Error{Code: 40022, HTTPstatus: http.StatusForbidden, Err: gateway.ErrUnauthorized}
	ErrUnknownHandle       = Error{Code: 40023, HTTPstatus: http.StatusNotFound, Err: gateway.ErrUnknownHandle}
	ErrActionMismatch      = Error{Code: 40024, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("payload action does not match the endpoint")}
	ErrReplayedRequest     = Error{Code: 40025, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("signed request already processed")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
)

var errorsByCode = func() map[int]Error {
	m := make(map[int]Error)
	for _, e := range []Error{
		ErrResourceNotFound, ErrMalformedBody, ErrInvalidSignature, ErrMalformedAddress,
		ErrSurveyNotFound, ErrMalformedParam, ErrStaleRequest, ErrNotOwner,
		ErrAlreadyConfigured, ErrTooFewOptions, ErrTooManyOptions, ErrSurveyNotConfigured,
		ErrSurveyClosed, ErrAlreadyVoted, ErrInvalidOption, ErrInvalidProof,
		ErrAlreadyFinalized, ErrSurveyMismatch, ErrInvalidWeight, ErrUnauthorized,
		ErrUnknownHandle, ErrActionMismatch, ErrReplayedRequest,
		ErrMarshalingServerJSONFailed, ErrGenericInternalServerError,
	} {
		m[e.Code] = e
	}
	return m
}()

// domainErrors maps ledger and gateway errors to their API error, in match
// order.
var domainErrors = []Error{
	ErrSurveyNotFound, ErrNotOwner, ErrAlreadyConfigured, ErrTooFewOptions,
	ErrTooManyOptions, ErrSurveyNotConfigured, ErrSurveyClosed, ErrAlreadyVoted,
	ErrInvalidOption, ErrInvalidProof, ErrAlreadyFinalized, ErrInvalidWeight,
	ErrUnauthorized, ErrUnknownHandle,
}
