package api

import (
	"encoding/json"
	"net/http"

	"github.com/vocdoni/encrypted-survey/gateway"
)

// gatewayInfo returns the public parameters of the gateway
// GET /gateway/info
func (a *API) gatewayInfo(w http.ResponseWriter, r *http.Request) {
	info, err := a.gateway.Info(r.Context())
	if err != nil {
		httpWriteError(w, err)
		return
	}
	httpWriteJSON(w, info)
}

// encryptInput encrypts a vote weight bound to a contract and sender
// POST /gateway/inputs
func (a *API) encryptInput(w http.ResponseWriter, r *http.Request) {
	req := &EncryptRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	handle, proof, err := a.gateway.Encrypt(req.Weight, req.Contract, req.Sender)
	if err != nil {
		httpWriteError(w, err)
		return
	}
	httpWriteJSON(w, &EncryptResponse{Handle: handle, Proof: proof})
}

// decrypt returns a plaintext sealed to the credential public key
// POST /gateway/decrypt
func (a *API) decrypt(w http.ResponseWriter, r *http.Request) {
	req := &gateway.DecryptRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	sealed, err := a.gateway.Decrypt(r.Context(), req)
	if err != nil {
		httpWriteError(w, err)
		return
	}
	httpWriteJSON(w, sealed)
}
