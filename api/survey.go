package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/encrypted-survey/crypto/ethereum"
	"github.com/vocdoni/encrypted-survey/ledger"
	"github.com/vocdoni/encrypted-survey/log"
)

type signedPayload interface {
	envelope() *Envelope
}

// authenticate decodes a SignedRequest from the body into payload and
// returns the address of the signer and the raw payload. The payload must
// be signed for action. On failure the error is written and ok is false.
func authenticate(w http.ResponseWriter, r *http.Request, action string, payload signedPayload) (caller common.Address, raw []byte, ok bool) {
	req := &SignedRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return common.Address{}, nil, false
	}
	caller, err := ethereum.AddrFromSignature(req.Payload, req.Signature)
	if err != nil {
		ErrInvalidSignature.Withf("could not extract address from signature: %v", err).Write(w)
		return common.Address{}, nil, false
	}
	if err := json.Unmarshal(req.Payload, payload); err != nil {
		ErrMalformedBody.Withf("could not decode payload: %v", err).Write(w)
		return common.Address{}, nil, false
	}
	env := payload.envelope()
	if env.Action != action {
		ErrActionMismatch.Withf("signed for %q, expected %q", env.Action, action).Write(w)
		return common.Address{}, nil, false
	}
	skew := time.Now().Unix() - env.Timestamp
	if skew > MaxRequestSkew || skew < -MaxRequestSkew {
		ErrStaleRequest.Withf("skew of %ds", skew).Write(w)
		return common.Address{}, nil, false
	}
	return caller, req.Payload, true
}

// accept marks a signed payload as processed. It fails, writing the error,
// if the payload was already accepted.
func (a *API) accept(w http.ResponseWriter, raw []byte) bool {
	if !a.replay.firstSeen(raw) {
		ErrReplayedRequest.Write(w)
		return false
	}
	return true
}

// surveyFromURL returns the survey addressed by the URL.
func (a *API) surveyFromURL(w http.ResponseWriter, r *http.Request) (*ledger.Survey, bool) {
	addr, ok := addressParam(w, r, SurveyURLParam)
	if !ok {
		return nil, false
	}
	s, err := a.registry.Survey(addr)
	if err != nil {
		ErrSurveyNotFound.With(addr.Hex()).Write(w)
		return nil, false
	}
	return s, true
}

// authenticatedSurvey combines surveyFromURL and authenticate, checking
// that the payload was signed for the survey of the URL and was not
// processed before.
func (a *API) authenticatedSurvey(w http.ResponseWriter, r *http.Request, action string, payload signedPayload) (*ledger.Survey, common.Address, bool) {
	s, ok := a.surveyFromURL(w, r)
	if !ok {
		return nil, common.Address{}, false
	}
	caller, raw, ok := authenticate(w, r, action, payload)
	if !ok {
		return nil, common.Address{}, false
	}
	if payload.envelope().Survey != s.Address() {
		ErrSurveyMismatch.Write(w)
		return nil, common.Address{}, false
	}
	if !a.accept(w, raw) {
		return nil, common.Address{}, false
	}
	return s, caller, true
}

func addressParam(w http.ResponseWriter, r *http.Request, param string) (common.Address, bool) {
	value := chi.URLParam(r, param)
	if !common.IsHexAddress(value) {
		ErrMalformedAddress.With(value).Write(w)
		return common.Address{}, false
	}
	return common.HexToAddress(value), true
}

// deploySurvey deploys a new survey owned by the signer
// POST /surveys
func (a *API) deploySurvey(w http.ResponseWriter, r *http.Request) {
	req := &DeployRequest{}
	caller, raw, ok := authenticate(w, r, ActionDeploy, req)
	if !ok || !a.accept(w, raw) {
		return
	}
	_, receipt, err := a.registry.Deploy(caller)
	if err != nil {
		httpWriteError(w, err)
		return
	}
	httpWriteJSON(w, &DeployResponse{Address: receipt.Survey, TxID: receipt.TxID})
}

// listSurveys returns the addresses of all the surveys
// GET /surveys
func (a *API) listSurveys(w http.ResponseWriter, r *http.Request) {
	httpWriteJSON(w, &SurveyList{Surveys: a.registry.List()})
}

// survey returns the public snapshot of a survey
// GET /surveys/{address}
func (a *API) survey(w http.ResponseWriter, r *http.Request) {
	s, ok := a.surveyFromURL(w, r)
	if !ok {
		return
	}
	httpWriteJSON(w, s.Snapshot())
}

// configureSurvey sets the question and options
// POST /surveys/{address}/configure
func (a *API) configureSurvey(w http.ResponseWriter, r *http.Request) {
	req := &ConfigureRequest{}
	s, caller, ok := a.authenticatedSurvey(w, r, ActionConfigure, req)
	if !ok {
		return
	}
	receipt, err := s.ConfigureSurvey(caller, req.Question, req.Options)
	if err != nil {
		httpWriteError(w, err)
		return
	}
	log.Infow("survey configured", "survey", s.Address().Hex(), "options", len(req.Options))
	httpWriteJSON(w, receipt)
}

// submitVote submits an encrypted vote
// POST /surveys/{address}/votes
func (a *API) submitVote(w http.ResponseWriter, r *http.Request) {
	req := &VoteRequest{}
	s, caller, ok := a.authenticatedSurvey(w, r, ActionVote, req)
	if !ok {
		return
	}
	receipt, err := s.SubmitVote(caller, req.Option, req.Handle, req.Proof)
	if err != nil {
		httpWriteError(w, err)
		return
	}
	log.Infow("vote submitted", "survey", s.Address().Hex(), "voter", caller.Hex())
	httpWriteJSON(w, receipt)
}

// finalizeSurvey closes the survey
// POST /surveys/{address}/finalize
func (a *API) finalizeSurvey(w http.ResponseWriter, r *http.Request) {
	req := &FinalizeRequest{}
	s, caller, ok := a.authenticatedSurvey(w, r, ActionFinalize, req)
	if !ok {
		return
	}
	receipt, err := s.FinalizeSurvey(caller)
	if err != nil {
		httpWriteError(w, err)
		return
	}
	log.Infow("survey finalized", "survey", s.Address().Hex())
	httpWriteJSON(w, receipt)
}

// allowResultFor grants access to the total of an option
// POST /surveys/{address}/grants
func (a *API) allowResultFor(w http.ResponseWriter, r *http.Request) {
	req := &GrantRequest{}
	s, caller, ok := a.authenticatedSurvey(w, r, ActionGrant, req)
	if !ok {
		return
	}
	receipt, err := s.AllowResultFor(caller, req.Grantee, req.Option)
	if err != nil {
		httpWriteError(w, err)
		return
	}
	log.Infow("result access granted", "survey", s.Address().Hex(),
		"grantee", req.Grantee.Hex(), "option", req.Option)
	httpWriteJSON(w, receipt)
}

// encryptedTotal returns the handle of the encrypted total of an option
// GET /surveys/{address}/options/{index}/total
func (a *API) encryptedTotal(w http.ResponseWriter, r *http.Request) {
	s, ok := a.surveyFromURL(w, r)
	if !ok {
		return
	}
	index, err := strconv.ParseUint(chi.URLParam(r, OptionURLParam), 10, 32)
	if err != nil {
		ErrMalformedParam.Withf("option index: %v", err).Write(w)
		return
	}
	handle, err := s.EncryptedTotal(uint32(index))
	if err != nil {
		httpWriteError(w, err)
		return
	}
	httpWriteJSON(w, &TotalResponse{Survey: s.Address(), Option: uint32(index), Handle: handle})
}

// voter tells whether an address has voted
// GET /surveys/{address}/voters/{voter}
func (a *API) voter(w http.ResponseWriter, r *http.Request) {
	s, ok := a.surveyFromURL(w, r)
	if !ok {
		return
	}
	voter, ok := addressParam(w, r, VoterURLParam)
	if !ok {
		return
	}
	httpWriteJSON(w, &VoterResponse{Voter: voter, HasVoted: s.HasVoted(voter)})
}

// events lists the survey events
// GET /surveys/{address}/events?from=N
func (a *API) events(w http.ResponseWriter, r *http.Request) {
	s, ok := a.surveyFromURL(w, r)
	if !ok {
		return
	}
	var from uint64
	if v := r.URL.Query().Get(FromQueryParam); v != "" {
		var err error
		if from, err = strconv.ParseUint(v, 10, 64); err != nil {
			ErrMalformedParam.Withf("from: %v", err).Write(w)
			return
		}
	}
	events, err := s.Events(from)
	if err != nil {
		httpWriteError(w, err)
		return
	}
	httpWriteJSON(w, &EventsResponse{Events: events})
}
