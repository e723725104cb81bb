package api

const (
	// PingEndpoint is the endpoint for checking the API status
	PingEndpoint = "/ping"

	// SurveysEndpoint is the endpoint to deploy (POST) and list (GET) surveys
	SurveysEndpoint = "/surveys"
	// SurveyEndpoint returns the snapshot of a survey
	SurveyURLParam = "address"
	SurveyEndpoint = SurveysEndpoint + "/{" + SurveyURLParam + "}"
	// SurveyConfigureEndpoint sets the question and options of a survey
	SurveyConfigureEndpoint = SurveyEndpoint + "/configure"
	// SurveyVotesEndpoint is the endpoint for submitting encrypted votes
	SurveyVotesEndpoint = SurveyEndpoint + "/votes"
	// SurveyFinalizeEndpoint closes a survey
	SurveyFinalizeEndpoint = SurveyEndpoint + "/finalize"
	// SurveyGrantsEndpoint grants access to the result of an option
	SurveyGrantsEndpoint = SurveyEndpoint + "/grants"
	// SurveyTotalEndpoint returns the handle of the encrypted total of an option
	OptionURLParam      = "index"
	SurveyTotalEndpoint = SurveyEndpoint + "/options/{" + OptionURLParam + "}/total"
	// SurveyVoterEndpoint tells whether an address has voted
	VoterURLParam       = "voter"
	SurveyVoterEndpoint = SurveyEndpoint + "/voters/{" + VoterURLParam + "}"
	// SurveyEventsEndpoint lists the events of a survey, optionally from
	// a sequence number given by the FromQueryParam query parameter
	SurveyEventsEndpoint = SurveyEndpoint + "/events"
	FromQueryParam       = "from"

	// GatewayInfoEndpoint returns the public parameters of the gateway
	GatewayInfoEndpoint = "/gateway/info"
	// GatewayInputsEndpoint encrypts a weight on behalf of the caller
	GatewayInputsEndpoint = "/gateway/inputs"
	// GatewayDecryptEndpoint decrypts a handle for a credential holder
	GatewayDecryptEndpoint = "/gateway/decrypt"
)
