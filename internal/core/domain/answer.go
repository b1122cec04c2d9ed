package domain

// CandidateAnswer is one generation attempt. Citations reference ids from
// the RetrievedDocument set that was supplied to the generator; the
// attempt counter starts at 0 and is capped at MaxGenerationAttempt.
type CandidateAnswer struct {
	Text      string   `json:"text"`
	Citations []string `json:"citations"`
	Attempt   int      `json:"attempt"`
}

// MaxGenerationAttempt caps the regenerate loop: attempt 0 plus one retry.
const MaxGenerationAttempt = 1

type VerificationStatus string

const (
	VerificationAccepted   VerificationStatus = "accepted"
	VerificationRegenerate VerificationStatus = "regenerate"
	VerificationRejected   VerificationStatus = "rejected"
)

type VerificationOutcome struct {
	Status VerificationStatus `json:"status"`
	Reason string             `json:"reason,omitempty"`
}

type ResultStatus string

const (
	ResultAnswered ResultStatus = "answered"
	ResultDeclined ResultStatus = "declined"
	ResultFailed   ResultStatus = "failed"
)

type DeclineReason string

const (
	DeclineOffTopic     DeclineReason = "off_topic"
	DeclineHarmful      DeclineReason = "harmful"
	DeclineNoDocuments  DeclineReason = "no_documents"
	DeclineVerification DeclineReason = "verification_exhausted"
)

type FailureKind string

const (
	FailureUpstreamUnavailable FailureKind = "upstream_unavailable"
	FailureUpstreamTimeout     FailureKind = "upstream_timeout"
	FailureMalformedResponse   FailureKind = "upstream_malformed_response"
	FailureInternal            FailureKind = "internal"
)

// PipelineResult is the one entity that outlives a pipeline run: it is
// what the cache stores and what the presentation layer receives.
type PipelineResult struct {
	Status        ResultStatus        `json:"status"`
	Answer        *CandidateAnswer    `json:"answer,omitempty"`
	Sources       []RetrievedDocument `json:"sources,omitempty"`
	DeclineReason DeclineReason       `json:"decline_reason,omitempty"`
	DeclineDetail string              `json:"decline_detail,omitempty"`
	FailureKind   FailureKind         `json:"failure_kind,omitempty"`
	Degraded      bool                `json:"degraded,omitempty"`
}

func Answered(answer CandidateAnswer, sources []RetrievedDocument, degraded bool) PipelineResult {
	return PipelineResult{
		Status:   ResultAnswered,
		Answer:   &answer,
		Sources:  sources,
		Degraded: degraded,
	}
}

func Declined(reason DeclineReason, detail string) PipelineResult {
	return PipelineResult{
		Status:        ResultDeclined,
		DeclineReason: reason,
		DeclineDetail: detail,
	}
}

func Failed(kind FailureKind) PipelineResult {
	return PipelineResult{
		Status:      ResultFailed,
		FailureKind: kind,
	}
}

// Cacheable reports whether a result is a stable property of the query.
// Answered and Declined outcomes are; transient failures are not.
func (r PipelineResult) Cacheable() bool {
	return r.Status != ResultFailed
}
