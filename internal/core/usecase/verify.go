package usecase

import (
	"context"
	"strings"

	"github.com/greenorbit/climate-assistant/internal/core/domain"
	"github.com/greenorbit/climate-assistant/internal/core/ports"
)

// promptLeakMarkers are instruction-scaffold fragments that must never
// surface in a user-facing answer. Their presence means the model echoed
// its own instructions, which a retry will not fix.
var promptLeakMarkers = []string{
	"you are a helpful",
	"system prompt",
	"as an ai language model",
	"[instructions]",
	"### instruction",
}

const minAnswerWords = 3

// Verifier decides the fate of a candidate answer: cheap local checks
// first, then one groundedness round trip. Structural defects that a
// regeneration cannot repair reject immediately; repairable defects
// regenerate once.
type Verifier struct {
	checker ports.GroundednessChecker
}

func NewVerifier(checker ports.GroundednessChecker) *Verifier {
	return &Verifier{checker: checker}
}

func (v *Verifier) Verify(
	ctx context.Context,
	question string,
	answer domain.CandidateAnswer,
	retrieval domain.RetrievalResult,
) (domain.VerificationOutcome, error) {
	if reason, ok := answerUnusable(answer.Text); !ok {
		return domain.VerificationOutcome{Status: domain.VerificationRejected, Reason: reason}, nil
	}

	if missing := invalidCitations(answer.Citations, retrieval.DocumentIndex()); len(missing) > 0 {
		reason := "cites documents outside the retrieved set: " + strings.Join(missing, ", ")
		return retryOrReject(answer.Attempt, reason), nil
	}

	contexts := make([]string, 0, len(retrieval.Documents))
	for _, doc := range retrieval.Documents {
		contexts = append(contexts, doc.Text)
	}
	grounded, reason, err := v.checker.CheckGrounded(ctx, question, answer.Text, contexts)
	if err != nil {
		return domain.VerificationOutcome{}, err
	}
	if !grounded {
		if reason == "" {
			reason = "answer contains claims not supported by the retrieved documents"
		}
		return retryOrReject(answer.Attempt, reason), nil
	}
	return domain.VerificationOutcome{Status: domain.VerificationAccepted}, nil
}

// answerUnusable flags defects regeneration cannot repair.
func answerUnusable(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "empty answer", false
	}
	if len(strings.Fields(trimmed)) < minAnswerWords {
		return "answer too short to be responsive", false
	}
	lower := strings.ToLower(trimmed)
	for _, marker := range promptLeakMarkers {
		if strings.Contains(lower, marker) {
			return "answer leaks instruction scaffolding", false
		}
	}
	return "", true
}

func invalidCitations(citations []string, index map[string]domain.RetrievedDocument) []string {
	var missing []string
	for _, id := range citations {
		if _, ok := index[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func retryOrReject(attempt int, reason string) domain.VerificationOutcome {
	if attempt < domain.MaxGenerationAttempt {
		return domain.VerificationOutcome{Status: domain.VerificationRegenerate, Reason: reason}
	}
	return domain.VerificationOutcome{Status: domain.VerificationRejected, Reason: reason}
}
