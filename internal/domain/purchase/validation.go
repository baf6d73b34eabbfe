package purchase

// ValidationErrorSentinel is the result.error value meaning the validator
// could not process the receipt.
const ValidationErrorSentinel = -1

// ValidationEnvelope is the validation endpoint's response body.
type ValidationEnvelope struct {
	Result *ValidationResult `json:"result" validate:"required"`
}

// ValidationResult holds the two fields the contract defines. Both are
// optional; absence is not the same as a zero value.
type ValidationResult struct {
	Error                *int  `json:"error,omitempty"`
	IsActiveSubscription *bool `json:"isActiveSubscription,omitempty"`
}

// ValidationRequest is the validation endpoint's request body.
type ValidationRequest struct {
	Data string `json:"data" binding:"required"`
}

// Outcome is the verdict derived from a validation result.
type Outcome string

const (
	OutcomeRejected Outcome = "rejected"
	OutcomeActive   Outcome = "active"
	OutcomeExpired  Outcome = "expired"
	// OutcomeFailed covers transport and decoding failures.
	OutcomeFailed Outcome = "failed"
)

func (o Outcome) String() string {
	return string(o)
}

// Classify applies the contract precedence: the error sentinel wins over
// the subscription flag; anything not explicitly active is expired.
func (r ValidationResult) Classify() Outcome {
	if r.Error != nil && *r.Error == ValidationErrorSentinel {
		return OutcomeRejected
	}
	if r.IsActiveSubscription != nil && *r.IsActiveSubscription {
		return OutcomeActive
	}
	return OutcomeExpired
}

// ActiveResult, ExpiredResult and RejectedResult build the three canonical
// response shapes.
func ActiveResult() ValidationResult {
	active, code := true, 0
	return ValidationResult{Error: &code, IsActiveSubscription: &active}
}

func ExpiredResult() ValidationResult {
	active, code := false, 0
	return ValidationResult{Error: &code, IsActiveSubscription: &active}
}

func RejectedResult() ValidationResult {
	code := ValidationErrorSentinel
	return ValidationResult{Error: &code}
}
