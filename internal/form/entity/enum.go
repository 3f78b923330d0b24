package entity

// Outcome is the terminal state of one submission.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeSent
	OutcomeBot
	OutcomeMalformed
	OutcomeInvalid
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomeBot:
		return "bot"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}
