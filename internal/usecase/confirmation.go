package usecase

import "strings"

// ConfirmationVerdict is how a message relates to a pending destructive action.
type ConfirmationVerdict int

const (
	// VerdictUnrelated means the message is neither a yes nor a no. The
	// pending action is stale and normal processing should continue.
	VerdictUnrelated ConfirmationVerdict = iota
	// VerdictAffirm means the user approved the pending action.
	VerdictAffirm
	// VerdictDeny means the user rejected the pending action.
	VerdictDeny
)

// Matching is exact against the whole trimmed lowercased message, not a
// substring: "yes please also delete everything" and even "yes!" are
// deliberately unrelated, not approvals. The gate guards deletions, so
// anything short of a plain token falls through to normal processing.
var (
	affirmTokens = map[string]struct{}{
		"yes": {}, "y": {}, "confirm": {}, "do it": {}, "go ahead": {},
		"ok": {}, "okay": {}, "sure": {}, "yeah": {}, "yep": {},
	}
	denyTokens = map[string]struct{}{
		"no": {}, "n": {}, "cancel": {}, "stop": {}, "nevermind": {},
		"never mind": {}, "nah": {}, "nope": {},
	}
)

// ClassifyConfirmation decides whether a message body answers a pending
// yes/no confirmation prompt.
func ClassifyConfirmation(body string) ConfirmationVerdict {
	normalized := strings.ToLower(strings.TrimSpace(body))
	if _, ok := affirmTokens[normalized]; ok {
		return VerdictAffirm
	}
	if _, ok := denyTokens[normalized]; ok {
		return VerdictDeny
	}
	return VerdictUnrelated
}
