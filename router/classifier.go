package router

import "context"

// ClassificationRequest is the compact, structured input handed to an
// LLMClassifier: a state summary plus the user's latest message.
type ClassificationRequest struct {
	Summary     StateSummary
	UserMessage string
}

// ClassificationResult is the raw, unvalidated output of a classifier
// call, before Decision normalization (confidence clamp, reasons cap,
// lane substitution).
type ClassificationResult struct {
	Lane       string
	Intent     string
	Confidence float64
	Reasoning  []string
}

// LLMClassifier is the contract any LLM provider SDK must implement to
// back the Router (spec §4.5). It fixes only the shape of the call, not a
// concrete vendor: the Router constructs a ClassificationRequest and
// expects a structured ClassificationResult back, under the caller's
// context deadline.
type LLMClassifier interface {
	Classify(ctx context.Context, req ClassificationRequest) (ClassificationResult, error)
}

// StateSummary is the compact, privacy-conscious view of session state
// passed to the classifier: identity, current lane, and a handful of
// booleans/counts a router prompt needs to disambiguate intent, never the
// full dialogue history.
type StateSummary struct {
	TenantID        string `json:"tenant_id"`
	WaID            string `json:"wa_id"`
	CurrentLane     string `json:"current_lane"`
	AddressPresent  bool   `json:"address_present"`
	CartItemsCount  int    `json:"cart_items_count"`
	CommerceState   string `json:"commerce_state,omitempty"`
	PhoneVerified   bool   `json:"phone_verified"`
	SupportCaseOpen bool   `json:"support_case_open"`
}
