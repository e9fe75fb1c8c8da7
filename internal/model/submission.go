package model

// SubmissionStatus tracks an analyst submission through the bounty
// pipeline's validation gate.
type SubmissionStatus string

const (
	SubmissionPending   SubmissionStatus = "pending"
	SubmissionActive    SubmissionStatus = "active"
	SubmissionValidated SubmissionStatus = "validated"
	SubmissionRejected  SubmissionStatus = "rejected"
	SubmissionExpired   SubmissionStatus = "expired"
)

// AnalysisDetails carries the analyst-supplied evidence for a Submission.
type AnalysisDetails struct {
	MalwareFamilies  []string
	ThreatIndicators []ThreatIndicator
	Behavioral       map[string]interface{}
	Static           map[string]interface{}
	Network          map[string]interface{}
}

// ThreatIndicator is a single piece of analyst-reported evidence; Value
// is scanned by the security check for injection tokens.
type ThreatIndicator struct {
	Type  string
	Value string
}

// Bounty is the minimal bounty context the validator needs to check
// stake requirements.
type Bounty struct {
	ID        string
	MinStake  float64
	AssetType string
}

// Submission is an analyst-submitted verdict awaiting validation.
type Submission struct {
	ID              string
	BountyID        string
	EngineID        string
	Verdict         Verdict
	Confidence      float64
	AnalysisDetails AnalysisDetails
	StakeAmount     float64
	Status          SubmissionStatus
}

// ValidationStatus is the aggregate outcome of the submission validator.
type ValidationStatus string

const (
	ValidationPassed               ValidationStatus = "passed"
	ValidationPassedWithWarnings   ValidationStatus = "passed_with_warnings"
	ValidationFailed               ValidationStatus = "failed"
	ValidationRequiresReview       ValidationStatus = "requires_review"
)

// IssueSeverity grades a ValidationIssue.
type IssueSeverity string

const (
	IssueCritical IssueSeverity = "critical"
	IssueMajor    IssueSeverity = "major"
	IssueModerate IssueSeverity = "moderate"
	IssueMinor    IssueSeverity = "minor"
)

// IssueType categorizes a ValidationIssue.
type IssueType string

const (
	IssueTypeMissingField      IssueType = "missing_field"
	IssueTypeOutOfRange        IssueType = "out_of_range"
	IssueTypeInsufficientDepth IssueType = "insufficient_depth"
	IssueTypeVerdictMismatch   IssueType = "verdict_mismatch"
	IssueTypeInsufficientStake IssueType = "insufficient_stake"
	IssueTypeSuspiciousActivity IssueType = "suspicious_activity"
)

// ValidationIssue is a single problem surfaced by a check.
type ValidationIssue struct {
	Type     IssueType
	Severity IssueSeverity
	Field    string
	Detail   string
}

// ValidationCheck is the pass/fail record of a single battery check.
type ValidationCheck struct {
	Name            string
	Passed          bool
	Severity        IssueSeverity
	Details         string
	ExecutionTimeMS int64
}

// ValidationResult is the aggregate outcome of validating a Submission.
type ValidationResult struct {
	SubmissionID    string
	Status          ValidationStatus
	QualityScore    float64
	Checks          []ValidationCheck
	Issues          []ValidationIssue
	Recommendations []string
}
