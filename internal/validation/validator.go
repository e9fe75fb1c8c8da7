// Package validation implements the submission validator (C13): a fixed
// battery of structural and semantic checks over an analyst Submission,
// aggregated into a ValidationResult with a quality score.
package validation

import (
	"strings"
	"time"

	playground "github.com/go-playground/validator/v10"

	"github.com/threatcore/analysis-core/internal/model"
)

// injectionTokens are scanned for in every stringy Submission field
// (spec §4.13 "Security" check).
var injectionTokens = []string{"<script>", "'; drop", "; drop table", "<iframe", "javascript:"}

// submissionSchema mirrors model.Submission's structural requirements
// for the go-playground/validator struct-tag pass.
type submissionSchema struct {
	ID         string  `validate:"required"`
	BountyID   string  `validate:"required"`
	EngineID   string  `validate:"required"`
	Verdict    string  `validate:"required"`
	Confidence float64 `validate:"gte=0,lte=1"`
}

// Config controls the validator's quality gate.
type Config struct {
	MinQualityScore float64
}

// DefaultConfig matches the spec's implied default: a simple majority of
// checks must pass.
func DefaultConfig() Config {
	return Config{MinQualityScore: 0.6}
}

// Validator runs the spec §4.13 check battery.
type Validator struct {
	cfg Config
	v   *playground.Validate
}

// New constructs a Validator.
func New(cfg Config) *Validator {
	if cfg.MinQualityScore <= 0 {
		cfg.MinQualityScore = 0.6
	}
	return &Validator{cfg: cfg, v: playground.New()}
}

// Validate runs every check against sub and bounty, in the fixed order
// spec §4.13 lists.
func (vr *Validator) Validate(sub model.Submission, bounty model.Bounty) model.ValidationResult {
	var checks []model.ValidationCheck
	var issues []model.ValidationIssue

	checks = append(checks, vr.checkRequiredFields(sub))
	checks = append(checks, vr.checkConfidenceRange(sub))
	checks = append(checks, vr.checkAnalysisDepth(sub))
	checks = append(checks, vr.checkVerdictAlignment(sub))
	checks = append(checks, vr.checkStakeRequirements(sub, bounty))
	checks = append(checks, vr.checkSecurity(sub))

	for i, c := range checks {
		if !c.Passed {
			issues = append(issues, issueFor(checks, i))
		}
	}

	passed := 0
	for _, c := range checks {
		if c.Passed {
			passed++
		}
	}
	qualityScore := float64(passed) / float64(len(checks))

	status := vr.classify(checks, issues, qualityScore)

	return model.ValidationResult{
		SubmissionID:    sub.ID,
		Status:          status,
		QualityScore:    qualityScore,
		Checks:          checks,
		Issues:          issues,
		Recommendations: recommendationsFor(issues),
	}
}

func timed(name string, severity model.IssueSeverity, fn func() (bool, string)) model.ValidationCheck {
	start := time.Now()
	passed, details := fn()
	return model.ValidationCheck{
		Name: name, Passed: passed, Severity: severity, Details: details,
		ExecutionTimeMS: time.Since(start).Milliseconds(),
	}
}

func (vr *Validator) checkRequiredFields(sub model.Submission) model.ValidationCheck {
	return timed("required_fields", model.IssueCritical, func() (bool, string) {
		schema := submissionSchema{ID: sub.ID, BountyID: sub.BountyID, EngineID: sub.EngineID, Verdict: string(sub.Verdict), Confidence: sub.Confidence}
		if err := vr.v.Struct(schema); err != nil {
			return false, err.Error()
		}
		if len(sub.AnalysisDetails.MalwareFamilies) == 0 && len(sub.AnalysisDetails.ThreatIndicators) == 0 {
			return false, "at least one of malware_families or threat_indicators must be non-empty"
		}
		return true, ""
	})
}

func (vr *Validator) checkConfidenceRange(sub model.Submission) model.ValidationCheck {
	return timed("confidence_range", model.IssueMajor, func() (bool, string) {
		if sub.Confidence < 0 || sub.Confidence > 1 {
			return false, "confidence out of [0,1]"
		}
		return true, ""
	})
}

func (vr *Validator) checkAnalysisDepth(sub model.Submission) model.ValidationCheck {
	return timed("analysis_depth", model.IssueModerate, func() (bool, string) {
		present := 0
		if len(sub.AnalysisDetails.MalwareFamilies) > 0 {
			present++
		}
		if len(sub.AnalysisDetails.ThreatIndicators) > 0 {
			present++
		}
		if len(sub.AnalysisDetails.Behavioral) > 0 {
			present++
		}
		if len(sub.AnalysisDetails.Static) > 0 {
			present++
		}
		if len(sub.AnalysisDetails.Network) > 0 {
			present++
		}
		if present < 3 {
			return false, "fewer than 3 of 5 optional analysis sections present"
		}
		return true, ""
	})
}

func (vr *Validator) checkVerdictAlignment(sub model.Submission) model.ValidationCheck {
	return timed("verdict_alignment", model.IssueMajor, func() (bool, string) {
		switch sub.Verdict {
		case model.VerdictMalicious:
			if len(sub.AnalysisDetails.ThreatIndicators) == 0 && len(sub.AnalysisDetails.MalwareFamilies) == 0 {
				return false, "malicious verdict requires indicators or malware families"
			}
		case model.VerdictSuspicious:
			if len(sub.AnalysisDetails.ThreatIndicators) == 0 {
				return false, "suspicious verdict requires threat indicators"
			}
		}
		return true, ""
	})
}

func (vr *Validator) checkStakeRequirements(sub model.Submission, bounty model.Bounty) model.ValidationCheck {
	return timed("stake_requirements", model.IssueCritical, func() (bool, string) {
		if sub.StakeAmount < bounty.MinStake {
			return false, "stake amount below bounty minimum"
		}
		return true, ""
	})
}

func (vr *Validator) checkSecurity(sub model.Submission) model.ValidationCheck {
	return timed("security", model.IssueCritical, func() (bool, string) {
		fields := []string{sub.ID, sub.BountyID, sub.EngineID}
		fields = append(fields, sub.AnalysisDetails.MalwareFamilies...)
		for _, ind := range sub.AnalysisDetails.ThreatIndicators {
			fields = append(fields, ind.Type, ind.Value)
		}
		for _, f := range fields {
			lower := strings.ToLower(f)
			for _, token := range injectionTokens {
				if strings.Contains(lower, token) {
					return false, "injection token detected: " + token
				}
			}
		}
		return true, ""
	})
}

func issueFor(checks []model.ValidationCheck, idx int) model.ValidationIssue {
	c := checks[idx]
	issueType := model.IssueTypeMissingField
	switch c.Name {
	case "confidence_range":
		issueType = model.IssueTypeOutOfRange
	case "analysis_depth":
		issueType = model.IssueTypeInsufficientDepth
	case "verdict_alignment":
		issueType = model.IssueTypeVerdictMismatch
	case "stake_requirements":
		issueType = model.IssueTypeInsufficientStake
	case "security":
		issueType = model.IssueTypeSuspiciousActivity
	}
	return model.ValidationIssue{Type: issueType, Severity: c.Severity, Field: c.Name, Detail: c.Details}
}

// classify applies the spec §4.13 status rules.
func (vr *Validator) classify(checks []model.ValidationCheck, issues []model.ValidationIssue, qualityScore float64) model.ValidationStatus {
	for _, c := range checks {
		if !c.Passed && c.Severity == model.IssueCritical {
			return model.ValidationFailed
		}
	}
	if qualityScore < vr.cfg.MinQualityScore {
		return model.ValidationFailed
	}
	for _, i := range issues {
		if i.Severity == model.IssueMajor || i.Severity == model.IssueModerate {
			return model.ValidationPassedWithWarnings
		}
	}
	return model.ValidationPassed
}

func recommendationsFor(issues []model.ValidationIssue) []string {
	var recs []string
	for _, i := range issues {
		switch i.Type {
		case model.IssueTypeInsufficientDepth:
			recs = append(recs, "add more supporting analysis sections (behavioral, static, or network)")
		case model.IssueTypeInsufficientStake:
			recs = append(recs, "increase stake to meet the bounty's minimum")
		case model.IssueTypeSuspiciousActivity:
			recs = append(recs, "remove injected content from submission fields")
		}
	}
	return recs
}
