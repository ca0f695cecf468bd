// Package signature flags security-relevant patterns in page scripts using a
// fixed table of heuristic detectors.
package signature

import (
	"regexp"
	"strings"
)

// Finding identifies one signature.
type Finding string

const (
	DangerousExecution Finding = "Dangerous Execution"
	DOMXSSSink         Finding = "DOM XSS Sink"
	GoogleAPIKeyLeak   Finding = "Google API Key Leak"
	OpenAIKeyLeak      Finding = "OpenAI Key Leak"
	AWSCredentials     Finding = "AWS Credentials"
	FirebaseURLFound   Finding = "Firebase URL Found"
)

// Severity ranks how alarming a finding is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Classification is the overall verdict for one script.
type Classification string

const (
	Clean   Classification = "Clean"
	Sketchy Classification = "Sketchy"
)

// Signature pairs a finding with the pattern that triggers it.
type Signature struct {
	Finding  Finding
	Severity Severity
	Pattern  *regexp.Regexp
}

// Matches reports whether text triggers the signature.
func (s Signature) Matches(text string) bool {
	return s.Pattern.MatchString(text)
}

// Table is evaluated in order; every entry runs against every script.
var Table = []Signature{
	{DangerousExecution, SeverityWarning, regexp.MustCompile(`eval\(|setTimeout\(.*['"].*['"]\)`)},
	{DOMXSSSink, SeverityWarning, regexp.MustCompile(`innerHTML|outerHTML|document\.write`)},
	{GoogleAPIKeyLeak, SeverityCritical, regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`)},
	{OpenAIKeyLeak, SeverityCritical, regexp.MustCompile(`sk-[a-zA-Z0-9]{48}`)},
	{AWSCredentials, SeverityCritical, regexp.MustCompile(`(?i)aws_access_key_id|aws_secret_access_key`)},
	{FirebaseURLFound, SeverityInfo, regexp.MustCompile(`firebaseio\.com`)},
}

// Classify returns the findings text triggers, in table order.
func Classify(text string) []Finding {
	findings := []Finding{}
	for _, sig := range Table {
		if sig.Matches(text) {
			findings = append(findings, sig.Finding)
		}
	}
	return findings
}

// Verdict is the scan result for one script.
type Verdict struct {
	DisplayName    string         `json:"display_name"`
	FullURL        string         `json:"full_url"`
	Findings       []Finding      `json:"findings"`
	Classification Classification `json:"classification"`
	// Severity is the worst severity among Findings; empty when clean.
	Severity Severity `json:"severity,omitempty"`
}

// NewVerdict classifies content and builds the verdict for the script at url.
func NewVerdict(url, content string) Verdict {
	findings := Classify(content)
	class := Clean
	if len(findings) > 0 {
		class = Sketchy
	}
	return Verdict{
		DisplayName:    DisplayName(url),
		FullURL:        url,
		Findings:       findings,
		Classification: class,
		Severity:       worst(findings),
	}
}

var severityRank = map[Severity]int{
	SeverityInfo:     1,
	SeverityWarning:  2,
	SeverityCritical: 3,
}

func worst(findings []Finding) Severity {
	var out Severity
	for _, f := range findings {
		if s := SeverityOf(f); severityRank[s] > severityRank[out] {
			out = s
		}
	}
	return out
}

// InlineScriptName names scripts whose URL has no final path segment.
const InlineScriptName = "inline-script"

// DisplayName returns the text after the last "/" of url, or InlineScriptName
// when that is empty.
func DisplayName(url string) string {
	if i := strings.LastIndex(url, "/"); i >= 0 {
		url = url[i+1:]
	}
	if url == "" {
		return InlineScriptName
	}
	return url
}

// SeverityOf returns the severity of f, or SeverityInfo for unknown findings.
func SeverityOf(f Finding) Severity {
	for _, sig := range Table {
		if sig.Finding == f {
			return sig.Severity
		}
	}
	return SeverityInfo
}
