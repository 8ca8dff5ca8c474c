package domain

import "sort"

// ScanLevel is the intensity tier requested from the remote scanner.
// The zero value is not a valid level.
type ScanLevel int

const (
	LevelLow ScanLevel = iota + 1
	LevelMedium
	LevelHigh
)

// DefaultLevel is used when a scan request omits the level.
const DefaultLevel = LevelMedium

var levelNames = map[ScanLevel]string{
	LevelLow:    "low",
	LevelMedium: "medium",
	LevelHigh:   "high",
}

func (l ScanLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether l is one of the three known levels.
func (l ScanLevel) Valid() bool {
	_, ok := levelNames[l]
	return ok
}

// LevelInfo is informational only; the remote service decides what actually runs.
type LevelInfo struct {
	Description   string   `json:"description"`
	Tests         []string `json:"tests"`
	EstimatedTime string   `json:"estimated_time"`
	UseCase       string   `json:"use_case"`
}

var levelPolicy = map[ScanLevel]LevelInfo{
	LevelLow: {
		Description:   "Quick passive checks for common misconfigurations",
		Tests:         []string{"security_headers", "ssl_tls", "information_disclosure", "cors"},
		EstimatedTime: "15-30 seconds",
		UseCase:       "Fast feedback while iterating on a feature",
	},
	LevelMedium: {
		Description:   "Standard scan with active injection probes",
		Tests:         []string{"security_headers", "ssl_tls", "information_disclosure", "cors", "sql_injection", "xss", "open_redirect"},
		EstimatedTime: "30-60 seconds",
		UseCase:       "Routine check before committing or opening a pull request",
	},
	LevelHigh: {
		Description:   "Thorough scan covering injection, traversal and authentication flaws",
		Tests:         []string{"security_headers", "ssl_tls", "information_disclosure", "cors", "sql_injection", "xss", "open_redirect", "command_injection", "path_traversal", "ssrf", "authentication_bypass"},
		EstimatedTime: "1-2 minutes",
		UseCase:       "Pre-release audit of a service before deployment",
	},
}

// ScanRecommendation accompanies the scan options listing.
const ScanRecommendation = "Use 'medium' for most development work, 'low' for quick checks, and 'high' before deploying to production."

// ParseLevel validates a level name. Only the exact lowercase names are accepted.
func ParseLevel(s string) (ScanLevel, error) {
	for l, name := range levelNames {
		if name == s {
			return l, nil
		}
	}
	return 0, &ScanError{
		Kind:        KindInvalidLevel,
		Level:       s,
		Message:     "invalid scan level '" + s + "'. Must be one of: low, medium, high",
		ValidLevels: levelDescriptions(),
	}
}

// DescribeAll returns a copy of the static level policy.
func DescribeAll() map[ScanLevel]LevelInfo {
	out := make(map[ScanLevel]LevelInfo, len(levelPolicy))
	for l, info := range levelPolicy {
		info.Tests = append([]string(nil), info.Tests...)
		out[l] = info
	}
	return out
}

// Levels returns the known levels ordered by intensity.
func Levels() []ScanLevel {
	out := make([]ScanLevel, 0, len(levelNames))
	for l := range levelNames {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ScanOptions is the payload of the scan options tool.
type ScanOptions struct {
	ScanLevels     map[string]LevelInfo `json:"scan_levels"`
	Recommendation string               `json:"recommendation"`
}

// ScanOptionsListing renders the level policy keyed by level name.
func ScanOptionsListing() ScanOptions {
	levels := make(map[string]LevelInfo, len(levelPolicy))
	for l, info := range DescribeAll() {
		levels[l.String()] = info
	}
	return ScanOptions{ScanLevels: levels, Recommendation: ScanRecommendation}
}

func levelDescriptions() map[string]string {
	out := make(map[string]string, len(levelPolicy))
	for l, info := range levelPolicy {
		out[l.String()] = info.Description
	}
	return out
}
