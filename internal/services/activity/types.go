package activity

import "paxreport/internal/domain"

// TypeInfo documents one update type for the update types tool.
type TypeInfo struct {
	Description string `json:"description"`
	WhenToUse   string `json:"when_to_use"`
	Example     string `json:"example"`
}

var typeInfo = map[domain.UpdateType]TypeInfo{
	domain.UpdateCodeWritten: {
		Description: "New code, features, or components",
		WhenToUse:   "After implementing new functionality, adding features, or creating new files",
		Example:     "Implemented user registration form with validation",
	},
	domain.UpdateBugFix: {
		Description: "Bug fixes or issue resolutions",
		WhenToUse:   "After identifying and fixing a bug or resolving an issue",
		Example:     "Fixed null pointer exception in user profile loader",
	},
	domain.UpdateCodeReview: {
		Description: "Code review or analysis",
		WhenToUse:   "After reviewing code quality, patterns, or suggesting improvements",
		Example:     "Reviewed authentication flow and identified security improvements",
	},
	domain.UpdateLearning: {
		Description: "New concept learned or explained",
		WhenToUse:   "After explaining a concept, answering questions, or teaching new skills",
		Example:     "Explained async/await patterns and common pitfalls",
	},
	domain.UpdateRefactoring: {
		Description: "Code restructuring or improvements",
		WhenToUse:   "After reorganizing code, improving structure, or cleaning up",
		Example:     "Extracted common API logic into shared utilities",
	},
}

const UpdateRecommendation = "Call report_update after every substantive change to track learning progress."

type UpdateTypes struct {
	UpdateTypes    map[string]TypeInfo `json:"update_types"`
	Recommendation string              `json:"recommendation"`
}

// UpdateTypesListing is static and never fails.
func UpdateTypesListing() UpdateTypes {
	out := make(map[string]TypeInfo, len(typeInfo))
	for t, info := range typeInfo {
		out[string(t)] = info
	}
	return UpdateTypes{UpdateTypes: out, Recommendation: UpdateRecommendation}
}
