package handler

// SyncCorrelationsRequest represents request body for POST /groups/:group/sync/correlations.
// Repository may be omitted when the server has a default configured.
type SyncCorrelationsRequest struct {
	Repository     string `json:"repository"`
	SearchTerms    string `json:"search_terms" binding:"max=200"`
	ExclusionTerms string `json:"exclusion_terms" binding:"max=200"`
}
