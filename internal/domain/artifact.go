package domain

import "time"

// Space groups standards and topics inside an organization
type Space struct {
	ID             string
	OrganizationID string
	Name           string
	Slug           string
	CreatedAt      time.Time
}

// Standard is a named set of coding rules
type Standard struct {
	ID          string
	SpaceID     string
	Name        string
	Slug        string
	Description string
	Scope       string
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Rule is a single rule of a standard version
type Rule struct {
	ID                string
	StandardVersionID string
	Content           string
	Position          int
}

// StandardVersion is an immutable snapshot of a standard and its rules
type StandardVersion struct {
	ID          string
	StandardID  string
	Name        string
	Slug        string
	Description string
	Scope       string
	Version     int
	Rules       []Rule
	Embedding   []float32
	CreatedBy   string
	CreatedAt   time.Time
}

// HasEmbedding reports whether a vector is stored for this version
func (v *StandardVersion) HasEmbedding() bool {
	return len(v.Embedding) > 0
}

// Recipe is a named step-based implementation guide
type Recipe struct {
	ID        string
	SpaceID   string
	Name      string
	Slug      string
	Content   string
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RecipeVersion is an immutable snapshot of a recipe
type RecipeVersion struct {
	ID        string
	RecipeID  string
	Name      string
	Slug      string
	Content   string
	Version   int
	Embedding []float32
	CreatedBy string
	CreatedAt time.Time
}

// HasEmbedding reports whether a vector is stored for this version
func (v *RecipeVersion) HasEmbedding() bool {
	return len(v.Embedding) > 0
}

// SimilarStandard is a standard version with its similarity to a query vector
type SimilarStandard struct {
	Version    *StandardVersion `json:"version"`
	Similarity float64          `json:"similarity"`
}

// SimilarRecipe is a recipe version with its similarity to a query vector
type SimilarRecipe struct {
	Version    *RecipeVersion `json:"version"`
	Similarity float64        `json:"similarity"`
}

// AddRuleCommand appends a rule to the latest version of a standard.
// StandardID is preferred; StandardSlug is only used when it is empty.
type AddRuleCommand struct {
	StandardID     string
	StandardSlug   string
	RuleContent    string
	OrganizationID string
	UserID         string
}

// UpdateRuleCommand replaces one rule's content in a new standard version
type UpdateRuleCommand struct {
	StandardID     string
	RuleID         string
	NewRuleContent string
	OrganizationID string
	UserID         string
}

// ArtifactsWithoutEmbeddings is the backfill candidate set of a space
type ArtifactsWithoutEmbeddings struct {
	Standards []*StandardVersion
	Recipes   []*RecipeVersion
}
