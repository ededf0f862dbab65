package guard

// Snapshot is the current month's usage for one workspace, rebuilt fresh
// from the output log on every guard evaluation and never cached across
// requests.
type Snapshot struct {
	RequestsUsed int64   `json:"requestsUsed"`
	TokensUsed   int64   `json:"tokensUsed"`
	CostUSDUsed  float64 `json:"costUsdUsed"`

	// ByTool maps tool id → cost. Outputs without an attributable tool
	// contribute to the totals and tags but not here.
	ByTool map[string]float64 `json:"byTool"`

	// ByTag maps tag key → cost. Each tag is stored under both its bare
	// value and a "client:"/"project:" prefixed key, so budget-scope lookups
	// succeed by either convention.
	ByTag map[string]float64 `json:"byTag"`
}

// NewSnapshot returns an empty snapshot with initialized breakdown maps.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		ByTool: make(map[string]float64),
		ByTag:  make(map[string]float64),
	}
}

const (
	clientTagPrefix  = "client:"
	projectTagPrefix = "project:"
)

// tagKeys returns the snapshot keys a tag value is stored under: the bare
// value and the prefixed form.
func tagKeys(prefix, tag string) []string {
	return []string{tag, prefix + tag}
}

// invocationTagKeys derives every tag key the current invocation can match a
// tag-scoped budget against.
func invocationTagKeys(clientTag, projectTag *string) []string {
	var keys []string
	if clientTag != nil && *clientTag != "" {
		keys = append(keys, tagKeys(clientTagPrefix, *clientTag)...)
	}
	if projectTag != nil && *projectTag != "" {
		keys = append(keys, tagKeys(projectTagPrefix, *projectTag)...)
	}
	return keys
}
