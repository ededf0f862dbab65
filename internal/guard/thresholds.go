package guard

import (
	"fmt"
	"math"

	"promptdeck/internal/models"
)

// Metric names used in warnings and block reasons.
const (
	MetricRequests = "requests"
	MetricTokens   = "tokens"
	MetricCostUSD  = "cost_usd"
)

// softWarningRatio is the fraction of a plan limit at which the guard starts
// warning without blocking.
const softWarningRatio = 0.8

// Warning is a non-blocking signal that usage reached at least 80% of a plan
// limit on one metric.
type Warning struct {
	Metric  string  `json:"metric"`
	Used    float64 `json:"used"`
	Limit   float64 `json:"limit"`
	Ratio   float64 `json:"ratio"`
	Message string  `json:"message"`
}

// ThresholdResult carries everything the plan evaluation found. Multiple
// metrics can warn or block at once; all findings are surfaced.
type ThresholdResult struct {
	Warnings    []Warning
	HardReasons []string
}

// EvaluateThresholds compares the snapshot against the effective plan's
// limits. A nil or non-positive limit means the metric is unlimited and is
// skipped entirely.
func EvaluateThresholds(limits models.PlanLimits, usage *Snapshot) ThresholdResult {
	var result ThresholdResult

	checkMetric(&result, MetricRequests, float64(usage.RequestsUsed), int64Limit(limits.RequestsPerMonth))
	checkMetric(&result, MetricTokens, float64(usage.TokensUsed), int64Limit(limits.TokensPerMonth))
	checkMetric(&result, MetricCostUSD, usage.CostUSDUsed, floatLimit(limits.CostUSDPerMonth))

	return result
}

func checkMetric(result *ThresholdResult, metric string, used, limit float64) {
	if limit <= 0 {
		return
	}

	ratio := used / limit
	if ratio >= 1.0 {
		result.HardReasons = append(result.HardReasons,
			fmt.Sprintf("%s: %s/%s", metric, formatMetric(metric, used), formatMetric(metric, limit)))
		return
	}
	if ratio >= softWarningRatio {
		percent := int(math.Round(ratio * 100))
		result.Warnings = append(result.Warnings, Warning{
			Metric: metric,
			Used:   used,
			Limit:  limit,
			Ratio:  ratio,
			Message: fmt.Sprintf("%s usage reached %d%% of the plan limit (%s/%s)",
				metric, percent, formatMetric(metric, used), formatMetric(metric, limit)),
		})
	}
}

// formatMetric renders a metric value: counts without decimals, cost at
// 4-decimal USD precision.
func formatMetric(metric string, v float64) string {
	if metric == MetricCostUSD {
		return fmt.Sprintf("%.4f", v)
	}
	return fmt.Sprintf("%.0f", v)
}

func int64Limit(v *int64) float64 {
	if v == nil {
		return 0
	}
	return float64(*v)
}

func floatLimit(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
