package eval

// #region eval-config
// EvalConfig holds limits for pre-upsert validation.
type EvalConfig struct {
	MaxFlowTape int // reject if the flow tape grows beyond this
}

// DefaultEvalConfig returns sensible defaults.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MaxFlowTape: 20,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name string
	Pass bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of pre-upsert validation.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// #endregion eval-result
