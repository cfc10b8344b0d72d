package score

// BlendConfig carries the blend parameters.
type BlendConfig struct {
	LLMWeight   float64 // Base fraction of the final score taken from the LLM
	FlagPenalty float64 // LLM weight multiplier applied once when flagged
}

// BlendOutcome is the blended final score together with the exact weights
// used, so every result is auditable after the fact.
type BlendOutcome struct {
	Final     float64 `json:"final"`
	DetWeight float64 `json:"det_weight"`
	LLMWeight float64 `json:"llm_weight"`
	Reason    string  `json:"reason,omitempty"`
}

// Blend combines the deterministic and LLM aggregate scores. When the LLM
// side is unavailable its weight is zero and the final score is the
// deterministic score alone. A flagged evaluation halves (by FlagPenalty)
// the LLM weight exactly once, regardless of how many flags fired. The two
// weights always sum to 1.
func Blend(det, llm float64, llmAvailable, flagged bool, cfg BlendConfig) BlendOutcome {
	w := cfg.LLMWeight
	reason := ""

	switch {
	case !llmAvailable:
		w = 0
		reason = "llm unavailable, deterministic score only"
	case flagged:
		w = round4(w * cfg.FlagPenalty)
		reason = "audit flags reduced llm weight"
	}

	out := BlendOutcome{
		DetWeight: round4(1 - w),
		LLMWeight: w,
		Reason:    reason,
	}
	out.Final = round2(out.DetWeight*det + out.LLMWeight*llm)
	return out
}
