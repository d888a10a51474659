package metrics

// Nop discards every measurement. Used by offline tools and tests.
type Nop struct{}

func (Nop) RecordBid(string, float64, float64) {}
func (Nop) RecordJudgment(string)              {}
func (Nop) RecordRate(string, string, float64) {}
func (Nop) RecordBudget(string, float64)       {}
func (Nop) RecordOvershoot(string)             {}
func (Nop) RecordMessageSent(string)           {}
func (Nop) RecordError(string)                 {}
func (Nop) RecordLatency(string, float64)      {}
func (Nop) ForgetSession(string)               {}
