// Package cost attributes an estimated USD cost to each analysis from its
// token usage. Rates are configurable so price changes don't need a release.
package cost

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	Groq      map[string]ModelRate `yaml:"groq" mapstructure:"groq"`
	Jina      JinaRate             `yaml:"jina" mapstructure:"jina"`
	Serp      SerpRate             `yaml:"serp" mapstructure:"serp"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// JinaRate holds Jina Reader pricing.
type JinaRate struct {
	PerMTok float64 `yaml:"per_mtok" mapstructure:"per_mtok"`
}

// SerpRate holds SERP lookup pricing.
type SerpRate struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Anthropic computes the cost of a quality-tier call. Unknown models cost 0.
func (c *Calculator) Anthropic(model string, input, output int) float64 {
	return tokenCost(c.rates.Anthropic, model, input, output)
}

// Groq computes the cost of a fast-tier call. Unknown models cost 0.
func (c *Calculator) Groq(model string, input, output int) float64 {
	return tokenCost(c.rates.Groq, model, input, output)
}

// Jina computes the cost for Jina Reader token usage.
func (c *Calculator) Jina(tokens int) float64 {
	return (float64(tokens) / 1e6) * c.rates.Jina.PerMTok
}

// SerpQuery returns the flat cost per SERP lookup.
func (c *Calculator) SerpQuery() float64 {
	return c.rates.Serp.PerQuery
}

func tokenCost(rates map[string]ModelRate, model string, input, output int) float64 {
	rate, ok := rates[model]
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
			"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
		},
		Groq: map[string]ModelRate{
			"llama-3.3-70b-versatile": {Input: 0.59, Output: 0.79},
			"llama-3.1-8b-instant":    {Input: 0.05, Output: 0.08},
		},
		Jina: JinaRate{PerMTok: 0.02},
		Serp: SerpRate{PerQuery: 0.005},
	}
}
