package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"sonnet": {Input: 3.00, Output: 15.00},
		},
		Groq: map[string]ModelRate{
			"llama": {Input: 0.50, Output: 1.00},
		},
		Jina: JinaRate{PerMTok: 0.02},
		Serp: SerpRate{PerQuery: 0.005},
	}
}

func TestAnthropicCost(t *testing.T) {
	calc := NewCalculator(testRates())
	got := calc.Anthropic("sonnet", 1_000_000, 100_000)
	assert.InDelta(t, 3.00+1.50, got, 1e-9)
}

func TestGroqCost(t *testing.T) {
	calc := NewCalculator(testRates())
	got := calc.Groq("llama", 2_000_000, 500_000)
	assert.InDelta(t, 1.00+0.50, got, 1e-9)
}

func TestUnknownModelCostsZero(t *testing.T) {
	calc := NewCalculator(testRates())
	assert.Zero(t, calc.Anthropic("mystery", 1_000_000, 1_000_000))
	assert.Zero(t, calc.Groq("mystery", 1_000_000, 1_000_000))
}

func TestJinaCost(t *testing.T) {
	calc := NewCalculator(testRates())
	assert.InDelta(t, 0.02, calc.Jina(1_000_000), 1e-9)
}

func TestSerpQueryCost(t *testing.T) {
	calc := NewCalculator(testRates())
	assert.InDelta(t, 0.005, calc.SerpQuery(), 1e-9)
}

func TestDefaultRatesCoverConfiguredModels(t *testing.T) {
	rates := DefaultRates()
	assert.NotEmpty(t, rates.Anthropic)
	assert.NotEmpty(t, rates.Groq)
	assert.Contains(t, rates.Groq, "llama-3.3-70b-versatile")
}
