package llm

import "strings"

// price is USD per million tokens.
type price struct {
	input, output float64
}

var prices = map[string]price{
	"gpt-4":         {30, 60},
	"gpt-4-turbo":   {10, 30},
	"gpt-4o":        {5, 15},
	"gpt-4o-mini":   {0.15, 0.6},
	"gpt-3.5-turbo": {0.5, 1.5},

	"claude-3-haiku":   {0.25, 1.25},
	"claude-3-5-haiku": {0.8, 4},
	"claude-sonnet-4":  {3, 15},
	"claude-opus-4":    {15, 75},

	"gemini-2.5-flash": {0.3, 2.5},
	"gemini-2.5-pro":   {1.25, 10},
}

// CalculateCost prices a completion. Dated or suffixed model names
// ("gpt-4o-mini-2024-07-18", "claude-3-5-haiku-latest") resolve to the
// longest known prefix; unknown models cost zero.
func CalculateCost(model string, inputTokens, outputTokens int) float64 {
	p, ok := lookupPrice(model)
	if !ok {
		return 0
	}
	return (float64(inputTokens)*p.input + float64(outputTokens)*p.output) / 1e6
}

func lookupPrice(model string) (price, bool) {
	if p, ok := prices[model]; ok {
		return p, true
	}
	best := ""
	for name := range prices {
		if strings.HasPrefix(model, name+"-") && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return price{}, false
	}
	return prices[best], true
}
