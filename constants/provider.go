package constants

// Provider identifies the extraction backend.
type Provider string

// Stable values accepted by LLM_PROVIDER.
const (
	ProviderGemini Provider = "gemini" // Gemini REST generateContent (default)
	ProviderOpenAI Provider = "openai" // OpenAI-compatible chat/completions
	ProviderGenAI  Provider = "genai"  // Gemini through the generative-ai-go SDK
)

// Providers lists every supported provider.
var Providers = []Provider{ProviderGemini, ProviderOpenAI, ProviderGenAI}

// ParseProvider returns the provider named by s, and false if s is unknown.
func ParseProvider(s string) (Provider, bool) {
	for _, p := range Providers {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}
