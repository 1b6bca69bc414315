package config

// DefaultProviders returns the built-in catalog used when the config file
// declares none: a local Ollama daemon plus the Groq cloud API. Model
// capability and cost tables mirror the providers' published values; Groq
// costs are USD per 1K tokens.
func DefaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{
			Name:        "ollama",
			Type:        "ollama",
			Kind:        KindLocal,
			DisplayName: "Ollama",
			Description: "Local open-source models",
			SetupURL:    "https://ollama.ai/",
			Endpoint:    "http://localhost:11434",
			CostModel:   CostFree,
			Priority:    1,
			Enabled:     true,
			Models: []ModelConfig{
				{
					Name:          "llama3.1:8b",
					ContextLength: 8192,
					Capabilities:  []string{"general", "content_generation", "coaching"},
				},
				{
					Name:          "llama3.1:70b",
					ContextLength: 8192,
					Capabilities:  []string{"general", "content_generation", "coaching", "reasoning"},
				},
				{
					Name:          "mistral-nemo",
					ContextLength: 128000,
					Capabilities:  []string{"general", "content_generation"},
				},
			},
		},
		{
			Name:               "groq",
			Type:               "groq",
			Kind:               KindCloud,
			DisplayName:        "Groq",
			Description:        "Ultra-fast inference cloud service",
			SetupURL:           "https://console.groq.com/",
			Endpoint:           "https://api.groq.com/openai/v1",
			CostModel:          CostPerToken,
			Credential:         "ENV:GROQ_API_KEY",
			RequiresCredential: true,
			Priority:           2,
			Enabled:            true,
			Models: []ModelConfig{
				{
					Name:               "llama3-8b-8192",
					ContextLength:      8192,
					Capabilities:       []string{"general", "content_generation", "coaching"},
					CostPer1KTokensUSD: 0.00005,
				},
				{
					Name:               "llama3-70b-8192",
					ContextLength:      8192,
					Capabilities:       []string{"general", "content_generation", "coaching", "reasoning"},
					CostPer1KTokensUSD: 0.00059,
				},
				{
					Name:               "mixtral-8x7b-32768",
					ContextLength:      32768,
					Capabilities:       []string{"general", "content_generation", "reasoning"},
					CostPer1KTokensUSD: 0.00024,
				},
			},
		},
	}
}
