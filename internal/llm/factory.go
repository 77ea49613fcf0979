package llm

import "fmt"

// New builds the client named by settings.Provider.
func New(cfg Settings) (Client, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIClient(&cfg)
	case "genai":
		return NewGenAIClient(&cfg)
	case "mock":
		return MockClient{}, nil
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.Provider)
	}
}
