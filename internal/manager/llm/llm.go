package llm

import (
	"fmt"

	"github.com/code-sleuth/ike-wp/internal/manager/interfaces"
)

const (
	ProviderMistral = "mistral"
	ProviderOpenAI  = "openai"
)

// New builds the chat client for provider. An empty baseURL selects the
// provider's public API.
func New(provider, apiKey, baseURL string) (interfaces.LLM, error) {
	var (
		client interfaces.LLM
		err    error
	)
	switch provider {
	case ProviderMistral, "":
		client, err = NewMistralClientWithClient(apiKey, nil, baseURL)
	case ProviderOpenAI:
		client, err = NewOpenAIClientWithClient(apiKey, nil, baseURL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}
