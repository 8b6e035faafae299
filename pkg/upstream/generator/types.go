package generator

// Usage tracks token consumption for a generation call.
type Usage struct {
	// PromptTokens is the number of tokens in the prompt.
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the completion.
	CompletionTokens int `json:"completion_tokens"`
}

// Completion is the generated message returned by the backend.
type Completion struct {
	// Message is the generated text.
	Message string `json:"message"`

	// Usage contains token consumption for the call.
	Usage Usage `json:"usage"`
}

// request is the wire request sent to the generation backend.
type request struct {
	Prompt    string `json:"prompt"`
	RequestID string `json:"request_id"`
}
