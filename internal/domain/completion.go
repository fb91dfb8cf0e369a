package domain

// Usage reports the token accounting returned by the completion API.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResult is the outcome of a successful chat completion.
type CompletionResult struct {
	Text      string
	ModelUsed string
	Usage     Usage
}
