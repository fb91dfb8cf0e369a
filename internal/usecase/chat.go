package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"persona-agent/internal/completion"
	"persona-agent/internal/domain"
	"persona-agent/internal/integrations/paramstore"
)

const (
	defaultTopK            = 3
	maxSourceTextLen       = 300
	defaultRAGTemperature  = 0.5
	defaultRAGMaxTokens    = 500
	defaultGenTemperature  = 0.7
	defaultGenMaxTokens    = 1000
	defaultPersonaFallback = "You are a helpful assistant answering questions about the site owner's background and work."
)

// Embedder turns text into a fixed-dimension vector. Implemented by
// embedding.Provider; never expected to fail, an empty vector signals that
// every strategy broke down.
type Embedder interface {
	Embed(ctx context.Context, text string) domain.Vector
}

// ContextSearcher returns the scored context matches for a query embedding.
// Implemented by retrieval.Searcher.
type ContextSearcher interface {
	Search(ctx context.Context, vector domain.Vector, topK int) ([]domain.ContextMatch, error)
}

// Completer produces a chat completion for an assembled message sequence.
// Implemented by completion.Provider.
type Completer interface {
	Complete(ctx context.Context, messages []domain.Message, params completion.Params) (domain.CompletionResult, error)
}

// httpStatusCoder exposes the upstream HTTP status carried by integration
// errors so failures can be classified without inspecting message text.
type httpStatusCoder interface {
	HTTPStatusCode() int
}

// ChatInput is the validated chat request handed in by the handler.
type ChatInput struct {
	Messages []domain.Message
}

// ChatOutput carries the assistant reply plus the attribution material the
// handler serializes into the response envelope.
type ChatOutput struct {
	Response  string
	Sources   []domain.SourceRef
	ModelUsed string
	Grounded  bool
	Usage     domain.Usage
}

// ChatConfig tunes the orchestration. Zero values fall back to defaults.
type ChatConfig struct {
	// TopK is the number of context matches requested from retrieval.
	TopK int
	// RAGModel answers grounded questions; GeneralModel answers when no
	// context cleared the threshold and may be a smaller model.
	RAGModel     string
	GeneralModel string
	// PersonaParameter names the Parameter Store entry holding the pinned
	// persona prompt. Empty disables the lookup and uses a neutral persona.
	PersonaParameter string
}

// ChatService runs the full question-answering flow: embed the latest user
// message, search the knowledge base, assemble a grounded or
// general-knowledge prompt and complete it. Retrieval trouble degrades to
// the general-knowledge branch; only validation and completion failures
// surface as errors.
type ChatService struct {
	embedder  Embedder
	searcher  ContextSearcher
	completer Completer
	params    paramstore.Getter
	cfg       ChatConfig
	logger    *slog.Logger

	mu      sync.RWMutex
	persona string
}

func NewChatService(embedder Embedder, searcher ContextSearcher, completer Completer, params paramstore.Getter, cfg ChatConfig, logger *slog.Logger) (*ChatService, error) {
	if embedder == nil {
		return nil, errors.New("usecase: embedder must not be nil")
	}
	if searcher == nil {
		return nil, errors.New("usecase: searcher must not be nil")
	}
	if completer == nil {
		return nil, errors.New("usecase: completer must not be nil")
	}
	if cfg.RAGModel == "" {
		return nil, errors.New("usecase: rag model must not be empty")
	}
	if cfg.GeneralModel == "" {
		cfg.GeneralModel = cfg.RAGModel
	}
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{
		embedder:  embedder,
		searcher:  searcher,
		completer: completer,
		params:    params,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Run executes one chat turn.
func (s *ChatService) Run(ctx context.Context, in ChatInput) (ChatOutput, error) {
	if len(in.Messages) == 0 {
		return ChatOutput{}, newError(ErrorInvalidRequest, "empty_messages", nil)
	}
	last, ok := domain.LastUserMessage(in.Messages)
	if !ok {
		return ChatOutput{}, newError(ErrorNoUserMessage, "no_user_message", nil)
	}
	query := last.Normalize().Content

	persona, err := s.ensurePersona(ctx)
	if err != nil {
		return ChatOutput{}, newError(ErrorUnexpected, "persona_load_error", err)
	}

	vector := s.embedder.Embed(ctx, query)
	if len(vector) == 0 {
		return ChatOutput{}, newError(ErrorEmbedding, "embedding_unavailable", nil)
	}

	matches, err := s.searcher.Search(ctx, vector, s.cfg.TopK)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ChatOutput{}, newError(ErrorTimeout, "knowledge_base_timeout", err)
		}
		return ChatOutput{}, newError(ErrorKnowledgeBase, "knowledge_base_unavailable", err)
	}

	history := historyBefore(in.Messages)
	grounded := len(matches) > 0

	var (
		messages []domain.Message
		params   completion.Params
	)
	if grounded {
		messages = buildRAGMessages(persona, matches, history, query)
		params = s.ragParams()
	} else {
		s.logger.Info("no context above threshold, answering from general knowledge")
		messages = buildGeneralMessages(persona, history, query)
		params = s.generalParams()
	}

	result, err := s.completer.Complete(ctx, messages, params)
	if err != nil {
		return ChatOutput{}, classifyCompletionError(err)
	}

	return ChatOutput{
		Response:  result.Text,
		Sources:   sourceRefs(matches),
		ModelUsed: result.ModelUsed,
		Grounded:  grounded,
		Usage:     result.Usage,
	}, nil
}

// ensurePersona loads and caches the pinned persona prompt. When no
// parameter is configured a neutral persona is used so local setups work
// without Parameter Store.
func (s *ChatService) ensurePersona(ctx context.Context) (personaContext, error) {
	s.mu.RLock()
	cached := s.persona
	s.mu.RUnlock()
	if cached != "" {
		return personaContext{pinnedPrompt: cached}, nil
	}

	if s.params == nil || s.cfg.PersonaParameter == "" {
		return personaContext{pinnedPrompt: defaultPersonaFallback}, nil
	}

	value, err := s.params.GetParameter(ctx, s.cfg.PersonaParameter)
	if err != nil {
		return personaContext{}, err
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return personaContext{}, errors.New("usecase: persona parameter is empty")
	}

	s.mu.Lock()
	s.persona = value
	s.mu.Unlock()
	return personaContext{pinnedPrompt: value}, nil
}

func (s *ChatService) ragParams() completion.Params {
	temperature := defaultRAGTemperature
	return completion.Params{
		Model:       s.cfg.RAGModel,
		Temperature: &temperature,
		MaxTokens:   defaultRAGMaxTokens,
	}
}

func (s *ChatService) generalParams() completion.Params {
	temperature := defaultGenTemperature
	return completion.Params{
		Model:       s.cfg.GeneralModel,
		Temperature: &temperature,
		MaxTokens:   defaultGenMaxTokens,
	}
}

// historyBefore returns all messages up to, but not including, the latest
// user message; that message is re-appended by the prompt assembler.
func historyBefore(messages []domain.Message) []domain.Message {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == domain.RoleUser && strings.TrimSpace(messages[i].Content) != "" {
			return messages[:i]
		}
	}
	return nil
}

// sourceRefs converts context matches into attribution entries with text
// truncated for response size.
func sourceRefs(matches []domain.ContextMatch) []domain.SourceRef {
	refs := make([]domain.SourceRef, 0, len(matches))
	for _, m := range matches {
		text := domain.TruncateRunes(m.Text, maxSourceTextLen)
		refs = append(refs, domain.SourceRef{
			ID:     m.ID,
			Source: m.Source,
			Text:   text,
			Score:  m.Score,
		})
	}
	return refs
}

func classifyCompletionError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(ErrorTimeout, "completion_timeout", err)
	}
	var statusErr httpStatusCoder
	if errors.As(err, &statusErr) {
		switch statusErr.HTTPStatusCode() {
		case http.StatusUnauthorized, http.StatusForbidden:
			return newError(ErrorAuthentication, "completion_auth", err)
		case http.StatusTooManyRequests:
			return newError(ErrorRateLimited, "completion_rate_limited", err)
		}
	}
	return newError(ErrorUnexpected, "completion_error", err)
}
