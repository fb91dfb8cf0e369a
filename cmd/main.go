package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"persona-agent/handler"
	"persona-agent/internal/completion"
	"persona-agent/internal/config"
	"persona-agent/internal/embedding"
	"persona-agent/internal/integrations/groq"
	"persona-agent/internal/integrations/huggingface"
	"persona-agent/internal/integrations/paramstore"
	"persona-agent/internal/integrations/pinecone"
	"persona-agent/internal/retrieval"
	"persona-agent/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	// ---- AWS SDK config ----
	awsCfg, err := loadAWSConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}

	groqClient, err := groq.NewClient(ssmClient, cfg.ParamPrefix)
	if err != nil {
		slog.Error("failed to create Groq client", "err", err)
		os.Exit(1)
	}

	hfClient, err := huggingface.NewClient(ssmClient, cfg.ParamPrefix)
	if err != nil {
		slog.Error("failed to create Hugging Face client", "err", err)
		os.Exit(1)
	}

	embedderOpts := []embedding.Option{embedding.WithCache()}
	if cfg.EmbeddingModel != "" {
		embedderOpts = append(embedderOpts, embedding.WithModel(cfg.EmbeddingModel))
	}
	embedder := embedding.NewProvider(hfClient, embedderOpts...)

	index, err := buildIndex(ssmClient, cfg)
	if err != nil {
		slog.Error("failed to create vector index", "err", err)
		os.Exit(1)
	}
	searcherOpts := []retrieval.Option{retrieval.WithMinScore(cfg.MinScore)}
	if cfg.RetrievalMode == config.RetrievalModeStrict {
		searcherOpts = append(searcherOpts, retrieval.WithStrictFailures())
	}
	searcher, err := retrieval.NewSearcher(index, searcherOpts...)
	if err != nil {
		slog.Error("failed to create searcher", "err", err)
		os.Exit(1)
	}

	completer, err := completion.NewProvider(groqClient, completion.WithFallbackModel(cfg.FallbackModel))
	if err != nil {
		slog.Error("failed to create completion provider", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	chatService, err := usecase.NewChatService(embedder, searcher, completer, ssmClient, usecase.ChatConfig{
		TopK:             cfg.TopK,
		RAGModel:         cfg.ChatModel,
		GeneralModel:     cfg.GeneralModel,
		PersonaParameter: cfg.ParamPrefix + "/pinned_prompt",
	}, slog.Default())
	if err != nil {
		slog.Error("failed to create chat service", "err", err)
		os.Exit(1)
	}

	handlerOpts := []handler.Option{handler.WithEnvironment(cfg.Environment)}
	if cfg.DevMode {
		handlerOpts = append(handlerOpts, handler.WithDevMode())
	}
	h, err := handler.NewHandler(chatService, handlerOpts...)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

// loadAWSConfig retries transient startup failures a few times so a cold
// start during a brief credentials hiccup does not kill the process.
func loadAWSConfig(ctx context.Context) (aws.Config, error) {
	var (
		cfg aws.Config
		err error
	)
	backoff := time.Second
	for attempt := 1; attempt <= 3; attempt++ {
		cfg, err = awsconfig.LoadDefaultConfig(ctx)
		if err == nil {
			return cfg, nil
		}
		if attempt < 3 {
			slog.Warn("AWS config load failed, retrying", "attempt", attempt, "err", err)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > 10*time.Second {
				backoff = 10 * time.Second
			}
		}
	}
	return aws.Config{}, err
}

// buildIndex picks the serverless index when a host is configured and an
// empty in-process index otherwise, which keeps local runs working without
// index credentials.
func buildIndex(ssmClient paramstore.Getter, cfg config.Config) (retrieval.Index, error) {
	if cfg.PineconeHost == "" {
		slog.Warn("PINECONE_HOST not set, using empty in-process index")
		return retrieval.NewLocalIndex("portfolio")
	}
	pc, err := pinecone.NewClient(ssmClient, cfg.ParamPrefix, cfg.PineconeHost)
	if err != nil {
		return nil, err
	}
	return retrieval.NewRemoteIndex(pc)
}
