package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"persona-agent/internal/embedding"
	"persona-agent/internal/ingest"
	"persona-agent/internal/integrations/huggingface"
	"persona-agent/internal/integrations/paramstore"
	"persona-agent/internal/integrations/pinecone"
)

// ingest reads the text documents in a directory, chunks them and upserts
// the embedded chunks into the vector index the chat flow queries.
func main() {
	dir := flag.String("dir", "documents", "directory of .txt and .md documents to ingest")
	docType := flag.String("type", "background", "document type stored in chunk metadata")
	flag.Parse()

	ctx := context.Background()

	paramPrefix := mustEnv("PARAM_PREFIX")
	pineconeHost := mustEnv("PINECONE_HOST")
	embeddingModel := os.Getenv("EMBEDDING_MODEL")

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	hfClient, err := huggingface.NewClient(ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to create Hugging Face client", "err", err)
		os.Exit(1)
	}
	pc, err := pinecone.NewClient(ssmClient, paramPrefix, pineconeHost)
	if err != nil {
		slog.Error("failed to create index client", "err", err)
		os.Exit(1)
	}

	embedderOpts := []embedding.Option{embedding.WithCache()}
	if embeddingModel != "" {
		embedderOpts = append(embedderOpts, embedding.WithModel(embeddingModel))
	}
	embedder := embedding.NewProvider(hfClient, embedderOpts...)

	ingester, err := ingest.New(embedder, pc)
	if err != nil {
		slog.Error("failed to create ingester", "err", err)
		os.Exit(1)
	}

	docs, err := loadDocuments(*dir, *docType)
	if err != nil {
		slog.Error("failed to load documents", "dir", *dir, "err", err)
		os.Exit(1)
	}
	if len(docs) == 0 {
		slog.Error("no .txt or .md documents found", "dir", *dir)
		os.Exit(1)
	}

	count, err := ingester.Run(ctx, docs)
	if err != nil {
		slog.Error("ingestion failed", "upserted", count, "err", err)
		os.Exit(1)
	}

	stats, err := pc.DescribeIndexStats(ctx)
	if err != nil {
		slog.Warn("could not read index stats", "err", err)
	} else {
		slog.Info("index stats", "dimension", stats.Dimension, "totalVectors", stats.TotalVectorCount)
	}
	slog.Info("ingestion complete", "documents", len(docs), "chunksUpserted", count)
}

func loadDocuments(dir, docType string) ([]ingest.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var docs []ingest.Document
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".txt" && ext != ".md" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		docs = append(docs, ingest.Document{
			Source: entry.Name(),
			Type:   docType,
			Text:   string(raw),
		})
	}
	return docs, nil
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}
