package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"mmrag/internal/classify"
	"mmrag/internal/domain"
	"mmrag/internal/prompt"
)

var (
	// ErrEmptyQuestion is returned for blank questions.
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrRetrieval marks failures of the embedding service, vector index or docstore.
	ErrRetrieval = errors.New("retrieval failed")
	// ErrGeneration marks failures of the generative model.
	ErrGeneration = errors.New("generation failed")
)

// RAGServiceImpl answers questions with retrieved multi-modal context.
type RAGServiceImpl struct {
	retriever domain.Retriever
	model     domain.ChatModel
	log       logrus.FieldLogger
}

func NewRAGService(retriever domain.Retriever, model domain.ChatModel, log logrus.FieldLogger) *RAGServiceImpl {
	return &RAGServiceImpl{retriever: retriever, model: model, log: log}
}

// Answer runs retrieve, partition, prompt assembly and generation once.
func (s *RAGServiceImpl) Answer(ctx context.Context, question string) (string, error) {
	a, err := s.Ask(ctx, question)
	if err != nil {
		return "", err
	}
	return a.Text, nil
}

// Ask is Answer plus the number of text and image documents in the prompt.
func (s *RAGServiceImpl) Ask(ctx context.Context, question string) (domain.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return domain.Answer{}, ErrEmptyQuestion
	}
	start := time.Now()
	log := s.log.WithField("question", question)

	docs, err := s.retriever.Retrieve(ctx, question)
	if err != nil {
		log.WithError(err).Error("retrieval failed")
		return domain.Answer{}, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}

	ctxDocs := classify.Partition(docs)
	p := prompt.Build(ctxDocs, question)
	log.WithFields(logrus.Fields{
		"texts":  len(ctxDocs.Texts),
		"images": len(ctxDocs.Images),
	}).Debug("prompt assembled")

	answer, err := s.model.Generate(ctx, p)
	if err != nil {
		log.WithError(err).Error("generation failed")
		return domain.Answer{}, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	if len(docs) == 0 {
		log.Warn("no context found")
	}
	log.WithField("elapsed", time.Since(start).Round(time.Millisecond)).Info("answered")
	return domain.Answer{Text: answer, Texts: len(ctxDocs.Texts), Images: len(ctxDocs.Images)}, nil
}

var _ domain.RAGService = (*RAGServiceImpl)(nil)
