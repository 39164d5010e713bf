package mindmap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/adhyayan/internal/llm"
	"github.com/hitoshi/adhyayan/internal/model"
	"github.com/hitoshi/adhyayan/internal/repository"
	"github.com/hitoshi/adhyayan/internal/security"
)

// マインドマップの生成元。
const (
	// SourceLLM はLLMによる生成を示す。
	SourceLLM = "llm"
	// SourceFallback は決定的ツリービルダーによる生成を示す。
	SourceFallback = "fallback"
)

// maxSyllabusLength はプロンプトに埋め込むシラバスの最大文字数（バイト）。
const maxSyllabusLength = 16384

// LLMCompleter はマインドマップ生成が必要とするLLMクライアントのインターフェース。
type LLMCompleter interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// MetricsRecorder は生成メトリクスのインターフェース。nil可。
type MetricsRecorder interface {
	RecordMindMapGenerated(source string)
}

// nopMetrics はメトリクス未設定時のフォールバック。
type nopMetrics struct{}

func (nopMetrics) RecordMindMapGenerated(string) {}

// Service はマインドマップの生成・永続化のビジネスロジックを提供する。
type Service struct {
	llm       LLMCompleter
	repo      repository.MindMapRepository
	sanitizer security.SyllabusSanitizerService
	metrics   MetricsRecorder
}

// NewService はServiceを生成する。metricsはnil可。
func NewService(
	completer LLMCompleter,
	repo repository.MindMapRepository,
	sanitizer security.SyllabusSanitizerService,
	metrics MetricsRecorder,
) *Service {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Service{
		llm:       completer,
		repo:      repo,
		sanitizer: sanitizer,
		metrics:   metrics,
	}
}

// Generate は科目名とシラバスからマインドマップを生成する（永続化はしない）。
//
// LLMでの生成を試み、呼び出し失敗またはレスポンスのパース失敗時は
// 決定的ツリービルダーにフォールバックする。生成自体はどちらかの経路で
// 必ず成功するため、エラーは入力不正の場合のみ返す。
func (s *Service) Generate(ctx context.Context, userID, subject, syllabus string) (*model.MindMap, error) {
	// 1. 入力のサニタイズと検証
	subject = s.sanitizer.Sanitize(subject)
	syllabus = s.sanitizer.Sanitize(syllabus)
	if subject == "" {
		return nil, fmt.Errorf("subject is required")
	}
	if len(syllabus) > maxSyllabusLength {
		syllabus = syllabus[:maxSyllabusLength]
	}

	// 2. LLM生成を試行し、失敗時はフォールバック
	root, source := s.generateTree(ctx, subject, syllabus)
	s.metrics.RecordMindMapGenerated(source)

	now := time.Now()
	return &model.MindMap{
		ID:        uuid.New().String(),
		UserID:    userID,
		Subject:   subject,
		Syllabus:  syllabus,
		Root:      root,
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// generateTree はLLM経路とフォールバック経路のどちらかでノードツリーを構築する。
func (s *Service) generateTree(ctx context.Context, subject, syllabus string) (*model.MindMapNode, string) {
	content, err := s.llm.Complete(ctx, llm.Request{
		System:   systemPrompt,
		User:     buildUserPrompt(subject, syllabus),
		JSONMode: true,
	})
	if err != nil {
		slog.Warn("LLM generation failed, using fallback tree builder",
			slog.String("subject", subject),
			slog.String("error", err.Error()),
		)
		return buildFallbackTree(subject, syllabus), SourceFallback
	}

	parsed, err := parseLLMResponse(content)
	if err != nil {
		slog.Warn("LLM response unparseable, using fallback tree builder",
			slog.String("subject", subject),
			slog.String("error", err.Error()),
		)
		return buildFallbackTree(subject, syllabus), SourceFallback
	}

	return buildTree(subject, parsed.Topics), SourceLLM
}

// Save はマインドマップを永続化する。IDが未設定の場合は採番する。
func (s *Service) Save(ctx context.Context, userID string, m *model.MindMap) (*model.MindMap, error) {
	if m == nil || m.Root == nil {
		return nil, fmt.Errorf("mindmap root is required")
	}
	if m.Subject == "" {
		return nil, fmt.Errorf("subject is required")
	}

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.UserID = userID
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	if err := s.repo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save mindmap: %w", err)
	}

	slog.Info("mindmap saved",
		slog.String("mindmap_id", m.ID),
		slog.String("subject", m.Subject),
		slog.Int("node_count", m.CountNodes()),
	)

	return m, nil
}

// List は指定ユーザーのマインドマップ一覧を返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.MindMap, error) {
	maps, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mindmaps: %w", err)
	}
	return maps, nil
}

// Get は指定IDのマインドマップを返す。見つからない場合はnilを返す。
func (s *Service) Get(ctx context.Context, userID, id string) (*model.MindMap, error) {
	m, err := s.repo.FindByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get mindmap: %w", err)
	}
	return m, nil
}

// Delete は指定IDのマインドマップを削除する。
// 対象が存在しない場合はfalseを返す。
func (s *Service) Delete(ctx context.Context, userID, id string) (bool, error) {
	deleted, err := s.repo.DeleteByID(ctx, userID, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete mindmap: %w", err)
	}
	return deleted, nil
}
