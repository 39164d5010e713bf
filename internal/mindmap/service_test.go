package mindmap

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/adhyayan/internal/llm"
	"github.com/hitoshi/adhyayan/internal/model"
	"github.com/hitoshi/adhyayan/internal/repository"
	"github.com/hitoshi/adhyayan/internal/security"
)

// --- モック定義 ---

type mockCompleter struct {
	completeFn func(ctx context.Context, req llm.Request) (string, error)
}

func (m *mockCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	if m.completeFn != nil {
		return m.completeFn(ctx, req)
	}
	return "", nil
}

type mockMindMapRepo struct {
	createFn       func(ctx context.Context, m *model.MindMap) error
	findByIDFn     func(ctx context.Context, userID, id string) (*model.MindMap, error)
	listByUserIDFn func(ctx context.Context, userID string) ([]*model.MindMap, error)
	deleteByIDFn   func(ctx context.Context, userID, id string) (bool, error)
}

func (m *mockMindMapRepo) Create(ctx context.Context, mm *model.MindMap) error {
	if m.createFn != nil {
		return m.createFn(ctx, mm)
	}
	return nil
}

func (m *mockMindMapRepo) FindByID(ctx context.Context, userID, id string) (*model.MindMap, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, userID, id)
	}
	return nil, nil
}

func (m *mockMindMapRepo) ListByUserID(ctx context.Context, userID string) ([]*model.MindMap, error) {
	if m.listByUserIDFn != nil {
		return m.listByUserIDFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockMindMapRepo) DeleteByID(ctx context.Context, userID, id string) (bool, error) {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, userID, id)
	}
	return false, nil
}

type mockGenMetrics struct {
	sources []string
}

func (m *mockGenMetrics) RecordMindMapGenerated(source string) {
	m.sources = append(m.sources, source)
}

// --- compile-time interface checks ---
var _ LLMCompleter = (*mockCompleter)(nil)
var _ repository.MindMapRepository = (*mockMindMapRepo)(nil)
var _ MetricsRecorder = (*mockGenMetrics)(nil)

func newTestService(completer LLMCompleter, repo repository.MindMapRepository, metrics MetricsRecorder) *Service {
	return NewService(completer, repo, security.NewSyllabusSanitizer(), metrics)
}

// --- テスト ---

func TestGenerate_LLMSuccess_SourceIsLLM(t *testing.T) {
	completer := &mockCompleter{
		completeFn: func(ctx context.Context, req llm.Request) (string, error) {
			if !req.JSONMode {
				t.Error("expected JSONMode to be enabled")
			}
			return `{"topics":[{"title":"代数","subtopics":["一次方程式","二次方程式"]}]}`, nil
		},
	}
	metrics := &mockGenMetrics{}
	svc := newTestService(completer, &mockMindMapRepo{}, metrics)

	m, err := svc.Generate(context.Background(), "user-1", "数学", "代数: 一次方程式")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if m.Source != SourceLLM {
		t.Errorf("source = %q, want %q", m.Source, SourceLLM)
	}
	if m.UserID != "user-1" {
		t.Errorf("userID = %q, want %q", m.UserID, "user-1")
	}
	if m.Root == nil || m.Root.Label != "数学" {
		t.Fatalf("root = %+v, want label 数学", m.Root)
	}
	if len(m.Root.Children) != 1 || m.Root.Children[0].Label != "代数" {
		t.Errorf("children = %+v", m.Root.Children)
	}
	if len(metrics.sources) != 1 || metrics.sources[0] != SourceLLM {
		t.Errorf("recorded sources = %v, want [llm]", metrics.sources)
	}
}

func TestGenerate_LLMFailure_FallsBackToDeterministicTree(t *testing.T) {
	completer := &mockCompleter{
		completeFn: func(ctx context.Context, req llm.Request) (string, error) {
			return "", errors.New("all LLM models failed")
		},
	}
	metrics := &mockGenMetrics{}
	svc := newTestService(completer, &mockMindMapRepo{}, metrics)

	m, err := svc.Generate(context.Background(), "user-1", "数学", "代数\n幾何")
	if err != nil {
		t.Fatalf("Generate() error = %v, want nil (fallback path)", err)
	}

	if m.Source != SourceFallback {
		t.Errorf("source = %q, want %q", m.Source, SourceFallback)
	}
	if len(m.Root.Children) != 2 {
		t.Errorf("children = %d, want 2", len(m.Root.Children))
	}
	if len(metrics.sources) != 1 || metrics.sources[0] != SourceFallback {
		t.Errorf("recorded sources = %v, want [fallback]", metrics.sources)
	}
}

func TestGenerate_UnparseableLLMResponse_FallsBack(t *testing.T) {
	completer := &mockCompleter{
		completeFn: func(ctx context.Context, req llm.Request) (string, error) {
			return "I'm sorry, I can't do that.", nil
		},
	}
	svc := newTestService(completer, &mockMindMapRepo{}, nil)

	m, err := svc.Generate(context.Background(), "user-1", "数学", "")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if m.Source != SourceFallback {
		t.Errorf("source = %q, want %q", m.Source, SourceFallback)
	}
}

func TestGenerate_SanitizesHTMLInput(t *testing.T) {
	var capturedPrompt string
	completer := &mockCompleter{
		completeFn: func(ctx context.Context, req llm.Request) (string, error) {
			capturedPrompt = req.User
			return `{"topics":[{"title":"t"}]}`, nil
		},
	}
	svc := newTestService(completer, &mockMindMapRepo{}, nil)

	m, err := svc.Generate(context.Background(), "user-1",
		`<script>alert(1)</script>数学`, `<b>代数</b>`)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if m.Subject != "数学" {
		t.Errorf("subject = %q, want %q (tags stripped)", m.Subject, "数学")
	}
	if capturedPrompt == "" || m.Syllabus != "代数" {
		t.Errorf("syllabus = %q, want %q", m.Syllabus, "代数")
	}
}

func TestGenerate_EmptySubject_ReturnsError(t *testing.T) {
	svc := newTestService(&mockCompleter{}, &mockMindMapRepo{}, nil)

	if _, err := svc.Generate(context.Background(), "user-1", "", "syllabus"); err == nil {
		t.Fatal("expected error for empty subject")
	}
}

func TestSave_AssignsIDAndUserID(t *testing.T) {
	var created *model.MindMap
	repo := &mockMindMapRepo{
		createFn: func(ctx context.Context, m *model.MindMap) error {
			created = m
			return nil
		},
	}
	svc := newTestService(&mockCompleter{}, repo, nil)

	m := &model.MindMap{
		Subject: "数学",
		Root:    &model.MindMapNode{ID: "n1", Label: "数学"},
	}
	saved, err := svc.Save(context.Background(), "user-1", m)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if saved.ID == "" {
		t.Error("expected ID to be assigned")
	}
	if saved.UserID != "user-1" {
		t.Errorf("userID = %q, want %q", saved.UserID, "user-1")
	}
	if created == nil {
		t.Fatal("expected Create to be called")
	}
}

func TestSave_MissingRoot_ReturnsError(t *testing.T) {
	svc := newTestService(&mockCompleter{}, &mockMindMapRepo{}, nil)

	_, err := svc.Save(context.Background(), "user-1", &model.MindMap{Subject: "数学"})
	if err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestGet_NotFound_ReturnsNil(t *testing.T) {
	svc := newTestService(&mockCompleter{}, &mockMindMapRepo{}, nil)

	m, err := svc.Get(context.Background(), "user-1", "missing-id")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if m != nil {
		t.Errorf("mindmap = %+v, want nil", m)
	}
}

func TestDelete_NotFound_ReturnsFalse(t *testing.T) {
	svc := newTestService(&mockCompleter{}, &mockMindMapRepo{}, nil)

	deleted, err := svc.Delete(context.Background(), "user-1", "missing-id")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if deleted {
		t.Error("deleted = true, want false")
	}
}
