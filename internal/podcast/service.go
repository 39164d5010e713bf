// Package podcast はマインドマップのポッドキャスト風音声化を提供する。
// LLMでナレーション原稿を生成し、TTSで音声に変換する2段プロキシ。
package podcast

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/adhyayan/internal/llm"
	"github.com/hitoshi/adhyayan/internal/model"
	"github.com/hitoshi/adhyayan/internal/repository"
	"github.com/hitoshi/adhyayan/internal/tts"
)

// scriptSystemPrompt はLLMにナレーション原稿を書かせるsystemメッセージ。
const scriptSystemPrompt = `You are a friendly educational podcast host. Write a short narration
script (about 300 words) explaining the given study material in an engaging, conversational tone.
Output plain prose only: no headings, no stage directions, no speaker labels.`

// maxScriptChars はTTSに渡す原稿の最大文字数。
// 音声合成APIのリクエスト上限と課金を抑えるための保険。
const maxScriptChars = 4000

// LLMCompleter は原稿生成が必要とするLLMクライアントのインターフェース。
type LLMCompleter interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Synthesizer は音声合成クライアントのインターフェース。
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*tts.Audio, error)
}

// Service はポッドキャスト音声生成のビジネスロジックを提供する。
type Service struct {
	llm  LLMCompleter
	tts  Synthesizer
	repo repository.MindMapRepository
}

// NewService はServiceを生成する。
func NewService(completer LLMCompleter, synthesizer Synthesizer, repo repository.MindMapRepository) *Service {
	return &Service{
		llm:  completer,
		tts:  synthesizer,
		repo: repo,
	}
}

// GenerateFromMindMap は保存済みマインドマップからポッドキャスト音声を生成する。
// マインドマップが見つからない場合はnilを返す（エラーにはしない）。
func (s *Service) GenerateFromMindMap(ctx context.Context, userID, mindmapID string) (*tts.Audio, error) {
	m, err := s.repo.FindByID(ctx, userID, mindmapID)
	if err != nil {
		return nil, fmt.Errorf("failed to find mindmap: %w", err)
	}
	if m == nil {
		return nil, nil
	}

	return s.GenerateFromTopic(ctx, m.Subject, flattenOutline(m))
}

// GenerateFromTopic はトピックと教材テキストからポッドキャスト音声を生成する。
func (s *Service) GenerateFromTopic(ctx context.Context, topic, content string) (*tts.Audio, error) {
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	// 1. ナレーション原稿の生成
	script, err := s.llm.Complete(ctx, llm.Request{
		System: scriptSystemPrompt,
		User:   buildScriptPrompt(topic, content),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate narration script: %w", err)
	}

	script = strings.TrimSpace(script)
	if script == "" {
		return nil, fmt.Errorf("empty narration script")
	}
	if len(script) > maxScriptChars {
		script = script[:maxScriptChars]
	}

	// 2. 原稿の音声合成
	audio, err := s.tts.Synthesize(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize audio: %w", err)
	}

	slog.Info("podcast audio generated",
		slog.String("topic", topic),
		slog.Int("script_length", len(script)),
		slog.Int("audio_bytes", len(audio.Data)),
		slog.String("tts_model", audio.Model),
	)

	return audio, nil
}

// buildScriptPrompt はトピックと教材テキストからuserメッセージを組み立てる。
func buildScriptPrompt(topic, content string) string {
	var b strings.Builder
	b.WriteString("Topic: ")
	b.WriteString(topic)
	if content != "" {
		b.WriteString("\n\nMaterial:\n")
		b.WriteString(content)
	}
	return b.String()
}

// flattenOutline はマインドマップのノードツリーをインデント付きの
// アウトラインテキストに平坦化する。
func flattenOutline(m *model.MindMap) string {
	var b strings.Builder
	var walk func(n *model.MindMapNode, depth int)
	walk = func(n *model.MindMapNode, depth int) {
		if n == nil {
			return
		}
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString("- ")
		b.WriteString(n.Label)
		b.WriteString("\n")
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	walk(m.Root, 0)
	return b.String()
}
