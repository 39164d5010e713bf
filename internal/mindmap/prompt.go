// Package mindmap はシラバスからのマインドマップ生成・永続化を提供する。
package mindmap

import (
	"encoding/json"
	"fmt"
	"strings"
)

// systemPrompt はLLMにマインドマップのJSON構造を出力させるsystemメッセージ。
const systemPrompt = `You are an educational content planner. Given a subject and its syllabus,
organize the material into a hierarchy of topics and subtopics suitable for a mind map.
Respond with a single JSON object of the form:
{"topics":[{"title":"...","subtopics":["...","..."]}]}
Use at most 8 topics and at most 6 subtopics per topic. Respond with JSON only.`

// buildUserPrompt は科目名とシラバスからuserメッセージを組み立てる。
func buildUserPrompt(subject, syllabus string) string {
	var b strings.Builder
	b.WriteString("Subject: ")
	b.WriteString(subject)
	if syllabus != "" {
		b.WriteString("\n\nSyllabus:\n")
		b.WriteString(syllabus)
	}
	return b.String()
}

// llmMindMap はLLMが出力するJSON構造。
type llmMindMap struct {
	Topics []llmTopic `json:"topics"`
}

type llmTopic struct {
	Title     string   `json:"title"`
	Subtopics []string `json:"subtopics"`
}

// parseLLMResponse はLLMのレスポンスをパースし、トピック階層を返す。
// JSONの前後に余計なテキストが付く場合に備え、最初の'{'から最後の'}'までを
// 切り出してからデコードする。
func parseLLMResponse(content string) (*llmMindMap, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object found in LLM response")
	}

	var parsed llmMindMap
	if err := json.Unmarshal([]byte(content[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response: %w", err)
	}

	// 空タイトルのトピックを除去
	topics := parsed.Topics[:0]
	for _, t := range parsed.Topics {
		if strings.TrimSpace(t.Title) != "" {
			topics = append(topics, t)
		}
	}
	parsed.Topics = topics

	if len(parsed.Topics) == 0 {
		return nil, fmt.Errorf("LLM response contains no topics")
	}

	return &parsed, nil
}
