package mindmap

import (
	"math"
	"testing"

	"github.com/hitoshi/adhyayan/internal/model"
)

// collectIDs はノードツリーの全IDを深さ優先で収集する。
func collectIDs(n *model.MindMapNode) []string {
	if n == nil {
		return nil
	}
	ids := []string{n.ID}
	for _, c := range n.Children {
		ids = append(ids, collectIDs(c)...)
	}
	return ids
}

func TestBuildTree_RootAtOrigin(t *testing.T) {
	root := buildTree("数学", []llmTopic{{Title: "代数"}})

	if root.Label != "数学" {
		t.Errorf("root label = %q, want %q", root.Label, "数学")
	}
	if root.Level != 0 {
		t.Errorf("root level = %d, want 0", root.Level)
	}
	if root.X != 0 || root.Y != 0 {
		t.Errorf("root position = (%f, %f), want origin", root.X, root.Y)
	}
}

func TestBuildTree_TopicsOnCircle(t *testing.T) {
	topics := []llmTopic{
		{Title: "t1"},
		{Title: "t2"},
		{Title: "t3"},
		{Title: "t4"},
	}
	root := buildTree("subject", topics)

	if len(root.Children) != 4 {
		t.Fatalf("children = %d, want 4", len(root.Children))
	}
	for i, child := range root.Children {
		dist := math.Hypot(child.X, child.Y)
		if math.Abs(dist-topicRadius) > 1e-9 {
			t.Errorf("topic %d distance = %f, want %f", i, dist, topicRadius)
		}
		if child.Level != 1 {
			t.Errorf("topic %d level = %d, want 1", i, child.Level)
		}
	}

	// 最初のトピックは角度0（X軸正方向）に配置される
	first := root.Children[0]
	if math.Abs(first.X-topicRadius) > 1e-9 || math.Abs(first.Y) > 1e-9 {
		t.Errorf("first topic = (%f, %f), want (%f, 0)", first.X, first.Y, topicRadius)
	}
}

func TestBuildTree_SubtopicsAroundParent(t *testing.T) {
	topics := []llmTopic{
		{Title: "t1", Subtopics: []string{"s1", "s2", "s3"}},
	}
	root := buildTree("subject", topics)

	topic := root.Children[0]
	if len(topic.Children) != 3 {
		t.Fatalf("subtopics = %d, want 3", len(topic.Children))
	}
	for i, sub := range topic.Children {
		dist := math.Hypot(sub.X-topic.X, sub.Y-topic.Y)
		if math.Abs(dist-subtopicRadius) > 1e-9 {
			t.Errorf("subtopic %d distance from parent = %f, want %f", i, dist, subtopicRadius)
		}
		if sub.Level != 2 {
			t.Errorf("subtopic %d level = %d, want 2", i, sub.Level)
		}
	}
}

func TestBuildTree_UniqueNodeIDs(t *testing.T) {
	topics := []llmTopic{
		{Title: "t1", Subtopics: []string{"s1", "s2"}},
		{Title: "t2", Subtopics: []string{"s3"}},
	}
	root := buildTree("subject", topics)

	seen := map[string]bool{}
	for _, id := range collectIDs(root) {
		if id == "" {
			t.Error("empty node ID")
		}
		if seen[id] {
			t.Errorf("duplicate node ID: %s", id)
		}
		seen[id] = true
	}
}

func TestBuildFallbackTree_EmptySyllabus_SingleOverviewNode(t *testing.T) {
	root := buildFallbackTree("物理", "")

	if len(root.Children) != 1 {
		t.Fatalf("children = %d, want 1", len(root.Children))
	}
	if root.Children[0].Label != "物理 の概要" {
		t.Errorf("label = %q, want %q", root.Children[0].Label, "物理 の概要")
	}
}

func TestExtractTopics_BulletsAndColons(t *testing.T) {
	syllabus := "- 力学: 運動方程式, エネルギー保存\n" +
		"2. 電磁気学\n" +
		"\n" +
		"* 熱力学：エントロピー、状態方程式\n"

	topics := extractTopics(syllabus)

	if len(topics) != 3 {
		t.Fatalf("topics = %d, want 3", len(topics))
	}
	if topics[0].Title != "力学" {
		t.Errorf("topics[0] = %q, want %q", topics[0].Title, "力学")
	}
	if len(topics[0].Subtopics) != 2 || topics[0].Subtopics[0] != "運動方程式" {
		t.Errorf("topics[0] subtopics = %v", topics[0].Subtopics)
	}
	if topics[1].Title != "電磁気学" {
		t.Errorf("topics[1] = %q, want %q", topics[1].Title, "電磁気学")
	}
	// 全角コロンと読点も区切りとして扱われる
	if topics[2].Title != "熱力学" {
		t.Errorf("topics[2] = %q, want %q", topics[2].Title, "熱力学")
	}
	if len(topics[2].Subtopics) != 2 || topics[2].Subtopics[1] != "状態方程式" {
		t.Errorf("topics[2] subtopics = %v", topics[2].Subtopics)
	}
}

func TestExtractTopics_CapsTopicCount(t *testing.T) {
	syllabus := ""
	for i := 0; i < 20; i++ {
		syllabus += "topic\n"
	}

	topics := extractTopics(syllabus)
	if len(topics) != maxFallbackTopics {
		t.Errorf("topics = %d, want %d", len(topics), maxFallbackTopics)
	}
}

func TestParseLLMResponse_SurroundingText_Extracted(t *testing.T) {
	content := "Here is your mind map:\n" +
		`{"topics":[{"title":"代数","subtopics":["一次方程式"]},{"title":""}]}` +
		"\nEnjoy!"

	parsed, err := parseLLMResponse(content)
	if err != nil {
		t.Fatalf("parseLLMResponse() error = %v", err)
	}
	// 空タイトルのトピックは除去される
	if len(parsed.Topics) != 1 {
		t.Fatalf("topics = %d, want 1", len(parsed.Topics))
	}
	if parsed.Topics[0].Title != "代数" {
		t.Errorf("title = %q, want %q", parsed.Topics[0].Title, "代数")
	}
}

func TestParseLLMResponse_NoJSON_ReturnsError(t *testing.T) {
	if _, err := parseLLMResponse("I cannot help with that."); err == nil {
		t.Fatal("expected error for response without JSON")
	}
}

func TestParseLLMResponse_EmptyTopics_ReturnsError(t *testing.T) {
	if _, err := parseLLMResponse(`{"topics":[]}`); err == nil {
		t.Fatal("expected error for empty topic list")
	}
}
