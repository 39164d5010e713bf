package mindmap

import (
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/hitoshi/adhyayan/internal/model"
)

const (
	// topicRadius はルートからトピックノードまでの距離。
	topicRadius = 250.0
	// subtopicRadius はトピックからサブトピックノードまでの距離。
	subtopicRadius = 120.0
	// maxFallbackTopics はフォールバック生成時のトピック数上限。
	maxFallbackTopics = 8
	// maxFallbackSubtopics はフォールバック生成時のトピックあたりサブトピック数上限。
	maxFallbackSubtopics = 6
)

// buildTree はトピック階層からレイアウト済みノードツリーを構築する。
// ルートを原点に置き、トピックを半径topicRadiusの円周上に等間隔で配置、
// サブトピックは親トピックの外側に扇状に配置する。
func buildTree(subject string, topics []llmTopic) *model.MindMapNode {
	root := &model.MindMapNode{
		ID:    uuid.New().String(),
		Label: subject,
		Level: 0,
		X:     0,
		Y:     0,
	}

	n := len(topics)
	for i, t := range topics {
		// トピックは円周上に等間隔配置
		angle := 2 * math.Pi * float64(i) / float64(n)
		topicNode := &model.MindMapNode{
			ID:    uuid.New().String(),
			Label: t.Title,
			Level: 1,
			X:     topicRadius * math.Cos(angle),
			Y:     topicRadius * math.Sin(angle),
		}

		m := len(t.Subtopics)
		for j, sub := range t.Subtopics {
			// サブトピックは親の方位を中心に±45度の扇状に配置
			subAngle := angle
			if m > 1 {
				subAngle = angle - math.Pi/4 + (math.Pi/2)*float64(j)/float64(m-1)
			}
			topicNode.Children = append(topicNode.Children, &model.MindMapNode{
				ID:    uuid.New().String(),
				Label: sub,
				Level: 2,
				X:     topicNode.X + subtopicRadius*math.Cos(subAngle),
				Y:     topicNode.Y + subtopicRadius*math.Sin(subAngle),
			})
		}

		root.Children = append(root.Children, topicNode)
	}

	return root
}

// buildFallbackTree はLLMが利用できない場合の決定的なツリービルダー。
// シラバステキストを行・区切り文字で分割してトピック/サブトピックを抽出し、
// buildTreeと同じ放射状レイアウトで配置する。
func buildFallbackTree(subject, syllabus string) *model.MindMapNode {
	topics := extractTopics(syllabus)
	if len(topics) == 0 {
		// シラバスが空・分割不能の場合は科目名のみの単一ノード
		topics = []llmTopic{{Title: subject + " の概要"}}
	}
	return buildTree(subject, topics)
}

// extractTopics はシラバステキストから決定的にトピック階層を抽出する。
// 行単位で分割し、"トピック: サブ1, サブ2" 形式の行はコロン以降を
// サブトピックとして扱う。
func extractTopics(syllabus string) []llmTopic {
	var topics []llmTopic

	for _, line := range strings.Split(syllabus, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*•0123456789. "))
		if line == "" {
			continue
		}

		// 全角コロンは半角に正規化してから分割する
		line = strings.ReplaceAll(line, "：", ":")

		title := line
		var subtopics []string
		if idx := strings.Index(line, ":"); idx > 0 {
			title = strings.TrimSpace(line[:idx])
			rest := line[idx+1:]
			for _, part := range strings.FieldsFunc(rest, func(r rune) bool {
				return r == ',' || r == '、' || r == ';'
			}) {
				part = strings.TrimSpace(part)
				if part != "" && len(subtopics) < maxFallbackSubtopics {
					subtopics = append(subtopics, part)
				}
			}
		}

		topics = append(topics, llmTopic{Title: title, Subtopics: subtopics})
		if len(topics) >= maxFallbackTopics {
			break
		}
	}

	return topics
}
