package model

import "time"

// MindMapNode はマインドマップの1ノードを表す。
// ルートノードが科目名、子ノードがトピック・サブトピックの階層ツリー。
// X/Yはフロントエンド描画用のレイアウト座標。
type MindMapNode struct {
	ID       string         `json:"id"`
	Label    string         `json:"label"`
	Level    int            `json:"level"`
	X        float64        `json:"x"`
	Y        float64        `json:"y"`
	Children []*MindMapNode `json:"children,omitempty"`
}

// MindMap はユーザーが生成したマインドマップを表す。
// Rootノードツリー全体をJSONBカラムに格納する。
// UserIDは所有者のGoogle UID（トークンのuidクレーム）であり、
// usersテーブルの内部UUIDではない。
type MindMap struct {
	ID        string       `json:"id"`
	UserID    string       `json:"-"`
	Subject   string       `json:"subject"`
	Syllabus  string       `json:"syllabus"`
	Root      *MindMapNode `json:"root"`
	Source    string       `json:"source"` // "llm" または "fallback"
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// CountNodes はツリー内のノード総数を返す。
func (m *MindMap) CountNodes() int {
	return countNodes(m.Root)
}

func countNodes(n *MindMapNode) int {
	if n == nil {
		return 0
	}
	total := 1
	for _, c := range n.Children {
		total += countNodes(c)
	}
	return total
}
