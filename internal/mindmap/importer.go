package mindmap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/adhyayan/internal/security"
	"golang.org/x/net/html"
)

// Importer は公開Webページからシラバステキストをインポートするフェッチャー。
// SSRF防止付きクライアントで取得し、HTMLから本文テキストを抽出する。
type Importer struct {
	guard   security.SSRFGuardService
	logger  *slog.Logger
	timeout time.Duration
	maxSize int64
}

// NewImporter はImporterの新しいインスタンスを生成する。
func NewImporter(guard security.SSRFGuardService, logger *slog.Logger, timeout time.Duration, maxSize int64) *Importer {
	return &Importer{
		guard:   guard,
		logger:  logger,
		timeout: timeout,
		maxSize: maxSize,
	}
}

// FetchSyllabus は指定URLのページを取得し、シラバスとして扱える
// プレーンテキストを抽出して返す。
func (i *Importer) FetchSyllabus(ctx context.Context, rawURL string) (string, error) {
	// 1. 静的なURL検証（スキーム・ホスト・IPレンジ）
	if err := i.guard.ValidateURL(rawURL); err != nil {
		return "", fmt.Errorf("URL validation failed: %w", err)
	}

	// 2. SSRF防止付きクライアントで取得
	client := i.guard.NewSafeClient(i.timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Adhyayan/1.0 Syllabus Importer")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}

	// 3. サイズ上限付きで読み取り、HTMLから本文テキストを抽出
	body := io.LimitReader(resp.Body, i.maxSize)
	text, err := extractText(body)
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}
	if text == "" {
		return "", fmt.Errorf("no text content found at URL")
	}

	i.logger.Info("syllabus imported from URL",
		slog.String("url", rawURL),
		slog.Int("text_length", len(text)),
	)

	return text, nil
}

// extractText はHTMLドキュメントからscript/style/head配下を除く
// テキストノードを行単位で抽出する。
func extractText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "head", "nav", "footer":
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				lines = append(lines, text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(lines, "\n"), nil
}
