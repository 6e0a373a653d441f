package digest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anatolykoptev/go-kit/llm"
	"github.com/anatolykoptev/go_digest/internal/engine"
)

// Transcript text beyond this rune budget is truncated before the LLM call.
// An hour of speech is roughly 10k words, so this keeps even long videos
// within a single request.
const transcriptRuneBudget = 24000

// Placeholder strings keep the digest intact when an item cannot be
// summarized — the run never aborts over one video.
const (
	placeholderNoTranscript = "字幕が取得できなかったため、要約を作成できませんでした。"
	placeholderNoText       = "要約するテキストがありませんでした。"
	placeholderLLMError     = "要約の生成中にエラーが発生しました。"
)

const summaryPrompt = `あなたは優秀な要約アシスタントです。
提供されたYouTube動画の字幕テキストを元に、以下の構成で日本語のレポートを作成してください。

【要約】
動画の要点を600文字程度のパラグラフ形式（箇条書き不可）でまとめてください。

【考察】
動画の内容から読み取れる深い洞察や、視聴者が気づきにくい視点を提供してください。

【アクションプラン】
視聴者が明日から実践できる具体的な行動指針を3つ提案してください。

字幕テキスト:
%s`

// Summarize turns a transcript into the structured Japanese report used in
// the digest. LLM failures degrade to a placeholder, never an error.
func Summarize(ctx context.Context, transcript string) string {
	if strings.TrimSpace(transcript) == "" {
		slog.Warn("summarize: empty transcript")
		return placeholderNoText
	}

	transcript = engine.TruncateRunes(transcript, transcriptRuneBudget, "…")

	engine.IncrLLMCalls()
	out, err := engine.Cfg.LLMClient.Complete(ctx, "", fmt.Sprintf(summaryPrompt, transcript),
		llm.WithChatTemperature(0.7),
		llm.WithChatMaxTokens(1000),
	)
	if err != nil {
		engine.IncrLLMErrors()
		slog.Error("summarize: LLM call failed", slog.Any("error", err))
		return placeholderLLMError
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return placeholderLLMError
	}
	return out
}
