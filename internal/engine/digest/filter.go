package digest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anatolykoptev/go-kit/llm"
	"github.com/anatolykoptev/go_digest/internal/engine"
)

const genAIFilterPrompt = `以下のYouTube動画が「生成AI」（LLM、画像生成、AIエージェント、AI開発ツールなど）に関連する内容かどうかを判定してください。
"yes" または "no" のみで回答してください。

タイトル: %s
概要: %s`

// IsGenAIVideo classifies whether a video belongs in the generative-AI
// digest based on its title and description. On LLM failure the video is
// kept: a too-long digest beats a silently empty one.
func IsGenAIVideo(ctx context.Context, title, description string) bool {
	description = engine.TruncateRunes(description, 500, "…")

	engine.IncrLLMCalls()
	out, err := engine.Cfg.LLMClient.Complete(ctx, "", fmt.Sprintf(genAIFilterPrompt, title, description),
		llm.WithChatTemperature(0),
		llm.WithChatMaxTokens(5),
	)
	if err != nil {
		engine.IncrLLMErrors()
		slog.Warn("filter: classification failed, keeping video",
			slog.String("title", title), slog.Any("error", err))
		return true
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(out)), "y")
}
