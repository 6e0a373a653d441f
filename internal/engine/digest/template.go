package digest

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/anatolykoptev/go_digest/internal/engine/sources"
)

// Item is one summarized video as rendered in the digest.
type Item struct {
	Video   sources.Video
	Summary string
}

// YouTube-style card layout, inline CSS only for mail client compatibility.
var digestTmpl = template.Must(template.New("digest").Funcs(template.FuncMap{
	"viewCount": func(n int64) string {
		s := fmt.Sprintf("%d", n)
		var parts []string
		for len(s) > 3 {
			parts = append([]string{s[len(s)-3:]}, parts...)
			s = s[:len(s)-3]
		}
		parts = append([]string{s}, parts...)
		return strings.Join(parts, ",")
	},
	"published": func(t time.Time) string {
		return t.Local().Format("2006/01/02 15:04")
	},
	"paragraphs": func(s string) []string {
		return strings.Split(s, "\n")
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>YouTube要約ダイジェスト</title>
</head>
<body style="font-family: 'Roboto', 'Helvetica Neue', Helvetica, Arial, sans-serif; background-color: #f9f9f9; margin: 0; padding: 20px; color: #0f0f0f;">
<div style="max-width: 600px; margin: 0 auto; background-color: #ffffff; border-radius: 16px; overflow: hidden; box-shadow: 0 4px 20px rgba(0,0,0,0.05);">
  <div style="padding: 16px 24px; border-bottom: 1px solid #f0f0f0; background-color: #ffffff;">
    <span style="font-size: 22px; font-weight: 700; letter-spacing: -0.5px;">YouTube要約ダイジェスト</span>
    <span style="float: right; background-color: #f2f2f2; padding: 6px 12px; border-radius: 20px; font-size: 12px; color: #606060;">{{.Date}}</span>
  </div>
  <div style="padding: 24px;">
{{range .Items}}    <div style="margin-bottom: 40px; border-bottom: 1px solid #f0f0f0; padding-bottom: 32px;">
      <div style="position: relative; width: 100%; border-radius: 12px; overflow: hidden; margin-bottom: 16px;">
        <a href="{{.Video.URL}}"><img src="{{.Video.Thumbnail}}" alt="Thumbnail" style="width: 100%; display: block;"></a>
      </div>
      <a href="{{.Video.URL}}" style="font-size: 18px; font-weight: 600; line-height: 1.4; color: #0f0f0f; margin-bottom: 12px; text-decoration: none; display: block;">{{.Video.Title}}</a>
      <p style="font-size: 12px; color: #606060; margin-bottom: 16px;">
        {{.Video.ChannelTitle}} ・ {{.Video.Duration}} ・ {{viewCount .Video.ViewCount}}回再生 ・ {{published .Video.PublishedAt}}
      </p>
      <div style="background-color: #f2f2f2; padding: 16px; border-radius: 12px; margin-bottom: 16px;">
        <div style="font-size: 12px; font-weight: 700; margin-bottom: 8px;">✨ AI要約</div>
        <div style="font-size: 14px; line-height: 1.6;">
{{range paragraphs .Summary}}          <p style="margin: 0 0 8px;">{{.}}</p>
{{end}}        </div>
      </div>
      <a href="{{.Video.URL}}" style="display: inline-block; background-color: #f2f2f2; color: #0f0f0f; padding: 10px 20px; border-radius: 20px; text-decoration: none; font-size: 14px;">▶ 動画を見る</a>
    </div>
{{end}}  </div>
  <div style="text-align: center; padding: 32px; background-color: #f9f9f9; color: #909090; font-size: 12px;">
    This email was generated automatically by go_digest.
  </div>
</div>
</body>
</html>
`))

// RenderHTML produces the HTML digest body.
func RenderHTML(items []Item) (string, error) {
	var sb strings.Builder
	err := digestTmpl.Execute(&sb, struct {
		Date  string
		Items []Item
	}{
		Date:  time.Now().Format("2006/01/02"),
		Items: items,
	})
	if err != nil {
		return "", fmt.Errorf("render digest: %w", err)
	}
	return sb.String(), nil
}

// RenderText produces the plain-text alternative body.
func RenderText(items []Item) string {
	var sb strings.Builder
	sb.WriteString("直近の更新動画要約です。\n\n")
	for _, item := range items {
		fmt.Fprintf(&sb, "■ %s\n", item.Video.Title)
		fmt.Fprintf(&sb, "URL: %s\n", item.Video.URL)
		fmt.Fprintf(&sb, "要約:\n%s\n", item.Summary)
		sb.WriteString(strings.Repeat("-", 30) + "\n\n")
	}
	return sb.String()
}
