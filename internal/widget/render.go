package widget

import (
	"bytes"
	"html/template"
	"time"

	"dday/internal/model"
)

const dateLayout = "2006.01.02"

// EmptyText is shown when there are no events.
func EmptyText(locale string) string {
	if locale == "en" {
		return "No D-day events."
	}
	return "디데이 정보가 없습니다."
}

// Item is one rendered row.
type Item struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	DDayText   string    `json:"dDayText"`
	TargetDate time.Time `json:"targetDate"`
	DateText   string    `json:"dateText"`
}

// View is the data a widget page (HTML or JSON) is built from.
type View struct {
	Kind        string    `json:"kind"`
	Family      Family    `json:"family"`
	GeneratedAt time.Time `json:"generatedAt"`
	NextReload  time.Time `json:"nextReload"`
	Placeholder bool      `json:"placeholder"`
	Items       []Item    `json:"items"`
	EmptyText   string    `json:"emptyText,omitempty"`
}

// BuildView projects the current timeline entry for a family.
func BuildView(tl Timeline, family Family, locale string) View {
	entry := tl.Current()
	v := View{
		Kind:        tl.Kind,
		Family:      family,
		GeneratedAt: entry.Date,
		NextReload:  tl.Next,
		Placeholder: entry.Placeholder,
		Items:       make([]Item, 0, family.Limit()),
	}
	for _, ev := range entry.Visible(family) {
		v.Items = append(v.Items, itemFrom(ev))
	}
	if len(v.Items) == 0 {
		v.EmptyText = EmptyText(locale)
	}
	return v
}

func itemFrom(s model.Snapshot) Item {
	return Item{
		ID:         s.ID,
		Title:      s.Title,
		DDayText:   s.DDayText,
		TargetDate: s.TargetDate,
		DateText:   s.TargetDate.Format(dateLayout),
	}
}

// small 은 첫 이벤트 하나를 크게, medium 은 최대 3개를 줄 단위로 보여준다.
var pageTmpl = template.Must(template.New("widget").Parse(`<!doctype html>
<html lang="ko">
<head>
<meta charset="utf-8">
<title>{{.Kind}}</title>
<style>
body{margin:0;font-family:-apple-system,"Apple SD Gothic Neo",sans-serif;background:#000;color:#fff}
.widget{box-sizing:border-box;padding:14px;height:100vh}
.small .title{font-size:16px;font-weight:600}
.small .label{font-size:34px;font-weight:700;margin:6px 0}
.small .date,.row .date{font-size:12px;color:#aaa}
.row{display:flex;justify-content:space-between;align-items:baseline;padding:6px 0;border-bottom:1px solid #222}
.row .label{font-weight:700}
.empty{color:#888;text-align:center;margin-top:40px}
</style>
</head>
<body>
<div class="widget {{.Family}}" data-ready="true" data-placeholder="{{.Placeholder}}">
{{- if not .Items}}
  <p class="empty">{{.EmptyText}}</p>
{{- else if eq .Family "small"}}
  {{- with index .Items 0}}
  <div class="title">{{.Title}}</div>
  <div class="label">{{.DDayText}}</div>
  <div class="date">{{.DateText}}</div>
  {{- end}}
{{- else}}
  {{- range .Items}}
  <div class="row">
    <span class="title">{{.Title}}</span>
    <span class="label">{{.DDayText}}</span>
    <span class="date">{{.DateText}}</span>
  </div>
  {{- end}}
{{- end}}
</div>
</body>
</html>
`))

// RenderHTML renders the widget page.
func RenderHTML(v View) ([]byte, error) {
	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
