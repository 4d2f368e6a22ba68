package export

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"strings"

	"github.com/nexusdeck/nexus/backend-go/internal/document"
	"github.com/nexusdeck/nexus/backend-go/internal/playback"
)

type htmlElement struct {
	Type    string
	Style   template.CSS
	Content string
	Link    string
	Target  string
}

type htmlSlide struct {
	ID         string
	Name       string
	Style      template.CSS
	Transition string
	Elements   []htmlElement
}

type htmlManifest struct {
	Durations   []float64 `json:"durations"`
	Transitions []string  `json:"transitions"`
	Names       []string  `json:"names"`
	IDs         []string  `json:"ids"`
}

type htmlData struct {
	Title    string
	Slides   []htmlSlide
	Manifest htmlManifest
	Website  bool
}

// HTML renders a standalone page that plays the presentation: slide
// switching, per-slide transitions, duration-based auto-advance and keyboard
// and button navigation, all driven by document fields.
func HTML(pres *document.Presentation) ([]byte, error) {
	data := htmlData{
		Title:   pres.Title,
		Website: pres.Kind == document.KindWebsite,
	}
	for _, s := range pres.Slides {
		hs := htmlSlide{
			ID:         s.ID,
			Name:       s.Name,
			Style:      slideCSS(s),
			Transition: string(document.ParseTransition(string(s.Transition))),
		}
		for _, el := range sortedElements(s.Elements) {
			hs.Elements = append(hs.Elements, htmlElementOf(el))
		}
		data.Slides = append(data.Slides, hs)
		data.Manifest.Durations = append(data.Manifest.Durations, playback.SlideDuration(s).Seconds())
		data.Manifest.Transitions = append(data.Manifest.Transitions, hs.Transition)
		data.Manifest.Names = append(data.Manifest.Names, s.Name)
		data.Manifest.IDs = append(data.Manifest.IDs, s.ID)
	}

	var buf bytes.Buffer
	if err := playerTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render html export: %w", err)
	}
	return buf.Bytes(), nil
}

func sortedElements(els []document.Element) []document.Element {
	out := make([]document.Element, len(els))
	copy(out, els)
	// Insertion sort keeps list order for equal z.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Style.ZIndex < out[j-1].Style.ZIndex; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func htmlElementOf(el document.Element) htmlElement {
	he := htmlElement{Type: string(el.Type), Content: el.Content, Style: elementCSS(el)}
	if el.Type == document.ElementButton && el.Link != "" {
		if playback.IsExternal(el.Link) {
			he.Link = el.Link
		} else {
			he.Target = el.Link
		}
	}
	return he
}

// cssValue drops characters that could end a declaration early.
func cssValue(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ';', '{', '}', '<', '>', '"', '\\':
			return -1
		}
		return r
	}, s)
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}

func slideCSS(s document.Slide) template.CSS {
	bg := s.Background
	if bg == "" {
		bg = document.DefaultBackground
	}
	css := "background:" + cssValue(document.ParseFill(bg).CSS()) + ";"
	if s.BackgroundImage != "" {
		css += "background-image:url('" + strings.ReplaceAll(cssValue(s.BackgroundImage), "'", "%27") + "');"
	}
	return template.CSS(css)
}

var shapeClips = map[document.ShapeType]string{
	document.ShapeTriangle: "polygon(50% 0%, 100% 100%, 0% 100%)",
	document.ShapeDiamond:  "polygon(50% 0%, 100% 50%, 50% 100%, 0% 50%)",
	document.ShapeStar:     "polygon(50% 0%, 61% 35%, 98% 35%, 68% 57%, 79% 91%, 50% 70%, 21% 91%, 32% 57%, 2% 35%, 39% 35%)",
	document.ShapeArrow:    "polygon(0% 30%, 60% 30%, 60% 0%, 100% 50%, 60% 100%, 60% 70%, 0% 70%)",
}

func elementCSS(el document.Element) template.CSS {
	st := el.Style
	var b strings.Builder
	fmt.Fprintf(&b, "left:%s;top:%s;width:%s;height:%s;z-index:%d;",
		px(el.Position.X), px(el.Position.Y), px(el.Size.Width), px(el.Size.Height), st.ZIndex)
	fmt.Fprintf(&b, "opacity:%s;", strconv.FormatFloat(st.Opacity, 'f', -1, 64))

	if !st.Fill.IsZero() {
		b.WriteString("background:" + cssValue(st.Fill.CSS()) + ";")
	}
	if st.TextColor != "" {
		b.WriteString("color:" + cssValue(st.TextColor) + ";")
	}
	if st.FontSize > 0 {
		b.WriteString("font-size:" + px(st.FontSize) + ";")
	}
	if st.FontFamily != "" {
		b.WriteString("font-family:'" + strings.ReplaceAll(cssValue(st.FontFamily), "'", "") + "',sans-serif;")
	}
	if st.FontWeight != "" {
		b.WriteString("font-weight:" + cssValue(st.FontWeight) + ";")
	}
	if st.BorderWidth > 0 && st.BorderStyle != document.BorderNone {
		style := st.BorderStyle
		if style == "" {
			style = document.BorderSolid
		}
		fmt.Fprintf(&b, "border:%s %s %s;", px(st.BorderWidth), cssValue(string(style)), cssValue(st.BorderColor))
	}
	if el.Type == document.ElementShape && el.Shape == document.ShapeCircle {
		b.WriteString("border-radius:50%;")
	} else if st.BorderRadius > 0 {
		b.WriteString("border-radius:" + px(st.BorderRadius) + ";")
	}
	if clip, ok := shapeClips[el.Shape]; ok && el.Type == document.ElementShape {
		b.WriteString("clip-path:" + clip + ";")
	}
	if st.Shadow {
		b.WriteString("box-shadow:0 10px 25px rgba(0,0,0,0.2);")
	}
	switch st.TextAlign {
	case document.AlignLeft:
		b.WriteString("text-align:left;justify-content:flex-start;")
	case document.AlignRight:
		b.WriteString("text-align:right;justify-content:flex-end;")
	default:
		b.WriteString("text-align:center;justify-content:center;")
	}
	if st.LineHeight != "" {
		b.WriteString("line-height:" + cssValue(st.LineHeight) + ";")
	}
	if a := el.Animation; a != nil && a.Kind != document.AnimationNone && a.Kind != "" {
		fmt.Fprintf(&b, "animation:enter-%s %ss ease %ss both;", cssValue(string(a.Kind)),
			strconv.FormatFloat(a.Duration, 'f', -1, 64), strconv.FormatFloat(a.Delay, 'f', -1, 64))
	}
	return template.CSS(b.String())
}

var playerTemplate = template.Must(template.New("player").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
body { margin: 0; padding: 0; font-family: sans-serif; overflow: hidden; background: #000; color: white; }
#app { width: 100vw; height: 100vh; display: flex; align-items: center; justify-content: center; position: relative; }
.slide { display: none; width: 960px; height: 540px; position: absolute; background-size: cover; background-position: center; overflow: hidden; transform-origin: center; box-shadow: 0 0 50px rgba(0,0,0,0.5); }
.slide.active { display: block; }
.slide.active.t-fade { animation: t-fade 0.5s ease; }
.slide.active.t-slide { animation: t-slide 0.5s ease; }
.slide.active.t-cover { animation: t-cover 0.5s ease; }
.slide.active.t-zoom { animation: t-zoom 0.5s ease; }
.slide.active.t-push { animation: t-push 0.5s ease; }
.element { position: absolute; display: flex; align-items: center; overflow: hidden; box-sizing: border-box; white-space: pre-wrap; }
.element img, .element video { width: 100%; height: 100%; object-fit: cover; border-radius: inherit; }
.element a { text-decoration: none; color: inherit; width: 100%; height: 100%; display: flex; align-items: center; justify-content: center; cursor: pointer; }
.controls { position: fixed; bottom: 20px; left: 50%; transform: translateX(-50%); display: flex; gap: 10px; z-index: 1000; background: rgba(0,0,0,0.5); padding: 10px 20px; border-radius: 30px; }
.btn { background: white; border: none; width: 40px; height: 40px; border-radius: 50%; cursor: pointer; font-weight: bold; font-size: 18px; opacity: 0.8; }
.btn:hover { opacity: 1; }
@keyframes t-fade { from { opacity: 0; } to { opacity: 1; } }
@keyframes t-slide { from { margin-left: 100%; } to { margin-left: 0; } }
@keyframes t-cover { from { margin-top: 100%; } to { margin-top: 0; } }
@keyframes t-zoom { from { opacity: 0; filter: blur(8px); } to { opacity: 1; filter: none; } }
@keyframes t-push { from { margin-left: -100%; } to { margin-left: 0; } }
@keyframes enter-fade { from { opacity: 0; } }
@keyframes enter-slide { from { transform: translateY(40px); opacity: 0; } }
@keyframes enter-scale { from { transform: scale(0.5); opacity: 0; } }
</style>
</head>
<body>
<div id="app">
{{- range $i, $s := .Slides}}
<div class="slide t-{{$s.Transition}}" id="slide-{{$i}}" data-name="{{$s.Name}}" style="{{$s.Style}}">
{{- range $s.Elements}}
<div class="element" style="{{.Style}}">
{{- if eq .Type "image"}}<img src="{{.Content}}" alt="">
{{- else if eq .Type "video"}}<video src="{{.Content}}" autoplay muted loop playsinline></video>
{{- else if eq .Type "button"}}{{if .Link}}<a href="{{.Link}}" target="_blank" rel="noopener">{{.Content}}</a>{{else}}<a data-target="{{.Target}}">{{.Content}}</a>{{end}}
{{- else if eq .Type "text"}}{{.Content}}
{{- end}}</div>
{{- end}}
</div>
{{- end}}
</div>
{{if not .Website}}
<div class="controls">
<button class="btn" id="prev">&larr;</button>
<button class="btn" id="play">&#9654;</button>
<span id="counter" style="display:flex;align-items:center;">1 / {{len .Slides}}</span>
<button class="btn" id="next">&rarr;</button>
</div>
{{end}}
<script>
(function () {
  var manifest = {{.Manifest}};
  var total = manifest.durations.length;
  var current = 0;
  var timer = null;
  var playing = /[?&]autoplay=1/.test(location.search);

  function show(i) {
    current = Math.max(0, Math.min(i, total - 1));
    document.querySelectorAll('.slide').forEach(function (el) { el.classList.remove('active'); });
    document.getElementById('slide-' + current).classList.add('active');
    var counter = document.getElementById('counter');
    if (counter) { counter.innerText = (current + 1) + ' / ' + total; }
    arm();
  }
  function arm() {
    if (timer) { clearTimeout(timer); timer = null; }
    if (!playing) { return; }
    timer = setTimeout(function () {
      if (current < total - 1) { show(current + 1); } else { playing = false; }
    }, manifest.durations[current] * 1000);
  }
  function go(target) {
    var i = manifest.ids.indexOf(target);
    if (i < 0) { i = manifest.names.indexOf(target); }
    if (i >= 0) { show(i); }
  }
  function resize() {
    var scale = Math.min(window.innerWidth / 960, window.innerHeight / 540);
    document.querySelectorAll('.slide').forEach(function (el) { el.style.transform = 'scale(' + scale + ')'; });
  }

  document.querySelectorAll('a[data-target]').forEach(function (a) {
    a.addEventListener('click', function (e) { e.preventDefault(); go(a.getAttribute('data-target')); });
  });
  var bind = function (id, fn) { var el = document.getElementById(id); if (el) { el.addEventListener('click', fn); } };
  bind('next', function () { show(current + 1); });
  bind('prev', function () { show(current - 1); });
  bind('play', function () { playing = !playing; arm(); });
  document.addEventListener('keydown', function (e) {
    if (e.key === 'ArrowRight' || e.key === ' ') { show(current + 1); }
    if (e.key === 'ArrowLeft') { show(current - 1); }
    if (e.key === 'Escape') { playing = false; arm(); }
  });
  window.addEventListener('resize', resize);
  resize();
  show(0);
})();
</script>
</body>
</html>
`))
