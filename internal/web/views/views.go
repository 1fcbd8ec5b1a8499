// Package views renders the drop-target page.
package views

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/boardsync/internal/core"
)

// Page renders the full drop page for the current snapshot. last may be nil.
func Page(snap core.Snapshot, last *core.Report) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, pageHead); err != nil {
			return err
		}
		if err := Status(snap, last).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, pageTail)
		return err
	})
}

// Status renders the stage-dependent part of the page: the drop zone,
// the trigger button and, once a row has been applied, the progress line.
func Status(snap core.Snapshot, last *core.Report) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}

		p.printf(`<section id="status" data-state="%s">`, snap.State)

		switch snap.State {
		case core.StateIdle, core.StateLoading:
			p.printf(`<p class="muted">Loading board…</p>`)
		default:
			p.printf(`<label id="drop" class="drop"><input id="file" type="file" accept=".csv,text/csv" multiple hidden>`)
			if snap.FileName != "" {
				p.printf(`<span>%s</span>`, templ.EscapeString(snap.FileName))
			} else {
				p.printf(`<span>Click or drag &amp; drop a CSV file</span>`)
			}
			p.printf(`</label>`)
		}

		disabled := ""
		if !snap.CanSync() {
			disabled = " disabled"
		}
		p.printf(`<button id="sync"%s>%s</button>`, disabled, ButtonLabel(snap))

		if snap.State == core.StateUploading && snap.Progress.Completed > 0 {
			p.printf(`<p id="progress">%s</p>`, ProgressLine(snap.Progress))
		}

		if last != nil {
			renderReport(p, last)
		}

		p.printf(`</section>`)
		return p.err
	})
}

// ButtonLabel is the trigger text for a snapshot.
func ButtonLabel(snap core.Snapshot) string {
	if snap.State == core.StateUploading {
		return "Updating…"
	}
	return "Update " + strconv.Itoa(snap.Pending) + " entries"
}

// ProgressLine renders "Updating C / T".
func ProgressLine(p core.ProgressState) string {
	return fmt.Sprintf("Updating %d / %d", p.Completed, p.Total)
}

func renderReport(p *printer, r *core.Report) {
	p.printf(`<div class="report">`)
	if r.Error != "" {
		p.printf(`<p class="error">%s</p>`, templ.EscapeString(core.FormatUserError(fmt.Errorf("%s", r.Error))))
	}
	p.printf(`<p>%s: created %d, updated %d, failed %d</p>`,
		templ.EscapeString(r.FileName), r.Created, r.Updated, len(r.Failed))
	if len(r.Failed) > 0 {
		p.printf(`<a href="/api/runs/%s/failed-rows">Download failed rows</a>`, r.RunID)
	}
	p.printf(`</div>`)
}

// printer keeps the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Board sync</title>
<style>
body{font-family:system-ui,sans-serif;max-width:36rem;margin:4rem auto;color:#222}
.drop{display:block;border:2px dashed #999;border-radius:8px;padding:3rem;text-align:center;cursor:pointer}
.drop.over{border-color:#0073ea;background:#f0f6ff}
button{margin-top:1rem;padding:.6rem 1.2rem;font-size:1rem}
.muted{color:#777}.error{color:#b00}
</style>
</head>
<body>
<h1>Board sync</h1>
`

const pageTail = `
<script>
(function(){
  function render(){ fetch('/', {headers:{'X-Partial':'status'}}).then(function(r){return r.text()}).then(function(h){
    var s=document.getElementById('status'); if(s){s.outerHTML=h; bind();}
  }); }
  function upload(files){
    var chain=Promise.resolve();
    Array.prototype.forEach.call(files, function(f){
      chain=chain.then(function(){
        var fd=new FormData(); fd.append('file', f);
        return fetch('/api/upload',{method:'POST',body:fd}).then(function(r){ if(!r.ok){return r.json().then(function(e){alert(e.message+' '+(e.action||''))})} });
      });
    });
    chain.then(render);
  }
  function bind(){
    var d=document.getElementById('drop'), i=document.getElementById('file'), b=document.getElementById('sync');
    if(d){
      d.ondragover=function(e){e.preventDefault(); d.classList.add('over')};
      d.ondragleave=function(){d.classList.remove('over')};
      d.ondrop=function(e){e.preventDefault(); d.classList.remove('over'); upload(e.dataTransfer.files)};
      i.onchange=function(){ upload(i.files) };
    }
    if(b){ b.onclick=function(){ b.disabled=true; fetch('/api/sync',{method:'POST'}).then(render) } }
  }
  bind();
  var es=new EventSource('/api/progress');
  es.addEventListener('progress', function(e){
    var s=JSON.parse(e.data), el=document.getElementById('status');
    if(!el || el.dataset.state!==s.state){ render(); return }
    var p=document.getElementById('progress');
    if(p){ p.textContent='Updating '+s.progress.completed+' / '+s.progress.total }
    else if(s.progress.completed>0){ render() }
  });
})();
</script>
</body>
</html>
`
