package httpapi

import (
	_ "embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/mwenda/kazi/internal/usage"
)

//go:embed ui.html
var indexHTML string

var indexTmpl = template.Must(template.New("index").Parse(indexHTML))

type indexData struct {
	SessionID string
	Totals    usage.Totals
	PlanText  string
}

// handleIndex serves the interactive web page. All actions on the page
// go through the JSON API; the template only seeds initial state.
func (g *Gateway) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := indexData{
		SessionID: g.sess.ID().String(),
		Totals:    g.sess.Ledger().Totals(),
		PlanText:  g.sess.PlanText(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, data); err != nil {
		g.logger.Error("rendering index page", slog.String("error", err.Error()))
	}
}
