package handler

import (
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"
)

const (
	// datastarRequestHeader is set by the datastar client on every @get/@post
	// issued from a paywall screen.
	datastarRequestHeader = "Datastar-Request"
	// datastarSignalsParam carries signals on GET intents.
	datastarSignalsParam = "datastar"
)

// PatchPrepend inserts a fragment as the first child of its target. Toasts
// stack newest-first with it.
const PatchPrepend = datastar.ElementPatchModePrepend

// IsDataStar reports whether r is a screen intent that expects an SSE patch
// stream rather than a full HTML page.
func IsDataStar(r *http.Request) bool {
	if r.Header.Get(datastarRequestHeader) == "true" {
		return true
	}
	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		return true
	}
	return r.URL.Query().Has(datastarSignalsParam)
}

// NewSSE opens the patch stream for a screen intent.
func NewSSE(w http.ResponseWriter, r *http.Request) *datastar.ServerSentEventGenerator {
	return datastar.NewSSE(w, r)
}
