package handler

import (
	"net/http"
)

// SSEHandler streams patches over one DataStar response. The stream ends
// when the handler returns.
//
//	handler.SSE(func(stream handler.StreamContext) error {
//		if err := stream.SendComponent(views.Actions(busy), handler.WithTarget("#actions")); err != nil {
//			return err
//		}
//		outcome, _ := ctrl.Purchase(stream)
//		return stream.SendComponent(views.Actions(ctrl.State()), handler.WithTarget("#actions"))
//	})
type SSEHandler func(ctx StreamContext) error

type sseResponse struct {
	handler SSEHandler
}

func (s sseResponse) Render(w http.ResponseWriter, r *http.Request) error {
	if !IsDataStar(r) {
		return NewHTTPError(http.StatusBadRequest, "SSE endpoint requires DataStar connection")
	}

	base := NewContext(w, r)
	sse := base.SSE()
	if sse == nil {
		return ErrSSENotInitialized
	}

	return s.handler(&streamContext{Context: base, sse: sse})
}

// SSE creates a Response that runs handler with a StreamContext, letting it
// send several patches in sequence, such as a busy state before a slow call
// and the outcome after it.
func SSE(handler SSEHandler) Response {
	return sseResponse{handler: handler}
}
