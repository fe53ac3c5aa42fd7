package handler

import "net/http"

type emptyResponse struct {
	status int
}

func (e emptyResponse) Render(w http.ResponseWriter, r *http.Request) error {
	w.WriteHeader(e.status)
	return nil
}

// Empty responds 204 No Content. DataStar treats it as "nothing to patch".
func Empty() Response {
	return emptyResponse{
		status: http.StatusNoContent,
	}
}
