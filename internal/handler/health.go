package handler

import (
	"net/http"

	"github.com/cradoe/skypay/internal/response"
	"github.com/cradoe/skypay/internal/version"
)

func (h *RouteHandler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"Status":  "available",
		"Version": version.Get(),
	}

	message := "Up and grateful"

	err := response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}
