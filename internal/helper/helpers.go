package helper

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
)

type HelperRepository struct {
	baseUrl string
	WG      *sync.WaitGroup
	logger  *slog.Logger
}

func New(baseUrl string, wg *sync.WaitGroup, logger *slog.Logger) *HelperRepository {
	if wg == nil {
		wg = &sync.WaitGroup{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &HelperRepository{
		baseUrl: baseUrl,
		WG:      wg,
		logger:  logger,
	}
}

func (h *HelperRepository) NewEmailData() map[string]any {
	data := map[string]any{
		"BaseURL": h.baseUrl,
	}

	return data
}

// BackgroundTask runs fn outside the request. Graceful shutdown waits on WG,
// so every task started here finishes before the process exits.
func (h *HelperRepository) BackgroundTask(r *http.Request, fn func() error) {
	h.WG.Add(1)

	var attrs []any
	if r != nil {
		attrs = append(attrs, slog.Group("request", "method", r.Method, "url", r.URL.String()))
	}

	go func() {
		defer h.WG.Done()

		defer func() {
			if err := recover(); err != nil {
				h.logger.Error(fmt.Sprintf("background task panic: %v", err), attrs...)
			}
		}()

		if err := fn(); err != nil {
			h.logger.Error(err.Error(), attrs...)
		}
	}()
}
