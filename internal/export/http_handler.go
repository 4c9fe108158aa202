package export

import (
	"fmt"
	"net/http"
	"time"
)

type Handler struct {
	service *Service
}

// NewHTTPHandler serves the check report as an xlsx download.
func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	filename := fmt.Sprintf("checks-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := h.service.WriteReport(r.Context(), w); err != nil {
		// Headers are already out; all we can do is log through the service.
		h.service.log.Error("report generation failed", "error", err)
	}
}
