package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/dukerupert/questkeeper/internal/schedule"
)

// ScheduleHandler exposes a manual trigger for the recurring-task reset,
// mirroring what the hourly scheduler does on its own.
type ScheduleHandler struct {
	scheduler *schedule.Scheduler
}

func NewScheduleHandler(s *schedule.Scheduler) *ScheduleHandler {
	return &ScheduleHandler{scheduler: s}
}

func (h *ScheduleHandler) Run(w http.ResponseWriter, r *http.Request) {
	report, err := h.scheduler.RunOnce(time.Now().UTC())
	if err != nil {
		log.Printf("schedule run failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "schedule run failed",
			"details": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, report)
}
