package httptransport

import (
	"encoding/json"
	"fmt"
	"net/http"

	"recipe-ingest-service/internal/service"
)

// streamEvents writes the run's events as Server-Sent Events until the
// terminal event or until the client leaves. Leaving detaches the observer;
// the job keeps running.
func (h *Handler) streamEvents(w http.ResponseWriter, r *http.Request, res *service.IngestResult) {
	stream := res.Stream
	defer stream.Detach()

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusAccepted)

	send := func(event string, v any) bool {
		data, err := json.Marshal(v)
		if err != nil {
			h.logger.Error("marshal stream event", "error", err)
			return false
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
			return false
		}
		return rc.Flush() == nil
	}

	if !send("accepted", ingestAcceptedResp{JobID: res.JobID.String(), SourceID: res.SourceID.String()}) {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("stream observer left", "job_id", res.JobID)
			return
		case e, ok := <-stream.Events():
			if !ok {
				return
			}
			if !send(string(e.Type), e) {
				return
			}
		}
	}
}
