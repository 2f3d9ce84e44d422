package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/portfolify/shipd/internal/job"
	"github.com/portfolify/shipd/internal/logstream"
)

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.Get(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // allow any origin (token auth is sufficient)
	})
	if err != nil {
		zap.S().Warnf("ws: accept failed for %s: %v", id, err)
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	s.streamProgress(ctx, conn, id)
	conn.Close(websocket.StatusNormalClosure, "done")
}

func (s *Server) streamProgress(ctx context.Context, conn *websocket.Conn, id string) {
	// Subscribe first so we don't miss events published between reading backlog and subscribing
	ch, unsub := s.hub.Subscribe(id)
	defer unsub()

	d, err := s.store.Get(id)
	if err != nil {
		return
	}

	// Backlog lines are stamped with the progress at subscribe time.
	for _, line := range d.Log {
		ev := logstream.Event{
			DeploymentID: id,
			Percent:      d.Progress,
			Step:         d.Step,
			Phase:        string(d.Phase),
			Status:       string(d.Status),
			Line:         line,
			Time:         d.UpdatedAt,
		}
		if err := wsjson.Write(ctx, conn, ev); err != nil {
			return
		}
	}

	snapshot := logstream.Event{
		DeploymentID: id,
		Percent:      d.Progress,
		Step:         d.Step,
		Phase:        string(d.Phase),
		Status:       string(d.Status),
		Time:         time.Now(),
	}
	if err := wsjson.Write(ctx, conn, snapshot); err != nil {
		return
	}

	if d.Status.Finished() {
		return
	}

	sent := d.Progress
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			finished := job.Status(ev.Status).Finished()
			// Events queued before the snapshot are already covered by the backlog.
			if ev.Percent < sent && !finished {
				continue
			}
			sent = ev.Percent
			if err := wsjson.Write(ctx, conn, ev); err != nil {
				return
			}
			if finished {
				return
			}
		}
	}
}
