// Command callback-server is a local sink for shipd deployment callbacks.
// Point submissions at http://localhost:3000/callbacks/{anything}.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/portfolify/shipd/internal/callback"
	"github.com/portfolify/shipd/internal/logging"
)

func main() {
	addr := flag.String("listen", ":3000", "listen address")
	flag.Parse()

	logger, err := logging.New(true)
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(logger)

	r := chi.NewRouter()
	r.Post("/callbacks/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		body, _ := io.ReadAll(r.Body)

		var payload callback.StatusPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			zap.S().Warnf("[callback] %s: bad payload: %v", name, err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		zap.S().Infof("[callback] %s: deployment %s %s\n%s", name, payload.DeploymentID, payload.Status, prettyJSON(payload))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "received"})
	})

	zap.S().Infof("callback server listening on %s", *addr)
	if err := http.ListenAndServe(*addr, r); err != nil {
		zap.S().Fatal(err)
	}
}

func prettyJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
