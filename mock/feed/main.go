// Command feed serves the sample documents as a document feed on :8081.
// GET /api/<collection> answers {"documents": [...]}.
package main

import (
	_ "embed"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

//go:embed data/seed.json
var seed []byte

func main() {
	http.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		collection := strings.TrimPrefix(r.URL.Path, "/api/")
		docs := gjson.GetBytes(seed, gjson.Escape(collection))
		if collection == "" || !docs.IsArray() {
			http.NotFound(w, r)
			log.Printf("[Feed] %s %s - 404", r.Method, r.URL.Path)
			return
		}

		// Simulate network latency (50-200ms)
		time.Sleep(time.Duration(50+time.Now().UnixNano()%150) * time.Millisecond)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"documents":` + docs.Raw + `}`)); err != nil {
			log.Printf("[Feed] Write error: %v", err)
		}

		log.Printf("[Feed] %s %s - 200 OK (%d documents)", r.Method, r.URL.Path, len(docs.Array()))
	})

	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"healthy"}`)); err != nil {
			log.Printf("[Feed] Health write error: %v", err)
		}
	})

	log.Println("Mock feed running on :8081")
	server := &http.Server{
		Addr:         ":8081",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.Fatal(server.ListenAndServe())
}
