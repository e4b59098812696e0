package internal

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dgraph-io/badger/v4"
)

type InspectRow struct {
	Key   string `json:"key"`
	Size  int    `json:"size"`
	Value string `json:"value,omitempty"`
}

type StatsProvider func() map[string]any

// StartDebugServer exposes a read-only view of the store for local
// debugging: /inspect?prefix=msg:1: dumps matching keys as JSON, and
// /stats reports whatever the provider knows about the runtime. Never
// expose this port publicly.
func StartDebugServer(db *badger.DB, port int, statsProvider StatsProvider) {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /inspect", func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "msg:"
		}

		var rows []InspectRow
		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				_ = item.Value(func(val []byte) error {
					row := InspectRow{Key: string(item.Key()), Size: len(val)}
					if json.Valid(val) {
						row.Value = string(val)
					}
					rows = append(rows, row)
					return nil
				})
			}
			return nil
		})

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"prefix": prefix, "items": rows})
	})

	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, _ *http.Request) {
		stats := map[string]any{}
		if statsProvider != nil {
			stats = statsProvider()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats)
	})

	go func() {
		_ = http.ListenAndServe(fmt.Sprintf("127.0.0.1:%d", port), mux)
	}()
}
