package internal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"chat-relay/contract"
	"chat-relay/domain"
)

// RoomLister is the read-only view the inspector needs from the room
// registry.
type RoomLister interface {
	Listing() []domain.RoomInfo
}

// StartDebugServer exposes point-in-time JSON snapshots of the live
// registries on a side port. Read-only: it goes through the registries' own
// locks and never mutates anything. Intended for operators (see
// cmd/roomctl), not for clients.
func StartDebugServer(log *slog.Logger, port int, rooms RoomLister, presence contract.IPresence) {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/rooms", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rooms.Listing())
	})

	mux.HandleFunc("/debug/users", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(presence.Snapshot())
	})

	go func() {
		addr := fmt.Sprintf("0.0.0.0:%d", port)
		log.Info("debug inspector available", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Warn("debug inspector stopped", "err", err)
		}
	}()
}
