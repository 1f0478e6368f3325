package server

import (
	"encoding/json"
	"log"
	"net/http"

	"thor-mesh/internal/eventBus"
	"thor-mesh/internal/mesh"
	"thor-mesh/internal/node"

	"github.com/gorilla/websocket"
)

// Define a WebSocket upgrader.
var upgrader = websocket.Upgrader{
	// Allow any origin for simplicity. Adjust for production use.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsHandler upgrades the connection to WebSocket and pushes events from the EventBus.
func wsHandler(eb *eventBus.EventBus, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Upgrade error: %v", err)
		return
	}
	defer conn.Close()

	eventCh := eb.Subscribe()

	for event := range eventCh {
		if err := conn.WriteJSON(event); err != nil {
			log.Printf("Write error: %v", err)
			return
		}
	}
}

// CreateNodePayload defines the expected JSON payload for node creation.
type CreateNodePayload struct {
	ID      uint32  `json:"id"`
	Lat     float64 `json:"lat"`
	Long    float64 `json:"long"`
	Gateway bool    `json:"gateway"`
}

func createNodeHandler(net mesh.INetwork, bus *eventBus.EventBus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload CreateNodePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if payload.ID == 0 {
			http.Error(w, "node id must be nonzero", http.StatusBadRequest)
			return
		}

		newNode := node.NewNode(payload.ID, payload.Lat, payload.Long, payload.Gateway, bus)
		net.Join(newNode)
		w.Write([]byte("Node created and joined the network"))
	}
}

// RemoveNodePayload defines the expected JSON payload for removing a node.
type RemoveNodePayload struct {
	NodeID uint32 `json:"node_id"`
}

func removeNodeHandler(net mesh.INetwork) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload RemoveNodePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		net.Leave(payload.NodeID)
		w.Write([]byte("Node removed from the network"))
	}
}

// SendMessagePayload asks an existing node to originate a DATA packet.
type SendMessagePayload struct {
	FromID  uint32 `json:"from_id"`
	DestID  uint32 `json:"dest_id"`
	Payload string `json:"payload"`
}

func sendMessageHandler(net mesh.INetwork) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload SendMessagePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		lister, ok := net.(interface{ Nodes() []mesh.INode })
		if !ok {
			http.Error(w, "network does not expose nodes", http.StatusInternalServerError)
			return
		}
		for _, n := range lister.Nodes() {
			if n.GetID() == payload.FromID {
				n.SendData(net, payload.DestID, payload.Payload)
				w.Write([]byte("Message submitted"))
				return
			}
		}
		http.Error(w, "unknown from_id", http.StatusNotFound)
	}
}

// StartServer starts the HTTP server with endpoints for WebSocket and commands.
func StartServer(eb *eventBus.EventBus, net mesh.INetwork) {
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		wsHandler(eb, w, r)
	})

	http.HandleFunc("/nodeAPI/create", createNodeHandler(net, eb))
	http.HandleFunc("/nodeAPI/remove", removeNodeHandler(net))
	http.HandleFunc("/nodeAPI/sendMessage", sendMessageHandler(net))

	log.Println("Server started on :8080")
	log.Fatal(http.ListenAndServe(":8080", nil))
}
