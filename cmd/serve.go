// SPDX-License-Identifier: MIT

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/scottmsilver/precor-9.3x/pkg/precor"
	"github.com/scottmsilver/precor-9.3x/pkg/session"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Stream decoded bus events over WebSocket",
	Long: `Decode live traffic and broadcast each event as a JSON message to every
connected WebSocket client at /events.

Message shape:
  {"time": "...", "channel": "console", "kind": "frame",
   "name": "SET_SPD", "raw": "52 2A ...", "meaning": "speed=3.5mph"}
  {"time": "...", "channel": "console", "kind": "pair",
   "key": "inc", "value": "10"}

This is the integration point for dashboards and workout apps: anything
that can open a WebSocket can follow the treadmill live.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "listen", ":8080", "HTTP listen address")
}

// wireEvent is the JSON shape sent to clients.
type wireEvent struct {
	Time    string `json:"time"`
	Channel string `json:"channel"`
	Kind    string `json:"kind"`
	Name    string `json:"name,omitempty"`
	Raw     string `json:"raw,omitempty"`
	Meaning string `json:"meaning,omitempty"`
	Key     string `json:"key,omitempty"`
	Value   string `json:"value,omitempty"`
}

func toWireEvent(ev session.Event) wireEvent {
	w := wireEvent{
		Time:    ev.Time.Format(time.RFC3339Nano),
		Channel: ev.Channel,
	}
	switch ev.Kind() {
	case session.PairSeen:
		w.Kind = "pair"
		w.Key = ev.Pair.Key
		w.Value = ev.Pair.Value
	case session.FrameTruncated:
		w.Kind = "truncated"
		w.Name = ev.Frame.Name()
		w.Raw = precor.HexString(ev.Frame.Raw)
	default:
		w.Kind = "frame"
		w.Name = ev.Frame.Name()
		w.Raw = precor.HexString(ev.Frame.Raw)
		if meaning, ok := precor.Explain(ev.Frame); ok {
			w.Meaning = meaning
		}
	}
	return w
}

// hub fans events out to connected WebSocket clients. Slow clients are
// dropped rather than allowed to stall the decoder.
type hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *hub) add(conn *websocket.Conn) chan []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan []byte, 64)
	h.clients[conn] = ch
	return ch
}

func (h *hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	conn.Close()
}

func (h *hub) broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- msg:
		default:
			// Client buffer full; drop it.
			close(ch)
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The stream is read-only telemetry on a trusted LAN.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (h *hub) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade %s: %v", r.RemoteAddr, err)
		return
	}
	log.Printf("client connected: %s (%d total)", r.RemoteAddr, h.count()+1)

	ch := h.add(conn)
	defer func() {
		h.remove(conn)
		log.Printf("client disconnected: %s", r.RemoteAddr)
	}()

	// Drain client messages so pings and close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for msg := range ch {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := make(chan session.Event, 256)
	var readers []*session.ChannelReader

	if useGPIO() {
		b, err := openBus(true, true)
		if err != nil {
			return err
		}
		defer b.Close()
		readers = append(readers,
			session.NewChannelReader(session.ReaderConfig{
				Name: "console", Direction: precor.ConsoleToMotor, Source: b.console,
			}, events),
			session.NewChannelReader(session.ReaderConfig{
				Name: "motor", Direction: precor.MotorToConsole, Source: b.motor,
			}, events))
	} else {
		conn, err := OpenSerialConnection(portName, baudRate)
		if err != nil {
			return err
		}
		defer conn.Close()
		readers = append(readers, session.NewChannelReader(session.ReaderConfig{
			Name: "serial", Direction: precor.ConsoleToMotor, Source: conn,
		}, events))
	}

	wg, errs := startReaders(ctx, stop, readers...)

	h := newHub()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				msg, err := json.Marshal(toWireEvent(ev))
				if err != nil {
					log.Printf("marshal event: %v", err)
					continue
				}
				h.broadcast(msg)
			}
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/events", h.handleEvents)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "ok %d clients\n", h.count())
	})

	srv := &http.Server{Addr: serveAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("precor - event server\n")
	fmt.Printf("Connection: %s\n", connectionInfo())
	fmt.Printf("Listening on %s (WebSocket at /events)\n", serveAddr)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	wg.Wait()
	return firstError(errs)
}
