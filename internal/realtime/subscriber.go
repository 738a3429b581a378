package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// Conn lo mínimo que el hub necesita de una conexión en vivo. Lo cumplen *websocket.Conn de
// gorilla y el de gofiber/contrib/websocket.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// State ciclo de vida de un suscriptor: CONNECTING → OPEN → CLOSING → CLOSED.
// OPEN pasa directo a CLOSED ante un fallo de envío o de heartbeat.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

// Filter restringe los eventos que recibe un suscriptor. Campos vacíos = sin restricción.
type Filter struct {
	WarehouseID string `json:"warehouse_id,omitempty"`
	ItemID      string `json:"item_id,omitempty"`
}

// Match indica si el evento pasa el filtro.
func (f Filter) Match(e entity.ChangeEvent) bool {
	if f.WarehouseID != "" && f.WarehouseID != e.WarehouseID {
		return false
	}
	if f.ItemID != "" && f.ItemID != e.ItemID {
		return false
	}
	return true
}

// Subscriber conexión en vivo registrada en el Hub. Solo su write pump escribe en la conexión.
type Subscriber struct {
	id     string
	conn   Conn
	filter Filter
	hub    *Hub

	mu       sync.Mutex // protege send frente a enqueue/close concurrentes
	send     chan []byte
	sendDone bool

	state    atomic.Int32
	lastSeen atomic.Int64 // unix nano del último heartbeat

	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
}

// ID identificador del suscriptor.
func (s *Subscriber) ID() string { return s.id }

// Filter filtro del suscriptor.
func (s *Subscriber) Filter() Filter { return s.filter }

// State estado actual.
func (s *Subscriber) State() State { return State(s.state.Load()) }

// Done se cierra cuando el suscriptor llegó a CLOSED y su write pump terminó.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

// Touch registra actividad del cliente (pong o cualquier mensaje entrante).
func (s *Subscriber) Touch() {
	s.lastSeen.Store(s.hub.now().UnixNano())
}

func (s *Subscriber) silentSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastSeen.Load()))
}

// enqueue intenta encolar sin bloquear. false = buffer lleno (el caller lo trata como envío vencido).
func (s *Subscriber) enqueue(payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendDone || s.State() != StateOpen {
		return true
	}
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

// beginClosing OPEN → CLOSING: no se encola nada más y el write pump drena lo pendiente.
func (s *Subscriber) beginClosing() bool {
	if !s.state.CompareAndSwap(int32(StateOpen), int32(StateClosing)) {
		return false
	}
	s.mu.Lock()
	if !s.sendDone {
		s.sendDone = true
		close(s.send)
	}
	s.mu.Unlock()
	return true
}

// abort pasa a CLOSED sin drenar. Devuelve false si ya estaba cerrado.
func (s *Subscriber) abort() bool {
	for {
		cur := s.state.Load()
		if State(cur) == StateClosed {
			return false
		}
		if s.state.CompareAndSwap(cur, int32(StateClosed)) {
			break
		}
	}
	s.quitOnce.Do(func() { close(s.quit) })
	_ = s.conn.Close()
	return true
}

func (s *Subscriber) write(messageType int, data []byte) error {
	_ = s.conn.SetWriteDeadline(s.hub.now().Add(s.hub.cfg.WriteTimeout))
	return s.conn.WriteMessage(messageType, data)
}

// writePump única goroutine que escribe en la conexión: mensajes, pings y el cierre final.
func (s *Subscriber) writePump() {
	ticker := time.NewTicker(s.hub.cfg.HeartbeatInterval)
	defer func() {
		ticker.Stop()
		close(s.done)
	}()
	for {
		select {
		case msg, ok := <-s.send:
			if !ok {
				// CLOSING y buffer drenado. Si fail ganó mientras tanto, el cierre ya se contó allí.
				_ = s.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				if !s.state.CompareAndSwap(int32(StateClosing), int32(StateClosed)) {
					return
				}
				_ = s.conn.Close()
				s.hub.closed(s, reasonGraceful)
				return
			}
			if err := s.write(websocket.TextMessage, msg); err != nil {
				s.hub.fail(s, reasonWriteError, err)
				return
			}
			s.hub.metrics.EventDelivered()
		case <-ticker.C:
			if err := s.write(websocket.PingMessage, nil); err != nil {
				s.hub.fail(s, reasonWriteError, err)
				return
			}
		case <-s.quit:
			return
		}
	}
}
