package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// Gateway opcodes
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatAck   = 11
)

const (
	intentGuilds  = 1 << 0
	readLimit     = 16 << 20
	writeTimeout  = 5 * time.Second
	helloTimeout  = 20 * time.Second
	closeZombie   = websocket.StatusCode(4000)
	closeAuthFail = websocket.StatusCode(4004)
)

var (
	// ErrAuthFailed means Discord rejected the bot token. Reconnecting cannot help.
	ErrAuthFailed = errors.New("discord authentication failed")
	errReconnect  = errors.New("gateway requested reconnect")
)

type gatewayPayload struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
	S  *int64          `json:"s,omitempty"`
	T  string          `json:"t,omitempty"`
}

type outbound struct {
	Op int `json:"op"`
	D  any `json:"d"`
}

type identifyData struct {
	Token      string            `json:"token"`
	Intents    int               `json:"intents"`
	Properties map[string]string `json:"properties"`
}

// session is one gateway connection from hello to close.
type session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex // coder/websocket writes are not concurrency safe
	seq     atomic.Int64
	acked   atomic.Bool
	logger  *zap.Logger
}

func (s *session) send(ctx context.Context, op int, d any) error {
	data, err := json.Marshal(outbound{Op: op, D: d})
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.Write(writeCtx, websocket.MessageText, data)
}

func (s *session) read(ctx context.Context) (gatewayPayload, error) {
	var p gatewayPayload
	_, data, err := s.conn.Read(ctx)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decode gateway payload: %w", err)
	}
	if p.S != nil {
		s.seq.Store(*p.S)
	}
	return p, nil
}

func (s *session) heartbeat(ctx context.Context) error {
	var d any
	if seq := s.seq.Load(); seq > 0 {
		d = seq
	}
	return s.send(ctx, opHeartbeat, d)
}

// heartbeatLoop beats every interval, starting after a random jitter. A beat
// without an ack since the previous one closes the connection as a zombie.
func (s *session) heartbeatLoop(ctx context.Context, interval time.Duration) {
	timer := time.NewTimer(time.Duration(rand.Float64() * float64(interval)))
	defer timer.Stop()
	s.acked.Store(true)
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if !s.acked.Swap(false) {
			s.logger.Warn("heartbeat not acknowledged, closing zombie connection")
			s.conn.Close(closeZombie, "heartbeat timeout")
			return
		}
		if err := s.heartbeat(ctx); err != nil {
			s.logger.Warn("heartbeat failed", zap.Error(err))
			return
		}
		timer.Reset(interval)
	}
}

// runSession connects, identifies and dispatches events until the connection
// ends or ctx is cancelled.
func (c *DiscordChannel) runSession(ctx context.Context) error {
	dialCtx, cancelDial := context.WithTimeout(ctx, helloTimeout)
	conn, _, err := websocket.Dial(dialCtx, c.gatewayURL, nil)
	cancelDial()
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	conn.SetReadLimit(readLimit)
	defer conn.CloseNow()

	s := &session{conn: conn, logger: c.logger}

	helloCtx, cancelHello := context.WithTimeout(ctx, helloTimeout)
	hello, err := s.read(helloCtx)
	cancelHello()
	if err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	if hello.Op != opHello {
		return fmt.Errorf("expected hello, got op %d", hello.Op)
	}
	var hd struct {
		HeartbeatInterval int64 `json:"heartbeat_interval"`
	}
	if err := json.Unmarshal(hello.D, &hd); err != nil || hd.HeartbeatInterval <= 0 {
		return fmt.Errorf("bad hello payload: %s", string(hello.D))
	}

	if err := s.send(ctx, opIdentify, identifyData{
		Token:      c.token,
		Intents:    intentGuilds,
		Properties: map[string]string{"os": runtime.GOOS, "browser": "relaybot", "device": "relaybot"},
	}); err != nil {
		return fmt.Errorf("identify: %w", err)
	}

	sessCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.heartbeatLoop(sessCtx, time.Duration(hd.HeartbeatInterval)*time.Millisecond)
	}()

	for {
		p, err := s.read(sessCtx)
		if err != nil {
			if websocket.CloseStatus(err) == closeAuthFail {
				return ErrAuthFailed
			}
			return fmt.Errorf("read: %w", err)
		}
		switch p.Op {
		case opDispatch:
			c.dispatch(ctx, p.T, p.D)
		case opHeartbeat:
			if err := s.heartbeat(sessCtx); err != nil {
				return fmt.Errorf("heartbeat: %w", err)
			}
		case opHeartbeatAck:
			s.acked.Store(true)
		case opReconnect:
			conn.Close(websocket.StatusCode(4900), "reconnect")
			return errReconnect
		case opInvalidSession:
			conn.Close(websocket.StatusCode(4900), "invalid session")
			return fmt.Errorf("invalid session")
		}
	}
}
