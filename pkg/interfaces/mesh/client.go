package mesh

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
	"golang.org/x/time/rate"
)

// ErrClosed is returned for operations on a closed client.
var ErrClosed = errors.New("mesh: client is closed")

// envelope is the JSON message exchanged with the device gateway inside
// each frame.
type envelope struct {
	Type   string    `json:"type"`
	MyNode uint32    `json:"myNodeNum,omitempty"`
	Packet *Packet   `json:"packet,omitempty"`
	Node   *NodeInfo `json:"node,omitempty"`
	To     uint32    `json:"to,omitempty"`
	Text   string    `json:"text,omitempty"`
	Num    uint32    `json:"num,omitempty"`
}

// Envelope types.
const (
	envWantConfig = "want_config"
	envMyInfo     = "my_info"
	envNodeInfo   = "node_info"
	envPacket     = "packet"
	envSendText   = "send_text"
	envHeartbeat  = "heartbeat"
	envRemoveNode = "remove_node"
	envReboot     = "reboot"
)

// ClientOption allows for customization of the client
type ClientOption func(*Client)

// Client implements Transport over a framed byte stream. One Client owns
// exactly one device link for its lifetime.
type Client struct {
	config  *MeshConfig
	logger  *logrus.Logger
	conn    io.ReadWriteCloser
	reader  *bufio.Reader
	limiter *rate.Limiter

	writeMu sync.Mutex

	mu      sync.Mutex
	handler PacketHandlerFunc
	nodes   map[uint32]NodeInfo
	myNode  uint32
	readErr error
	closed  bool
}

// Dial opens the configured device link, resolves the device's own node
// number and starts the inbound read loop. The returned client is connected
// and ready for Subscribe.
func Dial(ctx context.Context, config *MeshConfig, opts ...ClientOption) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	conn, err := open(ctx, config)
	if err != nil {
		return nil, err
	}

	client := newClient(conn, config)
	for _, opt := range opts {
		opt(client)
	}

	if err := client.handshake(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake failed: %w", err)
	}

	go client.readLoop()
	return client, nil
}

func newClient(conn io.ReadWriteCloser, config *MeshConfig) *Client {
	logger := config.Logger
	if logger == nil {
		logger = logrus.New()
	}

	every := rate.Every(config.SendWindow / time.Duration(config.SendLimit))
	return &Client{
		config:  config,
		logger:  logger,
		conn:    conn,
		reader:  bufio.NewReader(conn),
		limiter: rate.NewLimiter(every, 1),
		nodes:   make(map[uint32]NodeInfo),
	}
}

func open(ctx context.Context, config *MeshConfig) (io.ReadWriteCloser, error) {
	switch config.ConnectionType {
	case ConnectionTCP:
		dialer := net.Dialer{Timeout: config.ConnectTimeout}
		addr := net.JoinHostPort(config.DeviceIP, strconv.Itoa(config.DevicePort))
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
		}
		return conn, nil
	case ConnectionSerial:
		port, err := serial.Open(config.SerialPort, &serial.Mode{BaudRate: config.BaudRate})
		if err != nil {
			return nil, fmt.Errorf("failed to open serial port %s: %w", config.SerialPort, err)
		}
		return port, nil
	default:
		return nil, fmt.Errorf("unknown connection type %q", config.ConnectionType)
	}
}

// handshake asks the device for its configuration and reads frames until the
// own-node identity arrives. Node database entries received on the way are
// kept.
func (c *Client) handshake(ctx context.Context) error {
	deadline := time.Now().Add(c.config.ConnectTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	setReadDeadline(c.conn, deadline)
	defer setReadDeadline(c.conn, time.Time{})

	// Serial ports carry no read deadline, so closing the link is the only
	// way to unblock a pending read or write. The watchdog does that when
	// the timeout elapses or the caller gives up first.
	watchdogDone := make(chan struct{})
	defer close(watchdogDone)
	go func() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		select {
		case <-watchdogDone:
		case <-ctx.Done():
			c.conn.Close()
		case <-timer.C:
			c.conn.Close()
		}
	}()

	if err := c.writeEnvelope(envelope{Type: envWantConfig}); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return err
	}

	for {
		payload, err := readFrame(c.reader)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			} else if !time.Now().Before(deadline) {
				err = fmt.Errorf("no identity within %s", c.config.ConnectTimeout)
			}
			return fmt.Errorf("waiting for device identity: %w", err)
		}

		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			c.logger.WithError(err).Debug("Discarding undecodable frame during handshake")
			continue
		}

		switch env.Type {
		case envMyInfo:
			c.mu.Lock()
			c.myNode = env.MyNode
			c.mu.Unlock()
			return nil
		case envNodeInfo:
			if env.Node != nil {
				c.mu.Lock()
				c.nodes[env.Node.Num] = *env.Node
				c.mu.Unlock()
			}
		}
	}
}

func setReadDeadline(conn io.ReadWriteCloser, t time.Time) {
	if d, ok := conn.(interface{ SetReadDeadline(time.Time) error }); ok {
		d.SetReadDeadline(t)
	}
}

func (c *Client) readLoop() {
	for {
		payload, err := readFrame(c.reader)
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			if c.readErr == nil {
				c.readErr = err
			}
			c.mu.Unlock()
			if !closed {
				c.logger.WithError(err).Warn("Device link read failed")
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			c.logger.WithError(err).Debug("Discarding undecodable frame")
			continue
		}

		switch env.Type {
		case envPacket:
			if env.Packet == nil {
				continue
			}
			c.noteHeard(env.Packet.From)
			c.mu.Lock()
			handler := c.handler
			c.mu.Unlock()
			if handler != nil {
				handler(env.Packet)
			}
		case envNodeInfo:
			if env.Node != nil {
				c.mu.Lock()
				c.nodes[env.Node.Num] = *env.Node
				c.mu.Unlock()
			}
		case envMyInfo:
			c.mu.Lock()
			c.myNode = env.MyNode
			c.mu.Unlock()
		default:
			c.logger.WithField("envelope_type", env.Type).Debug("Ignoring unknown envelope")
		}
	}
}

func (c *Client) noteHeard(num uint32) {
	if num == 0 {
		return
	}
	c.mu.Lock()
	node := c.nodes[num]
	node.Num = num
	node.LastHeard = time.Now()
	c.nodes[num] = node
	c.mu.Unlock()
}

func (c *Client) writeEnvelope(env envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writeFrame(c.conn, payload)
}

// NodeNum implements Transport.
func (c *Client) NodeNum() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.myNode
}

// SendText implements Transport. Sends are rate limited to protect radio
// airtime.
func (c *Client) SendText(ctx context.Context, dest uint32, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := c.liveness(); err != nil {
		return err
	}
	return c.writeEnvelope(envelope{Type: envSendText, To: dest, Text: text})
}

// Heartbeat implements Transport. It fails fast when the read loop has
// already observed a dead link.
func (c *Client) Heartbeat() error {
	if err := c.liveness(); err != nil {
		return err
	}
	return c.writeEnvelope(envelope{Type: envHeartbeat})
}

func (c *Client) liveness() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.readErr != nil {
		return fmt.Errorf("device link down: %w", c.readErr)
	}
	return nil
}

// Subscribe implements Transport.
func (c *Client) Subscribe(h PacketHandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// Unsubscribe implements Transport.
func (c *Client) Unsubscribe() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = nil
}

// Nodes implements Transport.
func (c *Client) Nodes() []NodeInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	nodes := make([]NodeInfo, 0, len(c.nodes))
	for _, node := range c.nodes {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Num < nodes[j].Num })
	return nodes
}

// RemoveNode implements Transport.
func (c *Client) RemoveNode(num uint32) error {
	if err := c.liveness(); err != nil {
		return err
	}
	if err := c.writeEnvelope(envelope{Type: envRemoveNode, Num: num}); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.nodes, num)
	c.mu.Unlock()
	return nil
}

// Reboot implements Transport.
func (c *Client) Reboot() error {
	if err := c.liveness(); err != nil {
		return err
	}
	return c.writeEnvelope(envelope{Type: envReboot})
}

// Close implements Transport. The second and later calls are no-ops.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.handler = nil
	c.mu.Unlock()

	return c.conn.Close()
}
