package mesh

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
)

// fakeDevice drives the device side of a net.Pipe link.
type fakeDevice struct {
	conn   net.Conn
	reader *bufio.Reader
}

func newFakeDevice(conn net.Conn) *fakeDevice {
	return &fakeDevice{conn: conn, reader: bufio.NewReader(conn)}
}

func (d *fakeDevice) read() (envelope, error) {
	payload, err := readFrame(d.reader)
	if err != nil {
		return envelope{}, err
	}
	var env envelope
	err = json.Unmarshal(payload, &env)
	return env, err
}

func (d *fakeDevice) write(env envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return writeFrame(d.conn, payload)
}

func testConfig() *MeshConfig {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &MeshConfig{
		ConnectionType: ConnectionTCP,
		DeviceIP:       "127.0.0.1",
		DevicePort:     4403,
		ConnectTimeout: 2 * time.Second,
		BaudRate:       115200,
		SendLimit:      1000,
		SendWindow:     time.Second,
		Logger:         logger,
	}
}

var _ = Describe("Client", func() {
	var (
		client *Client
		device *fakeDevice
	)

	BeforeEach(func() {
		botSide, deviceSide := net.Pipe()
		device = newFakeDevice(deviceSide)
		client = newClient(botSide, testConfig())

		// Answer the handshake from the device side.
		done := make(chan error, 1)
		go func() {
			if _, err := device.read(); err != nil { // want_config
				done <- err
				return
			}
			node := &NodeInfo{Num: 7, LongName: "repeater", IsFavorite: true}
			if err := device.write(envelope{Type: envNodeInfo, Node: node}); err != nil {
				done <- err
				return
			}
			done <- device.write(envelope{Type: envMyInfo, MyNode: 42})
		}()

		Expect(client.handshake(context.Background())).To(Succeed())
		Expect(<-done).To(Succeed())
		go client.readLoop()
	})

	AfterEach(func() {
		client.Close()
		device.conn.Close()
	})

	It("resolves the own node number during handshake", func() {
		Expect(client.NodeNum()).To(Equal(uint32(42)))
	})

	It("keeps node database entries received during handshake", func() {
		nodes := client.Nodes()
		Expect(nodes).To(HaveLen(1))
		Expect(nodes[0].Num).To(Equal(uint32(7)))
		Expect(nodes[0].IsFavorite).To(BeTrue())
	})

	It("sends text messages as framed envelopes", func() {
		read := make(chan envelope, 1)
		go func() {
			env, err := device.read()
			if err == nil {
				read <- env
			}
		}()

		Expect(client.SendText(context.Background(), 7, "pong")).To(Succeed())

		var env envelope
		Eventually(read).Should(Receive(&env))
		Expect(env.Type).To(Equal(envSendText))
		Expect(env.To).To(Equal(uint32(7)))
		Expect(env.Text).To(Equal("pong"))
	})

	It("pushes inbound packets to the subscriber", func() {
		received := make(chan *Packet, 1)
		client.Subscribe(func(pkt *Packet) { received <- pkt })

		rssi := int32(-80)
		snr := 5.5
		pkt := &Packet{From: 7, To: 42, Port: PortTextMessage, Payload: []byte("ping"), RxRSSI: &rssi, RxSNR: &snr}
		Expect(device.write(envelope{Type: envPacket, Packet: pkt})).To(Succeed())

		var got *Packet
		Eventually(received).Should(Receive(&got))
		Expect(got.From).To(Equal(uint32(7)))
		Expect(got.DirectRF()).To(BeTrue())
	})

	It("drops packets after Unsubscribe", func() {
		received := make(chan *Packet, 1)
		client.Subscribe(func(pkt *Packet) { received <- pkt })
		client.Unsubscribe()

		Expect(device.write(envelope{Type: envPacket, Packet: &Packet{From: 7}})).To(Succeed())
		Consistently(received, 50*time.Millisecond).ShouldNot(Receive())
	})

	It("fails heartbeat once the link is down", func() {
		device.conn.Close()
		Eventually(client.Heartbeat).ShouldNot(Succeed())
	})

	It("is safe to close twice", func() {
		Expect(client.Close()).To(Succeed())
		Expect(client.Close()).To(Succeed())
	})
})

// deadlineless hides the pipe's deadline methods, leaving only the method
// set a serial port exposes.
type deadlineless struct {
	io.ReadWriteCloser
}

var _ = Describe("Client handshake", func() {
	It("gives up on a silent device even without deadline support", func() {
		botSide, deviceSide := net.Pipe()
		defer deviceSide.Close()

		config := testConfig()
		config.ConnectTimeout = 50 * time.Millisecond
		client := newClient(deadlineless{botSide}, config)

		done := make(chan error, 1)
		go func() { done <- client.handshake(context.Background()) }()

		// Swallow want_config, then never answer.
		_, err := newFakeDevice(deviceSide).read()
		Expect(err).NotTo(HaveOccurred())

		var handshakeErr error
		Eventually(done, time.Second).Should(Receive(&handshakeErr))
		Expect(handshakeErr).To(MatchError(ContainSubstring("no identity within")))
	})

	It("aborts when the context is already canceled", func() {
		botSide, deviceSide := net.Pipe()
		defer deviceSide.Close()

		client := newClient(deadlineless{botSide}, testConfig())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		done := make(chan error, 1)
		go func() { done <- client.handshake(ctx) }()

		var handshakeErr error
		Eventually(done, time.Second).Should(Receive(&handshakeErr))
		Expect(handshakeErr).To(MatchError(context.Canceled))
	})
})
