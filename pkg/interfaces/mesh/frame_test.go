package mesh

import (
	"bufio"
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Frame codec", func() {
	It("round-trips a payload", func() {
		var buf bytes.Buffer
		payload := []byte(`{"type":"heartbeat"}`)

		Expect(writeFrame(&buf, payload)).To(Succeed())

		got, err := readFrame(bufio.NewReader(&buf))
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(payload))
	})

	It("skips noise bytes before the frame magic", func() {
		var buf bytes.Buffer
		buf.Write([]byte{0x00, 0xff, frameStart1, 0x13})
		payload := []byte(`{"type":"packet"}`)
		Expect(writeFrame(&buf, payload)).To(Succeed())

		got, err := readFrame(bufio.NewReader(&buf))
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(payload))
	})

	It("rejects oversized payloads on write", func() {
		var buf bytes.Buffer
		err := writeFrame(&buf, make([]byte, maxFrameSize+1))
		Expect(err).To(HaveOccurred())
	})

	It("resyncs past a corrupt length header", func() {
		var buf bytes.Buffer
		// Magic with an impossible length, then a valid frame.
		buf.Write([]byte{frameStart1, frameStart2, 0xff, 0xff})
		payload := []byte("ok")
		Expect(writeFrame(&buf, payload)).To(Succeed())

		got, err := readFrame(bufio.NewReader(&buf))
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(payload))
	})
})
