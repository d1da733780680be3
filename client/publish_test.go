package client_test

import (
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/piconats/client"
)

var _ = Describe("Publish", func() {
	var f *fixture

	BeforeEach(func() {
		f = newFixture(client.Options{MaxPayload: 2048})
	})

	It("needs a session", func() {
		Expect(client.CodeOf(f.c.Publish("foo", []byte("hi")))).To(Equal(client.ErrNotConnected))
		Expect(client.CodeOf(f.c.PublishString("foo", "hi"))).To(Equal(client.ErrNotConnected))
	})

	Context("connected", func() {
		BeforeEach(func() {
			f.connect()
		})

		It("frames PUB", func() {
			Expect(f.c.Publish("sensors.kitchen.temp", []byte("21.5"))).To(Succeed())
			Expect(f.mock.Output()).To(Equal("PUB sensors.kitchen.temp 4\r\n21.5\r\n"))

			stats := f.c.Stats()
			Expect(stats.MsgsOut).To(BeEquivalentTo(1))
			Expect(stats.BytesOut).To(BeEquivalentTo(4))
		})

		It("frames PUB with a reply subject", func() {
			Expect(f.c.PublishWithReply("svc.time", "_INBOX.abc", []byte("now"))).To(Succeed())
			Expect(f.mock.Output()).To(Equal("PUB svc.time _INBOX.abc 3\r\nnow\r\n"))
		})

		It("publishes empty payloads", func() {
			Expect(f.c.Publish("foo", nil)).To(Succeed())
			Expect(f.mock.Output()).To(Equal("PUB foo 0\r\n\r\n"))
		})

		It("publishes strings larger than the scratch buffer", func() {
			s := strings.Repeat("0123456789", 150)
			Expect(f.c.PublishString("big", s)).To(Succeed())
			Expect(f.mock.Output()).To(Equal("PUB big 1500\r\n" + s + "\r\n"))
		})

		It("keeps sending through partial writes", func() {
			f.mock.SendChunk = 3
			f.mock.WouldBlock = 4

			Expect(f.c.Publish("foo.bar", []byte("hello"))).To(Succeed())
			Expect(f.mock.Output()).To(Equal("PUB foo.bar 5\r\nhello\r\n"))
		})

		It("refuses wildcards", func() {
			Expect(client.CodeOf(f.c.Publish("foo.*", nil))).To(Equal(client.ErrInvalidArg))
			Expect(client.CodeOf(f.c.Publish("foo.>", nil))).To(Equal(client.ErrInvalidArg))
			Expect(client.CodeOf(f.c.PublishWithReply("foo", "reply.*", nil))).To(Equal(client.ErrInvalidArg))
			Expect(f.mock.Output()).To(BeEmpty())
		})

		It("refuses bad subjects", func() {
			Expect(client.CodeOf(f.c.Publish("", nil))).To(Equal(client.ErrInvalidArg))
			Expect(client.CodeOf(f.c.Publish("foo bar", nil))).To(Equal(client.ErrInvalidArg))
			Expect(client.CodeOf(f.c.PublishWithReply("foo", "re ply", nil))).To(Equal(client.ErrInvalidArg))
		})

		It("refuses payloads over the maximum", func() {
			Expect(f.c.Publish("foo", make([]byte, 2048))).To(Succeed())
			f.mock.TakeOutput()

			err := f.c.Publish("foo", make([]byte, 2049))
			Expect(client.CodeOf(err)).To(Equal(client.ErrBufferOverflow))
			Expect(f.mock.Output()).To(BeEmpty())
		})

		It("reports send failures", func() {
			f.mock.SendErr = errRefused
			err := f.c.Publish("foo", []byte("x"))
			Expect(client.CodeOf(err)).To(Equal(client.ErrIO))
			Expect(f.c.Stats().MsgsOut).To(BeZero())
		})
	})
})
