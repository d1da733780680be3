package client_test

import (
	"strings"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/piconats/client"
)

var _ = Describe("Request", func() {
	var (
		f *fixture
		r *client.Request
	)

	BeforeEach(func() {
		f = newFixture(client.Options{})
		r = &client.Request{}
	})

	It("needs a session", func() {
		err := f.c.RequestStart(r, "svc", []byte("hi"), time.Second)
		Expect(client.CodeOf(err)).To(Equal(client.ErrNotConnected))
		Expect(r.Inbox()).To(BeEmpty())
	})

	Context("connected", func() {
		BeforeEach(func() {
			f.connect()
		})

		It("subscribes to an inbox and publishes with it as the reply subject", func() {
			Expect(f.c.RequestStart(r, "svc.echo", []byte("ping"), time.Second)).To(Succeed())
			Expect(r.Inbox()).To(HavePrefix("_INBOX."))

			Expect(f.mock.Output()).To(Equal(
				"SUB " + r.Inbox() + " 1\r\n" +
					"UNSUB 1 1\r\n" +
					"PUB svc.echo " + r.Inbox() + " 4\r\nping\r\n"))
		})

		It("becomes ready when the reply arrives", func() {
			Expect(f.c.RequestStart(r, "svc.echo", []byte("ping"), time.Second)).To(Succeed())

			status, err := f.c.RequestCheck(r)
			Expect(err).To(Succeed())
			Expect(status).To(Equal(client.RequestPending))

			Expect(f.feed(msg(r.Inbox(), 1, "", "pong"))).To(Succeed())

			status, err = f.c.RequestCheck(r)
			Expect(err).To(Succeed())
			Expect(status).To(Equal(client.RequestReady))
			Expect(string(r.Response())).To(Equal("pong"))
			Expect(r.Truncated()).To(BeFalse())
			Expect(f.c.Subscriptions()).To(Equal(0))
		})

		It("truncates replies that don't fit", func() {
			Expect(f.c.RequestStart(r, "svc.dump", nil, time.Second)).To(Succeed())

			reply := strings.Repeat("z", client.MaxResponseSize+100)
			Expect(f.feed(msg(r.Inbox(), 1, "", reply))).To(Succeed())

			status, err := f.c.RequestCheck(r)
			Expect(err).To(Succeed())
			Expect(status).To(Equal(client.RequestReady))
			Expect(r.Response()).To(HaveLen(client.MaxResponseSize))
			Expect(r.Truncated()).To(BeTrue())
		})

		It("times out exactly once", func() {
			Expect(f.c.RequestStart(r, "svc.slow", nil, 500*time.Millisecond)).To(Succeed())
			f.mock.TakeOutput()

			f.clock.Advance(499 * time.Millisecond)
			status, err := f.c.RequestCheck(r)
			Expect(err).To(Succeed())
			Expect(status).To(Equal(client.RequestPending))

			f.clock.Advance(time.Millisecond)
			status, err = f.c.RequestCheck(r)
			Expect(err).To(MatchError(client.ErrTimeout))
			Expect(status).To(Equal(client.RequestTimedOut))
			Expect(f.mock.Output()).To(Equal("UNSUB 1\r\n"))
			Expect(f.c.Subscriptions()).To(Equal(0))

			status, err = f.c.RequestCheck(r)
			Expect(client.CodeOf(err)).To(Equal(client.ErrInvalidState))
			Expect(status).To(Equal(client.RequestIdle))
		})

		It("drops a reply that comes after cancelling", func() {
			Expect(f.c.RequestStart(r, "svc", nil, time.Second)).To(Succeed())
			f.mock.TakeOutput()

			Expect(f.c.RequestCancel(r)).To(Succeed())
			Expect(f.mock.Output()).To(Equal("UNSUB 1\r\n"))

			Expect(f.feed(msg(r.Inbox(), 1, "", "late"))).To(Succeed())
			Expect(f.c.Stats().MsgsDropped).To(BeEquivalentTo(1))

			_, err := f.c.RequestCheck(r)
			Expect(client.CodeOf(err)).To(Equal(client.ErrInvalidState))
		})

		It("refuses to start a request that is in flight", func() {
			Expect(f.c.RequestStart(r, "svc", nil, time.Second)).To(Succeed())
			err := f.c.RequestStart(r, "svc", nil, time.Second)
			Expect(client.CodeOf(err)).To(Equal(client.ErrInvalidState))
		})

		It("can be reused once finished", func() {
			Expect(f.c.RequestStart(r, "svc", nil, time.Second)).To(Succeed())
			first := r.Inbox()
			Expect(f.feed(msg(first, 1, "", "one"))).To(Succeed())

			Expect(f.c.RequestStart(r, "svc", nil, time.Second)).To(Succeed())
			Expect(r.Inbox()).NotTo(Equal(first))
			Expect(r.Response()).To(BeEmpty())

			Expect(f.feed(msg(r.Inbox(), 2, "", "two"))).To(Succeed())
			status, err := f.c.RequestCheck(r)
			Expect(err).To(Succeed())
			Expect(status).To(Equal(client.RequestReady))
			Expect(string(r.Response())).To(Equal("two"))
		})

		It("leaves the request untouched when it can't start", func() {
			err := f.c.RequestStart(r, "svc.*", nil, time.Second)
			Expect(client.CodeOf(err)).To(Equal(client.ErrInvalidArg))
			Expect(r.Inbox()).To(BeEmpty())
			Expect(f.mock.Output()).To(BeEmpty())

			err = f.c.RequestStart(r, "svc", nil, 0)
			Expect(client.CodeOf(err)).To(Equal(client.ErrInvalidArg))

			err = f.c.RequestStart(nil, "svc", nil, time.Second)
			Expect(client.CodeOf(err)).To(Equal(client.ErrInvalidArg))
		})
	})
})
