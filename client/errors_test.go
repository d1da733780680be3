package client_test

import (
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/luma/piconats/client"
)

var _ = Describe("Errors", func() {
	DescribeTable("classes",
		func(code client.Code, class client.Class) {
			Expect(code.Class()).To(Equal(class))
		},
		Entry("ok", client.OK, client.ClassNone),
		Entry("would block", client.ErrWouldBlock, client.ClassTransient),
		Entry("timeout", client.ErrTimeout, client.ClassTransient),
		Entry("io", client.ErrIO, client.ClassTransient),
		Entry("not connected", client.ErrNotConnected, client.ClassSession),
		Entry("connection lost", client.ErrConnectionLost, client.ClassSession),
		Entry("protocol", client.ErrProtocol, client.ClassSession),
		Entry("server", client.ErrServer, client.ClassSession),
		Entry("stale", client.ErrStaleConnection, client.ClassSession),
		Entry("invalid arg", client.ErrInvalidArg, client.ClassCaller),
		Entry("buffer full", client.ErrBufferFull, client.ClassCaller),
		Entry("buffer overflow", client.ErrBufferOverflow, client.ClassCaller),
		Entry("no memory", client.ErrNoMemory, client.ClassCaller),
		Entry("invalid state", client.ErrInvalidState, client.ClassCaller),
		Entry("auth failed", client.ErrAuthFailed, client.ClassCaller),
		Entry("not found", client.ErrNotFound, client.ClassCaller),
	)

	It("names every code", func() {
		Expect(client.ErrStaleConnection.String()).To(Equal("stale connection"))
		Expect(client.ErrNotConnected.Error()).To(Equal("piconats: not connected"))
		Expect(client.Code(77).String()).To(Equal("unknown error 77"))
	})

	It("recovers the code from wrapped errors", func() {
		Expect(client.CodeOf(nil)).To(Equal(client.OK))
		Expect(client.CodeOf(client.ErrTimeout)).To(Equal(client.ErrTimeout))
		Expect(client.CodeOf(fmt.Errorf("waiting: %w", client.ErrTimeout))).To(Equal(client.ErrTimeout))
		Expect(client.CodeOf(errors.New("something else"))).To(Equal(client.ErrIO))

		err := fmt.Errorf("subscribing: %w", &client.Error{Code: client.ErrNoMemory, Op: "subscribe"})
		Expect(client.CodeOf(err)).To(Equal(client.ErrNoMemory))
	})

	It("matches an Error to its code and its cause", func() {
		cause := errors.New("connection reset by peer")
		err := &client.Error{Code: client.ErrIO, Op: "recv", Err: cause}

		Expect(errors.Is(err, client.ErrIO)).To(BeTrue())
		Expect(errors.Is(err, client.ErrTimeout)).To(BeFalse())
		Expect(errors.Is(err, cause)).To(BeTrue())
		Expect(err.Error()).To(Equal("piconats: recv: i/o error: connection reset by peer"))
	})

	It("tells transient errors from session errors", func() {
		Expect(client.IsTransient(client.ErrWouldBlock)).To(BeTrue())
		Expect(client.IsTransient(client.ErrProtocol)).To(BeFalse())
		Expect(client.IsSession(client.ErrStaleConnection)).To(BeTrue())
		Expect(client.IsSession(client.ErrInvalidArg)).To(BeFalse())
		Expect(client.IsSession(nil)).To(BeFalse())
	})
})
