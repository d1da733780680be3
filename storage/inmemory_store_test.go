package storage_test

import (
	"context"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/piconats/storage"
)

var _ = Describe("storage / InmemoryStore", func() {
	var (
		ctx   = context.Background()
		store *storage.InmemoryStore
	)

	BeforeEach(func() {
		store = storage.NewInmemoryStore()
	})

	AfterEach(func() {
		store.Close()
	})

	Describe("Close()", func() {
		It("does not panic when closed twice", func() {
			Expect(func() { store.Close() }).NotTo(Panic())
			Expect(func() { store.Close() }).NotTo(Panic())
		})
	})

	It("an empty inmemory store equals {}", func() {
		value, err := store.Backup()
		Expect(err).To(Succeed())
		Expect(string(value)).To(Equal(`{}`))
	})

	Describe("Set() / Get()", func() {
		It("can read a message that is written", func() {
			err := store.Set(ctx, "sensors.kitchen.temp", storage.Message{Data: []byte("21.5"), Reply: "_INBOX.1"})
			Expect(err).To(Succeed())

			Expect(store.Get(ctx, "sensors.kitchen.temp")).To(MatchJSON(
				`{"data":"21.5","reply":"_INBOX.1","size":4,"count":1}`))

			value, err := store.Backup()
			Expect(err).To(Succeed())
			Expect(value).To(MatchJSON(
				`{"sensors.kitchen.temp":{"data":"21.5","reply":"_INBOX.1","size":4,"count":1}}`))
		})

		It("keeps only the last message and counts them", func() {
			Expect(store.Set(ctx, "foo", storage.Message{Data: []byte("one")})).To(Succeed())
			Expect(store.Set(ctx, "foo", storage.Message{Data: []byte("three")})).To(Succeed())

			Expect(store.Get(ctx, "foo")).To(MatchJSON(`{"data":"three","reply":"","size":5,"count":2}`))
		})

		It("doesn't confuse subjects that share a prefix", func() {
			Expect(store.Set(ctx, "a", storage.Message{Data: []byte("1")})).To(Succeed())
			Expect(store.Set(ctx, "a.b", storage.Message{Data: []byte("2")})).To(Succeed())

			Expect(store.Get(ctx, "a")).To(MatchJSON(`{"data":"1","reply":"","size":1,"count":1}`))
			Expect(store.Get(ctx, "a.b")).To(MatchJSON(`{"data":"2","reply":"","size":1,"count":1}`))
			Expect(store.Subjects()).To(Equal([]string{"a", "a.b"}))
		})

		It("doesn't find subjects nobody published on", func() {
			_, err := store.Get(ctx, "nope")
			Expect(err).To(MatchError(storage.ErrNotFound))
		})

		It("sends on the update channel when values are set", func() {
			updateChan := store.ListenToUpdates()
			err := store.Set(ctx, "foo", storage.Message{Data: []byte("bar")})
			Expect(err).To(Succeed())

			update, ok := <-updateChan
			Expect(ok).To(BeTrue())
			Expect(update.Subject).To(Equal("foo"))
			Expect(update.Entry).To(MatchJSON(`{"data":"bar","reply":"","size":3,"count":1}`))
		})

		It("closes update channels on Close", func() {
			updateChan := store.ListenToUpdates()
			store.Close()

			_, ok := <-updateChan
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Backup() / Restore()", func() {
		It("round trips", func() {
			Expect(store.Set(ctx, "foo.bar", storage.Message{Data: []byte("x")})).To(Succeed())
			backup, err := store.Backup()
			Expect(err).To(Succeed())

			restored := storage.NewInmemoryStore()
			defer restored.Close()

			Expect(restored.Restore(backup)).To(Succeed())
			Expect(restored.Get(ctx, "foo.bar")).To(MatchJSON(`{"data":"x","reply":"","size":1,"count":1}`))
		})

		It("refuses anything but a JSON object", func() {
			Expect(store.Restore([]byte(`[1,2]`))).To(MatchError(storage.ErrBadSnapshot))
			Expect(store.Restore([]byte(`{nope`))).To(MatchError(storage.ErrBadSnapshot))
		})
	})
})
