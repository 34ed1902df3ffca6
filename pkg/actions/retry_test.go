package actions_test

import (
	"context"
	"errors"
	"time"

	"github.com/lisanmuaddib/meshbot-go/pkg/actions"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Retry", func() {
	It("returns immediately on success", func() {
		calls := 0
		err := actions.Retry(context.Background(), 3, time.Millisecond, func() error {
			calls++
			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(1))
	})

	It("retries until success", func() {
		calls := 0
		err := actions.Retry(context.Background(), 3, time.Millisecond, func() error {
			calls++
			if calls < 3 {
				return errors.New("not yet")
			}
			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(3))
	})

	It("gives up after the attempt budget and wraps the last error", func() {
		last := errors.New("still broken")
		calls := 0
		err := actions.Retry(context.Background(), 3, time.Millisecond, func() error {
			calls++
			return last
		})

		Expect(calls).To(Equal(3))
		Expect(errors.Is(err, last)).To(BeTrue())
	})

	It("stops waiting when the context is canceled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := actions.Retry(ctx, 3, time.Minute, func() error {
			return errors.New("fail")
		})

		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
	})
})
