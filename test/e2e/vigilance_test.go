package e2e_test

import (
	"encoding/json"
	"net/http"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/praevisio/vigilance/test/e2e"
)

var _ = Describe("Checking the eternal vigilance channel", Ordered, func() {
	var testContext e2e.TestContext

	BeforeAll(func() {
		var err error

		testContext, err = e2e.CreateTestContext(binary)
		Expect(err).NotTo(HaveOccurred())

		DeferCleanup(func() {
			Expect(testContext.Close()).To(Succeed())
		})
	})

	It("should keep events emitted without subscriber in the report", func() {
		status, err := testContext.Emit("E2E test event 123")
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(http.StatusOK))

		report, err := testContext.Report()
		Expect(err).NotTo(HaveOccurred())
		Expect(report).To(ContainSubstring("E2E test event 123"))
	})

	It("should reject a blank message", func() {
		status, err := testContext.Emit("   ")
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(http.StatusBadRequest))
	})

	When("two subscribers are connected", func() {
		var streams []e2e.Stream

		BeforeEach(func() {
			token, err := testContext.IssueToken()
			Expect(err).NotTo(HaveOccurred())

			streams = nil

			for range 2 {
				stream, err := testContext.OpenStream(token)
				Expect(err).NotTo(HaveOccurred())
				DeferCleanup(stream.Close)

				frame, err := stream.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(frame).To(HaveLen(2))
				Expect(frame[0]).To(Equal("event: init"))

				streams = append(streams, stream)
			}
		})

		It("should deliver the same events in order", func() {
			for _, message := range []string{"alpha", "beta"} {
				status, err := testContext.Emit(message)
				Expect(err).NotTo(HaveOccurred())
				Expect(status).To(Equal(http.StatusOK))
			}

			for _, stream := range streams {
				messages := []string{}

				for range 2 {
					frame, err := stream.Next()
					Expect(err).NotTo(HaveOccurred())
					Expect(frame).To(HaveLen(1))

					event := struct {
						Message string `json:"message"`
					}{}
					Expect(json.Unmarshal([]byte(strings.TrimPrefix(frame[0], "data: ")), &event)).To(Succeed())

					messages = append(messages, event.Message)
				}

				Expect(messages).To(Equal([]string{"alpha", "beta"}))
			}
		})

		It("should keep delivering after one subscriber leaves", func() {
			streams[0].Close()

			status, err := testContext.Emit("after disconnect")
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))

			frame, err := streams[1].Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(frame).To(HaveLen(1))
			Expect(frame[0]).To(ContainSubstring("after disconnect"))
		})
	})
})
