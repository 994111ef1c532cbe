package e2e_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/praevisio/vigilance/test/e2e"
)

var _ = Describe("Checking the seismic fallback", Ordered, func() {
	var testContext e2e.TestContext

	BeforeAll(func() {
		var err error

		testContext, err = e2e.CreateTestContext(binary)
		Expect(err).NotTo(HaveOccurred())

		DeferCleanup(func() {
			Expect(testContext.Close()).To(Succeed())
		})
	})

	BeforeEach(func() {
		testContext.ResetUSGSCalls()
	})

	It("should serve mock data after exactly the configured attempts", func() {
		body, mock, err := testContext.Seismic()
		Expect(err).NotTo(HaveOccurred())

		Expect(mock).To(Equal("true"))
		Expect(testContext.USGSCalls()).To(Equal(e2e.USGSAttempts))

		events := []map[string]any{}
		Expect(json.Unmarshal([]byte(body), &events)).To(Succeed())
		Expect(events).NotTo(BeEmpty())
	})

	It("should expose the fetch metrics", func() {
		_, _, err := testContext.Seismic()
		Expect(err).NotTo(HaveOccurred())

		family, err := testContext.Metric("praevisio_source_fetch_duration_milliseconds")
		Expect(err).NotTo(HaveOccurred())
		Expect(family.GetMetric()).NotTo(BeEmpty())
	})

	It("should flag the seismic domain as mock in the snapshot command", func() {
		output, err := e2e.RunSnapshot(binary, testContext.Env(0, 0))
		Expect(err).NotTo(HaveOccurred())

		Expect(output).To(ContainSubstring(`"sourceError": "Failed to fetch seismic data."`))
	})
})
