package pipeline_test

import (
	"context"
	"sync"

	"github.com/IBM/sarama"
	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/mock/gomock"

	"github.com/praevisio/vigilance/pkg/pipeline"
	"github.com/praevisio/vigilance/pkg/pipeline/mock"
)

// Fake consumer group session and claim

type fakeSession struct {
	ctx context.Context

	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32 {
	return map[string][]int32{"events": {0}}
}

func (s *fakeSession) MemberID() string {
	return "member-1"
}

func (s *fakeSession) GenerationID() int32 {
	return 1
}

func (s *fakeSession) MarkOffset(string, int32, int64, string) {}

func (s *fakeSession) Commit() {}

func (s *fakeSession) ResetOffset(string, int32, int64, string) {}

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.marked = append(s.marked, msg.Offset)
}

func (s *fakeSession) Context() context.Context {
	return s.ctx
}

type fakeClaim struct {
	messages chan *sarama.ConsumerMessage
}

func newFakeClaim(values ...string) fakeClaim {
	ret := fakeClaim{messages: make(chan *sarama.ConsumerMessage, len(values))}

	for i, v := range values {
		ret.messages <- &sarama.ConsumerMessage{Topic: "events", Offset: int64(i), Value: []byte(v)}
	}

	close(ret.messages)

	return ret
}

func (c fakeClaim) Topic() string {
	return "events"
}

func (c fakeClaim) Partition() int32 {
	return 0
}

func (c fakeClaim) InitialOffset() int64 {
	return 0
}

func (c fakeClaim) HighWaterMarkOffset() int64 {
	return int64(len(c.messages))
}

func (c fakeClaim) Messages() <-chan *sarama.ConsumerMessage {
	return c.messages
}

// Test

var _ = Describe("Testing the JSON handler", func() {
	var (
		ctrl       *gomock.Controller
		processing *mock.MockProcessing[Alert]
		errProc    *mock.MockErrorProcessing
		registry   *prometheus.Registry
		handler    pipeline.JSONHandler[Alert]
		session    *fakeSession
	)

	BeforeEach(func() {
		var err error

		ctrl = gomock.NewController(GinkgoT())
		processing = mock.NewMockProcessing[Alert](ctrl)
		errProc = mock.NewMockErrorProcessing(ctrl)
		registry = prometheus.NewPedanticRegistry()

		handler, err = pipeline.NewJSONHandler[Alert](processing, errProc).
			WithLogger(logr.Discard()).
			WithMetrics(registry, pipeline.MetricsConfig{Namespace: "test"})
		Expect(err).NotTo(HaveOccurred())

		session = &fakeSession{ctx: context.Background()}
	})

	When("every message is valid", func() {
		It("should process and commit them in order", func() {
			gomock.InOrder(
				processing.EXPECT().Process(gomock.Any(), Alert{Type: "custom", Message: "one"}).Return(nil),
				processing.EXPECT().Process(gomock.Any(), Alert{Message: "two"}).Return(nil),
			)

			claim := newFakeClaim(`{"type":"custom","message":"one"}`, `{"message":"two"}`)

			Expect(handler.ConsumeClaim(session, claim)).To(Succeed())
			Expect(session.marked).To(Equal([]int64{0, 1}))
		})
	})

	When("a message is not valid JSON", func() {
		It("should send it to the error processing and commit it", func() {
			errProc.EXPECT().Process(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, pErr pipeline.ErrProcessingError) error {
				Expect(pErr.Category).To(Equal(pipeline.UnmarshalErrorCategory))
				Expect(pErr.Message).NotTo(BeNil())
				Expect(string(pErr.Message.Value)).To(Equal("{not json"))

				return nil
			})
			processing.EXPECT().Process(gomock.Any(), Alert{Message: "ok"}).Return(nil)

			claim := newFakeClaim("{not json", `{"message":"ok"}`)

			Expect(handler.ConsumeClaim(session, claim)).To(Succeed())
			Expect(session.marked).To(Equal([]int64{0, 1}))
		})
	})

	When("the processing fails", func() {
		It("should keep the processing error category", func() {
			processing.EXPECT().Process(gomock.Any(), alert).Return(pipeline.NewErrProcessingError(errOneError, pipeline.ValidationCategory))
			errProc.EXPECT().Process(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, pErr pipeline.ErrProcessingError) error {
				Expect(pErr.Category).To(Equal(pipeline.ValidationCategory))
				Expect(pErr.Message.Offset).To(BeEquivalentTo(0))

				return errOneError
			})

			claim := newFakeClaim(`{"type":"custom","message":"disk almost full"}`)

			Expect(handler.ConsumeClaim(session, claim)).To(Succeed())
			Expect(session.marked).To(Equal([]int64{0}), "failed messages are committed")

			families, err := registry.Gather()
			Expect(err).NotTo(HaveOccurred())
			Expect(families).To(HaveLen(1))
			Expect(metricByLabel(families[0].GetMetric(), "outcome", "failed").GetCounter().GetValue()).To(BeEquivalentTo(1))
		})
	})

	When("the session is cancelled", func() {
		It("should neither process nor commit", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			session.ctx = ctx

			Expect(handler.ConsumeClaim(session, newFakeClaim(`{"message":"ignored"}`))).To(Succeed())
			Expect(session.marked).To(BeEmpty())
		})
	})
})
