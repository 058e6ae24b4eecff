package scanning

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Ollama", func() {
	var (
		server  *ghttp.Server
		scanner *Ollama
		pngData []byte
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		var err error
		scanner, err = NewOllama(server.URL(), "llava")
		Expect(err).NotTo(HaveOccurred())

		var buf bytes.Buffer
		Expect(png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2)))).To(Succeed())
		pngData = buf.Bytes()
	})

	AfterEach(func() {
		server.Close()
	})

	When("the model answers", func() {
		BeforeEach(func() {
			reply := ollamaChatResponse{
				Done: true,
				Message: ollamaMessage{
					Role:    "assistant",
					Content: `{"store": "Aldi", "date": "2024-02-10", "items": [{"name": "Apples", "price": 0.5, "quantity": 6, "category": "Fruits", "total_price": 3}]}`,
				},
			}
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				func(w http.ResponseWriter, r *http.Request) {
					var req ollamaChatRequest
					Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
					Expect(req.Model).To(Equal("llava"))
					Expect(req.Messages).To(HaveLen(2))
					Expect(req.Messages[1].Images).To(HaveLen(1))
					Expect(req.Stream).To(BeFalse())
					Expect(string(req.Format)).To(ContainSubstring(`"Dairy"`))
					Expect(string(req.Format)).To(ContainSubstring(`"Uncategorized"`))
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, reply),
			))
		})

		It("returns the parsed receipt", func() {
			data, err := scanner.ScanReceipt(context.Background(), pngData, "image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(data.Store).To(Equal("Aldi"))
			Expect(data.Date).To(Equal("02/10/2024"))
			Expect(data.Items).To(ConsistOf(Item{Name: "Apples", Price: 0.5, Quantity: 6, Category: "Fruits", TotalPrice: 3}))
		})
	})

	When("the first answer is not JSON", func() {
		BeforeEach(func() {
			server.AppendHandlers(
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Done:    true,
					Message: ollamaMessage{Role: "assistant", Content: "I can see a receipt from Aldi."},
				}),
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Done:    true,
					Message: ollamaMessage{Role: "assistant", Content: `{"store": "Aldi", "date": "NA/NA/NA", "items": []}`},
				}),
			)
		})

		It("asks again", func() {
			data, err := scanner.ScanReceipt(context.Background(), pngData, "image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(data.Date).To(Equal(unknownDate))
			Expect(server.ReceivedRequests()).To(HaveLen(2))
		})
	})

	When("no answer is JSON", func() {
		BeforeEach(func() {
			for range maxScanAttempts {
				server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Done:    true,
					Message: ollamaMessage{Role: "assistant", Content: "unreadable"},
				}))
			}
		})

		It("gives up after the last attempt", func() {
			_, err := scanner.ScanReceipt(context.Background(), pngData, "image/png")
			Expect(err).To(MatchError(ContainSubstring("parsing receipt data")))
			Expect(server.ReceivedRequests()).To(HaveLen(maxScanAttempts))
		})
	})

	When("the server fails", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("returns the status and body without retrying", func() {
			_, err := scanner.ScanReceipt(context.Background(), pngData, "image/png")
			Expect(err).To(MatchError(ContainSubstring("model not loaded")))
			Expect(server.ReceivedRequests()).To(HaveLen(1))
		})
	})
})
