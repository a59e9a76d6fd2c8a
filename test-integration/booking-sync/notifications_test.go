package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v1 "github.com/salonhub/booking-sync/internal/api/v1"
	"github.com/salonhub/booking-sync/internal/booking"
	"github.com/salonhub/booking-sync/internal/config"
	"github.com/salonhub/booking-sync/internal/notify"
	"github.com/salonhub/booking-sync/internal/status"
	"github.com/salonhub/booking-sync/test-integration/booking-sync/helpers"
)

var _ = Describe("Notification dispatch", func() {
	for _, storageType := range []string{config.StorageTypeFile, config.StorageTypeSQLite} {
		Context(fmt.Sprintf("with %s storage", storageType), func() {
			var (
				dataDir  string
				platform *helpers.PlatformFake
				telegram *helpers.TelegramFake
				server   *helpers.ServerTestHelper
				opts     helpers.ServerOptions
			)

			BeforeEach(func() {
				dataDir = createTempDir("booking-sync-notify-")
				platform = helpers.NewPlatformFake(companyID)
				telegram = helpers.NewTelegramFake()

				platform.AddStaff(1, "Anna")
				platform.AddService(1, "Haircut")
				platform.AddClient(10, "Maria", "79990000010", 3000)
				platform.AddClient(11, "Olga", "79990000011", 0)
				inAnHour := time.Now().UTC().Add(time.Hour).Truncate(time.Second).Format(time.RFC3339)
				platform.AddRecord(300, 1, 10, inAnHour, int(booking.AttendancePending))

				opts = helpers.ServerOptions{
					PlatformURL: platform.URL(),
					TelegramURL: telegram.URL(),
					CompanyID:   companyID,
					StorageType: storageType,
					DataDir:     dataDir,
					Templates: map[string]string{
						string(notify.TypeReminderHour): "{client_name}, see you at {time} with {staff_name}",
					},
				}
				server = helpers.NewServerTestHelper(ctx, opts)
				Expect(server.StartServer()).To(Succeed())
				server.WaitForServerReady(5 * time.Second)

				resp, _ := server.Post("/api/v1/sync", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
				Eventually(func() status.RunStatus {
					var run status.SyncRun
					server.GetJSON("/api/v1/sync/status", &run)
					return run.Status
				}, 10*time.Second, 50*time.Millisecond).Should(Equal(status.RunStatusSuccess))
			})

			AfterEach(func() {
				Expect(server.StopServer()).To(Succeed())
				platform.Close()
				telegram.Close()
				cleanupTempDir(dataDir)
			})

			dispatch := func() notify.Summary {
				resp, body := server.Post("/api/v1/notifications/dispatch", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				var summary notify.Summary
				Expect(json.Unmarshal(body, &summary)).To(Succeed())
				return summary
			}

			link := func(phone, chatID string) {
				resp, _ := server.Post("/api/v1/channel-links", v1.LinkRequest{Phone: phone, ChatID: chatID})
				Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			}

			It("skips clients without a linked channel", func() {
				summary := dispatch()
				Expect(summary.OK).To(BeTrue())
				Expect(summary.Results.ReminderHour.Sent).To(BeZero())
				Expect(summary.Results.ReminderHour.Skipped).To(Equal(1))
				Expect(telegram.Messages()).To(BeEmpty())
			})

			It("sends the hour reminder exactly once", func() {
				link("+7 (999) 000-00-10", "5001")

				summary := dispatch()
				Expect(summary.OK).To(BeTrue())
				Expect(summary.Results.ReminderHour.Sent).To(Equal(1))

				messages := telegram.Messages()
				Expect(messages).To(HaveLen(1))
				Expect(messages[0].ChatID).To(Equal("5001"))
				Expect(messages[0].Text).To(HavePrefix("Maria, see you at "))
				Expect(messages[0].Text).To(HaveSuffix("with Anna"))

				summary = dispatch()
				Expect(summary.Results.ReminderHour.Sent).To(BeZero())
				Expect(summary.Results.ReminderHour.Skipped).To(Equal(1))
				Expect(telegram.Messages()).To(HaveLen(1))
			})

			It("remembers sent notifications across restarts", func() {
				link("89990000010", "5001")
				Expect(dispatch().Results.ReminderHour.Sent).To(Equal(1))

				Expect(server.StopServer()).To(Succeed())
				Expect(server.StartServer()).To(Succeed())
				server.WaitForServerReady(5 * time.Second)

				Expect(dispatch().Results.ReminderHour.Sent).To(BeZero())
				Expect(telegram.Messages()).To(HaveLen(1))
			})

			It("applies template changes without a restart", func() {
				opts.Templates = map[string]string{string(notify.TypeReminderHour): "Reminder for {client_name}"}
				Expect(server.ReloadConfig(opts)).To(Succeed())

				link("79990000010", "5001")
				Expect(dispatch().Results.ReminderHour.Sent).To(Equal(1))
				Expect(telegram.Messages()).To(ConsistOf(helpers.SentMessage{ChatID: "5001", Text: "Reminder for Maria"}))
			})

			It("broadcasts to every linked client", func() {
				link("79990000010", "5001")
				link("79990000011", "5002")

				resp, body := server.Post("/api/v1/notifications/broadcast", v1.BroadcastRequest{Text: "Closed on Monday"})
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var result notify.BroadcastResult
				Expect(json.Unmarshal(body, &result)).To(Succeed())
				Expect(result.Sent).To(Equal(2))
				Expect(result.Unlinked).To(BeZero())
				Expect(telegram.Messages()).To(ConsistOf(
					helpers.SentMessage{ChatID: "5001", Text: "Closed on Monday"},
					helpers.SentMessage{ChatID: "5002", Text: "Closed on Monday"},
				))
			})

			It("rejects invalid channel links", func() {
				resp, _ := server.Post("/api/v1/channel-links", v1.LinkRequest{Phone: "", ChatID: "5001"})
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	}
})
