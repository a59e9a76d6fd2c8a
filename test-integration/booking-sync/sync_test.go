package integration

import (
	"encoding/json"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v1 "github.com/salonhub/booking-sync/internal/api/v1"
	"github.com/salonhub/booking-sync/internal/booking"
	"github.com/salonhub/booking-sync/internal/status"
	"github.com/salonhub/booking-sync/test-integration/booking-sync/helpers"
)

const companyID = 4564

var _ = Describe("Sync over the API", func() {
	var (
		dataDir  string
		platform *helpers.PlatformFake
		telegram *helpers.TelegramFake
		server   *helpers.ServerTestHelper
	)

	BeforeEach(func() {
		dataDir = createTempDir("booking-sync-it-")
		platform = helpers.NewPlatformFake(companyID)
		telegram = helpers.NewTelegramFake()

		platform.AddStaff(1, "Anna")
		platform.AddService(1, "Haircut")
		platform.AddClient(10, "Maria", "79990000010", 3000)
		platform.AddClient(11, "Olga", "79990000011", 1500)
		platform.AddClient(12, "Irina", "79990000012", 0)
		past := time.Now().UTC().Add(-48 * time.Hour).Format(time.RFC3339)
		platform.AddRecord(200, 1, 10, past, int(booking.AttendanceAttended))
		platform.AddRecord(201, 1, 10, past, int(booking.AttendanceAttended))
		platform.AddRecord(202, 1, 11, past, int(booking.AttendanceAttended))

		server = helpers.NewServerTestHelper(ctx, helpers.ServerOptions{
			PlatformURL: platform.URL(),
			TelegramURL: telegram.URL(),
			CompanyID:   companyID,
			DataDir:     dataDir,
		})
		Expect(server.StartServer()).To(Succeed())
		server.WaitForServerReady(5 * time.Second)
	})

	AfterEach(func() {
		Expect(server.StopServer()).To(Succeed())
		platform.Close()
		telegram.Close()
		cleanupTempDir(dataDir)
	})

	waitForRun := func() status.SyncRun {
		var run status.SyncRun
		Eventually(func() status.RunStatus {
			if server.GetJSON("/api/v1/sync/status", &run) != http.StatusOK {
				return ""
			}
			return run.Status
		}, 10*time.Second, 50*time.Millisecond).ShouldNot(Or(BeEmpty(), Equal(status.RunStatusRunning)))
		return run
	}

	It("reports no run before the first sync", func() {
		resp, _ := server.Get("/api/v1/sync/status")
		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

		resp, _ = server.Get("/api/v1/snapshot")
		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
	})

	It("syncs every resource across pages and publishes a snapshot", func() {
		resp, _ := server.Post("/api/v1/sync", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusAccepted))

		run := waitForRun()
		Expect(run.Status).To(Equal(status.RunStatusSuccess))
		Expect(run.Phase).To(Equal(status.PhaseFinished))
		Expect(run.Progress.Clients).To(Equal(3))
		Expect(run.Progress.Records).To(Equal(3))
		Expect(run.Created).To(Equal(3))
		Expect(run.Updated).To(Equal(2))
		Expect(run.Skipped).To(Equal(1))

		var summary v1.SnapshotSummaryResponse
		Expect(server.GetJSON("/api/v1/snapshot", &summary)).To(Equal(http.StatusOK))
		Expect(summary.Counts).To(Equal(v1.SnapshotCounts{Staff: 1, Services: 1, Clients: 3, Records: 3}))
		Expect(summary.LastSyncAt).NotTo(BeNil())

		var client booking.Client
		Expect(server.GetJSON("/api/v1/snapshot/clients/10", &client)).To(Equal(http.StatusOK))
		Expect(client.VisitCount).To(Equal(2))
		Expect(client.AvgSum).To(BeNumerically("~", 1500, 0.01))
	})

	It("counts only new clients as created on the next run", func() {
		server.Post("/api/v1/sync", nil)
		Expect(waitForRun().Status).To(Equal(status.RunStatusSuccess))

		platform.AddClient(13, "Vera", "79990000013", 0)

		var started v1.StartSyncResponse
		resp, body := server.Post("/api/v1/sync", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
		Expect(json.Unmarshal(body, &started)).To(Succeed())

		run := waitForRun()
		Expect(run.ID).To(Equal(started.RunID))
		Expect(run.Created).To(Equal(1))
		Expect(run.Updated).To(Equal(2))
		Expect(run.Skipped).To(Equal(2))
	})

	It("finishes as partial when a phase fails and keeps the other data", func() {
		platform.FailStaff(true)

		server.Post("/api/v1/sync", nil)
		run := waitForRun()
		Expect(run.Status).To(Equal(status.RunStatusPartial))
		Expect(run.Errors).NotTo(BeEmpty())

		var summary v1.SnapshotSummaryResponse
		Expect(server.GetJSON("/api/v1/snapshot", &summary)).To(Equal(http.StatusOK))
		Expect(summary.Counts.Staff).To(BeZero())
		Expect(summary.Counts.Clients).To(Equal(3))
	})

	It("persists the last run and snapshot across restarts", func() {
		server.Post("/api/v1/sync", nil)
		first := waitForRun()

		Expect(server.StopServer()).To(Succeed())
		Expect(server.StartServer()).To(Succeed())
		server.WaitForServerReady(5 * time.Second)

		var run status.SyncRun
		Expect(server.GetJSON("/api/v1/sync/status", &run)).To(Equal(http.StatusOK))
		Expect(run.ID).To(Equal(first.ID))

		var summary v1.SnapshotSummaryResponse
		Expect(server.GetJSON("/api/v1/snapshot", &summary)).To(Equal(http.StatusOK))
		Expect(summary.Counts.Clients).To(Equal(3))
	})
})
