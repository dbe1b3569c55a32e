package integration

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/atelier-ops/atelier-sync/internal/store"
	"github.com/atelier-ops/atelier-sync/test-integration/tiny-sync/helpers"
)

var _ = Describe("Scheduled Sync", Label("schedule"), func() {
	var (
		tempDir      string
		fakeERP      *helpers.FakeERP
		serverHelper *helpers.ServerTestHelper
	)

	BeforeEach(func() {
		tempDir = createTempDir("tiny-sync-schedule-")
		fakeERP = helpers.NewFakeERP(erpToken)
		fakeERP.SetContacts(helpers.Contact{ID: "C1", Name: "Maria Silva", Email: "maria@example.com"})

		configFile := helpers.WriteConfigYAML(tempDir, fakeERP.URL, erpToken, 3,
			helpers.ScheduledJob{Entity: "contacts", Cron: "@every 1s"})
		serverHelper = helpers.NewServerTestHelper(ctx, configFile)
		Expect(serverHelper.StartServer()).To(Succeed())
		serverHelper.WaitForServerReady(10 * time.Second)
	})

	AfterEach(func() {
		Expect(serverHelper.StopServer()).To(Succeed())
		fakeERP.Close()
		cleanupTempDir(tempDir)
	})

	It("should run the job and record the scheduler as creator", func() {
		Eventually(func() []store.RunLog {
			return serverHelper.GetRuns("contacts")
		}, 10*time.Second, 250*time.Millisecond).ShouldNot(BeEmpty())

		runs := serverHelper.GetRuns("contacts")
		Expect(runs[len(runs)-1].CreatedBy).To(Equal("scheduler"))
		Expect(runs[len(runs)-1].ItemsCreated).To(Equal(1))
		Expect(serverHelper.MemoryStore().Rows("contacts")).To(HaveLen(1))
	})
})
