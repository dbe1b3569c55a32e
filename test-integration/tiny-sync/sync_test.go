package integration

import (
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/atelier-ops/atelier-sync/test-integration/tiny-sync/helpers"
)

const erpToken = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

var _ = Describe("On-demand Sync", Label("sync"), func() {
	var (
		tempDir      string
		fakeERP      *helpers.FakeERP
		serverHelper *helpers.ServerTestHelper
	)

	BeforeEach(func() {
		tempDir = createTempDir("tiny-sync-")
		fakeERP = helpers.NewFakeERP(erpToken)
		fakeERP.SetProducts(
			helpers.Product{ID: "101", Name: "Bolsa Tote", SKU: "SKU1", Price: "199.90"},
			helpers.Product{ID: "102", Name: "Carteira", SKU: "SKU2", Price: "89,50"},
		)

		configFile := helpers.WriteConfigYAML(tempDir, fakeERP.URL, erpToken, 3)
		serverHelper = helpers.NewServerTestHelper(ctx, configFile)
		Expect(serverHelper.StartServer()).To(Succeed())
		serverHelper.WaitForServerReady(10 * time.Second)
	})

	AfterEach(func() {
		Expect(serverHelper.StopServer()).To(Succeed())
		fakeERP.Close()
		cleanupTempDir(tempDir)
	})

	Context("Connection test", func() {
		It("should report ok without touching the store", func() {
			status, resp := serverHelper.PostSync(`{"testOnly":true}`)
			Expect(status).To(Equal(http.StatusOK))
			Expect(resp.OK).To(BeTrue())
			Expect(fakeERP.Calls("info.php")).To(Equal(1))
			Expect(serverHelper.MemoryStore().Writes()).To(BeZero())
		})
	})

	Context("Products", func() {
		It("should create, skip and update products across runs", func() {
			status, resp := serverHelper.PostSync(`{"entity":"products"}`)
			Expect(status).To(Equal(http.StatusOK), resp.Error)
			Expect(resp.Stats.ItemsCreated).To(Equal(2))
			Expect(resp.Stats.APICallsUsed).To(Equal(1))
			Expect(resp.Summary).To(HaveLen(2))
			Expect(resp.Summary[0]).To(HaveKeyWithValue("sku", "SKU1"))
			Expect(serverHelper.MemoryStore().Rows("products")).To(HaveLen(2))

			status, resp = serverHelper.PostSync(`{"entity":"products"}`)
			Expect(status).To(Equal(http.StatusOK))
			Expect(resp.Stats.ItemsSkipped).To(Equal(2))
			Expect(resp.Summary).To(BeEmpty())

			fakeERP.SetProducts(
				helpers.Product{ID: "101", Name: "Bolsa Tote", SKU: "SKU1", Price: "219.90"},
				helpers.Product{ID: "102", Name: "Carteira", SKU: "SKU2", Price: "89,50"},
			)
			status, resp = serverHelper.PostSync(`{"entity":"products"}`)
			Expect(status).To(Equal(http.StatusOK))
			Expect(resp.Stats.ItemsUpdated).To(Equal(1))
			Expect(resp.Stats.ItemsSkipped).To(Equal(1))
			Expect(resp.Summary).To(ConsistOf(HaveKeyWithValue("action", "update")))

			runs := serverHelper.GetRuns("products")
			Expect(runs).To(HaveLen(3))
			Expect(runs[0].ItemsUpdated).To(Equal(1), "newest run comes first")
			Expect(runs[0].CreatedBy).To(Equal(helpers.OperatorID))
		})

		It("should keep the run log closed to anonymous callers", func() {
			resp, err := serverHelper.Get("/tiny-sync/runs")
			Expect(err).NotTo(HaveOccurred())
			defer func() {
				_ = resp.Body.Close()
			}()
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
		})

		It("should preview without writing on a dry run", func() {
			status, resp := serverHelper.PostSync(`{"entity":"products","dryRun":true}`)
			Expect(status).To(Equal(http.StatusOK))
			Expect(resp.DryRun).To(BeTrue())
			Expect(resp.Summary).To(HaveLen(2))
			Expect(resp.Stats.ItemsCreated).To(BeZero())
			Expect(serverHelper.MemoryStore().Rows("products")).To(BeEmpty())

			runs := serverHelper.GetRuns("")
			Expect(runs).To(HaveLen(1))
			Expect(runs[0].Operation).To(Equal("dry_run"))
		})
	})

	Context("Failures", func() {
		It("should reject an unknown entity", func() {
			status, resp := serverHelper.PostSync(`{"entity":"invoices"}`)
			Expect(status).To(Equal(http.StatusInternalServerError))
			Expect(resp.OK).To(BeFalse())
			Expect(resp.Error).NotTo(BeEmpty())
			Expect(fakeERP.Calls("info.php")).To(BeZero())
		})

		It("should surface an unavailable ERP", func() {
			fakeERP.FailWith(http.StatusServiceUnavailable)

			status, resp := serverHelper.PostSync(`{"entity":"products"}`)
			Expect(status).To(Equal(http.StatusInternalServerError))
			Expect(resp.Error).To(ContainSubstring("ERP unavailable"))
			Expect(serverHelper.MemoryStore().Rows("products")).To(BeEmpty())
		})
	})
})

var _ = Describe("Token rejection", Label("sync"), func() {
	It("should explain that the ERP rejected the token", func() {
		tempDir := createTempDir("tiny-sync-token-")
		defer cleanupTempDir(tempDir)

		fakeERP := helpers.NewFakeERP("another-token")
		defer fakeERP.Close()

		serverHelper := helpers.NewServerTestHelper(ctx, helpers.WriteConfigYAML(tempDir, fakeERP.URL, erpToken, 3))
		Expect(serverHelper.StartServer()).To(Succeed())
		defer func() {
			_ = serverHelper.StopServer()
		}()
		serverHelper.WaitForServerReady(10 * time.Second)

		status, resp := serverHelper.PostSync(`{"testOnly":true}`)
		Expect(status).To(Equal(http.StatusInternalServerError))
		Expect(resp.Error).To(ContainSubstring("rejected the API token"))
	})
})
