//go:build integration

package integration

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
	"github.com/eliteGoblin/focusd/app_usage/internal/infra"
	"github.com/eliteGoblin/focusd/app_usage/internal/usecase"
	"github.com/eliteGoblin/focusd/app_usage/test/fixtures"
)

var _ = Describe("Work mode enforcement", func() {
	var (
		tmpDir string
		app    *fixtures.FakeApp
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "appusage-enforce-*")
		Expect(err).NotTo(HaveOccurred())

		app, err = fixtures.StartFakeApp(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		app.Cleanup()
		os.RemoveAll(tmpDir)
	})

	It("kills a running blocked app", func() {
		blocker := usecase.NewBlocker(infra.NewProcessManager(), zap.NewNop())
		mode := domain.WorkMode{ID: "test", BlockedApps: []domain.BlockedApp{
			{Name: "Fake", ProcessName: app.Name, Enabled: true},
		}}

		result, err := blocker.Enforce(context.Background(), mode)

		Expect(err).NotTo(HaveOccurred())
		Expect(result.KilledPIDs).To(ConsistOf(app.PID()))
		Expect(app.Exited(5 * time.Second)).To(BeTrue())
	})

	It("leaves a disabled entry running", func() {
		blocker := usecase.NewBlocker(infra.NewProcessManager(), zap.NewNop())
		mode := domain.WorkMode{ID: "test", BlockedApps: []domain.BlockedApp{
			{Name: "Fake", ProcessName: app.Name, Enabled: false},
		}}

		result, err := blocker.Enforce(context.Background(), mode)

		Expect(err).NotTo(HaveOccurred())
		Expect(result.KilledPIDs).To(BeEmpty())
		Expect(app.Exited(200 * time.Millisecond)).To(BeFalse())
	})

	It("finds the app by name", func() {
		pm := infra.NewProcessManager()

		pids, err := pm.FindByName(app.Name)
		Expect(err).NotTo(HaveOccurred())
		Expect(pids).To(ContainElement(app.PID()))
		Expect(pm.IsRunning(app.PID())).To(BeTrue())
	})
})

var _ = Describe("Single instance", func() {
	var dataDir string

	BeforeEach(func() {
		var err error
		dataDir, err = os.MkdirTemp("", "appusage-instance-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(dataDir)
	})

	It("rejects a second tracker until the first releases", func() {
		first := infra.NewInstanceLock(dataDir)
		second := infra.NewInstanceLock(dataDir)
		inst := domain.Instance{PID: os.Getpid(), StartedAt: time.Now(), AppVersion: "test"}

		Expect(first.Acquire(inst)).To(Succeed())
		Expect(second.Acquire(inst)).To(MatchError(infra.ErrAlreadyRunning))

		current, err := second.Current()
		Expect(err).NotTo(HaveOccurred())
		Expect(current.PID).To(Equal(os.Getpid()))

		Expect(first.Release()).To(Succeed())
		Expect(second.Acquire(inst)).To(Succeed())
		Expect(second.Release()).To(Succeed())
	})
})
