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
	"github.com/eliteGoblin/focusd/app_usage/internal/policy"
	"github.com/eliteGoblin/focusd/app_usage/internal/usecase"
	"github.com/eliteGoblin/focusd/app_usage/test/fixtures"
)

var _ = Describe("Tracking session", func() {
	for _, backend := range []string{infra.StorageJSON, infra.StorageEncrypted} {
		backend := backend
		Context("with the "+backend+" store", func() {
			var (
				dataDir string
				store   domain.DayStore
				clock   *fixtures.ManualClock
				sampler *fixtures.ScriptedSampler
				tracker *usecase.Tracker
				start   time.Time
			)

			newEngine := func(s domain.DayStore) *usecase.Tracker {
				ledger := usecase.NewLedger(s, policy.NewCategorizer(), clock.Now().Format(domain.DateLayout), 0, zap.NewNop())
				return usecase.NewTracker(usecase.DefaultTrackerConfig(), sampler, ledger, clock, zap.NewNop())
			}

			// observe keeps app focused for the given number of one-second ticks.
			observe := func(app string, seconds int) {
				for i := 0; i < seconds; i++ {
					sampler.Focus(app, app+" - window")
					tracker.Tick(context.Background())
					clock.Advance(time.Second)
				}
			}

			BeforeEach(func() {
				var err error
				dataDir, err = os.MkdirTemp("", "appusage-integration-*")
				Expect(err).NotTo(HaveOccurred())

				store, err = infra.OpenDayStore(backend, dataDir)
				Expect(err).NotTo(HaveOccurred())

				start = time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local)
				clock = fixtures.NewManualClock(start)
				sampler = &fixtures.ScriptedSampler{}
				tracker = newEngine(store)
				tracker.Start()
			})

			AfterEach(func() {
				tracker.Stop()
				Expect(store.Close()).To(Succeed())
				os.RemoveAll(dataDir)
			})

			It("credits each app on switch and flushes on stop", func() {
				observe("Google Chrome", 5)
				observe("Code", 3)
				tracker.Stop()

				day, ok := tracker.UsageData("")
				Expect(ok).To(BeTrue())
				Expect(day.Apps).To(HaveLen(2))
				Expect(day.Apps["Google Chrome"].Duration).To(Equal(int64(5000)))
				Expect(day.Apps["Code"].Duration).To(Equal(int64(3000)))
				Expect(day.TotalTime).To(Equal(day.SumDurations()))
				Expect(day.Timeline).To(HaveLen(2))
			})

			It("reloads the persisted day after a restart", func() {
				observe("Code", 4)
				observe("Slack", 2)
				observe("Code", 1)
				tracker.Stop()

				restarted := newEngine(store)
				day, ok := restarted.UsageData("2026-03-10")
				Expect(ok).To(BeTrue())
				Expect(day.Apps["Code"].Duration).To(Equal(int64(5000)))
				Expect(day.Apps["Code"].Launches).To(Equal(1))
				Expect(day.Apps["Slack"].Duration).To(Equal(int64(2000)))
				Expect(day.TotalTime).To(Equal(int64(7000)))

				dates, err := store.Dates()
				Expect(err).NotTo(HaveOccurred())
				Expect(dates).To(Equal([]string{"2026-03-10"}))
			})

			It("shows the running session in the live view only", func() {
				observe("Code", 3)

				live := tracker.RealTimeUsageData()
				Expect(live.Apps["Code"].Duration).To(Equal(int64(3000)))
				Expect(live.TotalTime).To(Equal(int64(3000)))

				_, err := store.Load("2026-03-10")
				Expect(err).To(MatchError(domain.ErrDayNotFound))

				stats := tracker.TodayStats()
				Expect(stats.CurrentApp).To(Equal("Code"))
				Expect(stats.CurrentAppDuration).To(Equal(int64(3000)))
			})

			It("splits a session that crosses midnight", func() {
				clock = fixtures.NewManualClock(time.Date(2026, 3, 10, 23, 59, 58, 0, time.Local))
				tracker.Stop()
				tracker = newEngine(store)
				tracker.Start()

				observe("Code", 4)
				tracker.Stop()

				before, err := store.Load("2026-03-10")
				Expect(err).NotTo(HaveOccurred())
				Expect(before.Apps["Code"].Duration).To(BeNumerically("~", 2000, 1))

				after, ok := tracker.UsageData("")
				Expect(ok).To(BeTrue())
				Expect(after.Date).To(Equal("2026-03-11"))
				Expect(after.Apps["Code"].Duration).To(BeNumerically("~", 2000, 1))
			})
		})
	}
})
