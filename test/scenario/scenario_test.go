package scenario_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Lattixe/MonkMode-windows/internal/api"
	"github.com/Lattixe/MonkMode-windows/internal/enumerator"
	"github.com/Lattixe/MonkMode-windows/internal/events"
	"github.com/Lattixe/MonkMode-windows/internal/focus"
	"github.com/Lattixe/MonkMode-windows/internal/interfaces"
	"github.com/Lattixe/MonkMode-windows/internal/logger"
	"github.com/Lattixe/MonkMode-windows/internal/session"
	"github.com/Lattixe/MonkMode-windows/internal/testutil"
)

const (
	hwndEditor  uintptr = 10
	hwndBrowser uintptr = 20
	hwndChat    uintptr = 30
	hwndConsole uintptr = 90
	selfPid             = 4242
)

type outcome struct {
	res session.Result
	err error
}

var _ = Describe("A focus session", func() {
	var (
		win     *testutil.MockWindowManager
		procs   *testutil.MockProcessManager
		hosts   *testutil.MockHostsFile
		notif   *testutil.MockNotificationSettings
		taskbar *testutil.MockTaskbar
		binder  *testutil.MockHotkeyBinder
		clock   *testutil.FakeClock

		typed  chan string
		runner *focus.Runner
		opts   focus.Options
		stream <-chan events.Event
		done   chan outcome
	)

	status := func() focus.Status {
		st, err := runner.Status(context.Background())
		Expect(err).NotTo(HaveOccurred())
		return st
	}

	phase := func() string {
		st, err := runner.Status(context.Background())
		if err != nil {
			return err.Error()
		}
		return st.Phase
	}

	minimized := func(hwnd uintptr) func() bool {
		return func() bool {
			w, _ := win.Window(hwnd)
			return w.Minimized
		}
	}

	ended := func() outcome {
		var o outcome
		Eventually(done).WithTimeout(3 * time.Second).Should(Receive(&o))
		return o
	}

	collected := func() []events.Event {
		var out []events.Event
		for {
			select {
			case e := <-stream:
				out = append(out, e)
			default:
				return out
			}
		}
	}

	ofType := func(evs []events.Event, typ events.Type) []events.Event {
		var out []events.Event
		for _, e := range evs {
			if e.Type == typ {
				out = append(out, e)
			}
		}
		return out
	}

	BeforeEach(func() {
		win = testutil.NewMockWindowManager().
			WithAppWindow(hwndBrowser, "Reddit - Browser", 300).
			WithAppWindow(hwndEditor, "thesis.tex - Editor", 100).
			WithAppWindow(hwndChat, "general - Chat", 400).
			WithAppWindow(hwndConsole, "monkmode", selfPid).
			WithForeground(hwndBrowser).
			WithHost(hwndConsole)
		procs = testutil.NewMockProcessManager().
			WithProcess(100, "code.exe").
			WithProcess(300, "chrome.exe").
			WithProcess(400, "Slack.exe").
			WithProcess(selfPid, "monkmode.exe")
		hosts = testutil.NewMockHostsFile().WithContent(testutil.SampleHosts)
		notif = testutil.NewMockNotificationSettings().WithLevel(interfaces.NotificationsOff)
		taskbar = testutil.NewMockTaskbar()
		binder = testutil.NewMockHotkeyBinder()
		clock = testutil.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))

		phrases := make(chan string, 4)
		typed = phrases

		runner = focus.NewRunnerWithDeps(logger.NewNoOpLogger(), &focus.RunnerDependencies{
			Windows:       win,
			Processes:     procs,
			Hosts:         hosts,
			Notifications: notif,
			Taskbar:       taskbar,
			Commands:      testutil.NewMockCommandRunner(),
			Hotkeys:       binder,
			Confirmer: focus.ConfirmerFunc(func(ctx context.Context, _ string) (string, error) {
				select {
				case s := <-phrases:
					return s, nil
				case <-ctx.Done():
					return "", ctx.Err()
				}
			}),
			Clock:        clock,
			SelfPid:      selfPid,
			TickInterval: 5 * time.Millisecond,
		})

		opts = focus.Options{
			Task:     "thesis chapter 3",
			Duration: 50 * time.Minute,
			Allowed: []enumerator.Descriptor{
				{Index: 1, Hwnd: hwndEditor, Title: "thesis.tex - Editor", ProcessName: "code", Pid: 100},
			},
			Processes:    []string{"slack", "discord"},
			Domains:      []string{"reddit.com", "https://news.ycombinator.com/"},
			HideTaskbar:  true,
			EndHotkey:    "ctrl+alt+q",
			ExtendHotkey: "ctrl+alt+e",
			SettleDelay:  10 * time.Millisecond,
		}
	})

	JustBeforeEach(func() {
		var unsubscribe func()
		stream, unsubscribe = runner.Bus().Subscribe(512)

		ctx, cancel := context.WithCancel(context.Background())
		out := make(chan outcome, 1)
		done = out
		r, o := runner, opts

		go func() {
			defer GinkgoRecover()
			res, err := r.Run(ctx, o)
			out <- outcome{res, err}
		}()

		DeferCleanup(func() {
			cancel()
			unsubscribe()
			_ = r.Close()
		})

		Eventually(phase).WithTimeout(2 * time.Second).WithPolling(5 * time.Millisecond).Should(Equal("enforcing"))
	})

	Context("when it starts", func() {
		It("claims the desktop for the allowed window", func() {
			Expect(win.ForegroundWindow()).To(Equal(hwndEditor))
			Expect(minimized(hwndBrowser)()).To(BeTrue())
			Expect(minimized(hwndChat)()).To(BeTrue())
			Expect(minimized(hwndConsole)()).To(BeFalse(), "the host console stays usable")
		})

		It("applies every system block", func() {
			Expect(procs.Running(400)).To(BeFalse(), "slack is closed")
			Expect(procs.Running(300)).To(BeTrue())
			Expect(hosts.Current()).To(ContainSubstring("127.0.0.1 reddit.com"))
			Expect(hosts.Current()).To(ContainSubstring("127.0.0.1 www.news.ycombinator.com"))
			Expect(taskbar.Hidden).To(BeTrue())
			Expect(notif.Current).To(Equal(interfaces.NotificationsAlarmsOnly))
			Expect(binder.IsBound(1)).To(BeTrue())
			Expect(binder.IsBound(2)).To(BeTrue())

			st := status()
			Expect(st.HostsApplied).To(BeTrue())
			Expect(st.Blocked.Domains).To(ConsistOf("reddit.com", "news.ycombinator.com"))
			Expect(st.Session.Task).To(Equal("thesis chapter 3"))
		})
	})

	Context("when left alone until the timer runs out", func() {
		It("ends completed and puts the machine back", func() {
			clock.Advance(50 * time.Minute)
			o := ended()

			Expect(o.err).NotTo(HaveOccurred())
			Expect(o.res.Completed).To(BeTrue())
			Expect(o.res.Actual).To(Equal(50 * time.Minute))
			Expect(o.res.Interventions).To(Equal(1), "slack was closed at start")

			Expect(hosts.Current()).To(Equal(testutil.SampleHosts))
			Expect(taskbar.Hidden).To(BeFalse())
			Expect(notif.Current).To(Equal(interfaces.NotificationsOff))
			Expect(binder.IsBound(1)).To(BeFalse())

			evs := collected()
			Expect(ofType(evs, events.SessionStarted)).To(HaveLen(1))
			Expect(ofType(evs, events.SessionEnded)).To(HaveLen(1))
		})
	})

	Context("when a distracting window is brought forward", func() {
		It("minimizes it once focus returns to allowed work", func() {
			win.Update(hwndBrowser, func(w *testutil.FakeWindow) { w.Minimized = false })
			win.SetForegroundWindow(hwndBrowser)

			Consistently(minimized(hwndBrowser)).WithTimeout(700*time.Millisecond).Should(BeFalse(),
				"an intruder is left alone while it holds the foreground")

			win.SetForegroundWindow(hwndEditor)
			Eventually(minimized(hwndBrowser)).WithTimeout(3 * time.Second).Should(BeTrue())

			var suppressed []events.InterventionPayload
			Eventually(func() []events.InterventionPayload {
				for _, e := range ofType(collected(), events.Intervention) {
					if p, ok := e.Payload.(events.InterventionPayload); ok && p.Kind == events.WindowSuppressed {
						suppressed = append(suppressed, p)
					}
				}
				return suppressed
			}).WithTimeout(time.Second).Should(ContainElement(HaveField("Target", "chrome")))
		})
	})

	Context("when a blocked program is started mid-session", func() {
		It("closes it on the next scan", func() {
			procs.Spawn(600, "Discord.exe")

			Eventually(func() bool { return procs.Running(600) }).
				WithTimeout(3 * time.Second).
				Should(BeFalse())

			Expect(procs.Running(300)).To(BeTrue())
		})
	})

	Context("when the user tries to leave early", func() {
		It("keeps going until the exact phrase is typed", func() {
			typed <- "please let me go"
			runner.PromptEnd()

			Consistently(done).WithTimeout(200 * time.Millisecond).ShouldNot(Receive())
			Expect(status().Session.State).To(Equal("running"))

			clock.Advance(12 * time.Minute)
			typed <- session.DefaultConfirmationPhrase
			binder.Fire(1)

			o := ended()
			Expect(o.err).NotTo(HaveOccurred())
			Expect(o.res.Completed).To(BeFalse())
			Expect(o.res.Actual).To(Equal(12 * time.Minute))
			Expect(hosts.Current()).To(Equal(testutil.SampleHosts))
		})

		It("still completes when the timer runs out during the prompt", func() {
			runner.PromptEnd()
			Consistently(done).WithTimeout(100 * time.Millisecond).ShouldNot(Receive())

			clock.Advance(50 * time.Minute)
			o := ended()

			Expect(o.res.Completed).To(BeTrue())
		})
	})

	Context("when the extend hotkey is pressed", func() {
		It("adds five minutes to the session", func() {
			binder.Fire(2)

			Eventually(func() time.Duration {
				return status().Session.Timer.Planned
			}).WithTimeout(time.Second).Should(Equal(55 * time.Minute))

			clock.Advance(50 * time.Minute)
			Consistently(done).WithTimeout(100 * time.Millisecond).ShouldNot(Receive())

			clock.Advance(5 * time.Minute)
			Expect(ended().res.Planned).To(Equal(55 * time.Minute))
		})
	})

	Context("when controlled over the local API", func() {
		var srv *httptest.Server

		JustBeforeEach(func() {
			srv = httptest.NewServer(api.NewServer(logger.NewNoOpLogger(), runner, runner.Bus()).Handler())
			DeferCleanup(srv.Close)
		})

		post := func(path string, body any) *http.Response {
			data, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())

			resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(data))
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(resp.Body.Close)
			return resp
		}

		It("reports, extends, allows and ends the session", func() {
			resp, err := http.Get(srv.URL + "/api/session")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			var st focus.Status
			Expect(json.NewDecoder(resp.Body).Decode(&st)).To(Succeed())
			Expect(st.Phase).To(Equal("enforcing"))
			Expect(st.Allowed).To(HaveLen(1))

			Expect(post("/api/session/extend", struct{}{}).StatusCode).To(Equal(http.StatusOK))
			Expect(status().Session.Timer.Planned).To(Equal(55 * time.Minute))

			Expect(post("/api/session/allow", map[string]any{"hwnd": hwndBrowser}).StatusCode).To(Equal(http.StatusOK))
			Expect(status().Allowed).To(HaveLen(2))

			Expect(post("/api/session/end", map[string]string{"phrase": "bye"}).StatusCode).To(Equal(http.StatusForbidden))

			clock.Advance(time.Minute)
			resp = post("/api/session/end", map[string]string{"phrase": session.DefaultConfirmationPhrase})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var res session.Result
			Expect(json.NewDecoder(resp.Body).Decode(&res)).To(Succeed())
			Expect(res.Completed).To(BeFalse())
			Expect(res.Actual).To(Equal(time.Minute))

			Expect(ended().res.ID).To(Equal(res.ID))
			Expect(post("/api/session/extend", struct{}{}).StatusCode).To(Equal(http.StatusConflict))
		})

		It("brings the allowed windows back without taking focus", func() {
			win.Update(hwndEditor, func(w *testutil.FakeWindow) { w.Minimized = true })
			win.SetForegroundWindow(hwndConsole)

			Expect(post("/api/session/restore", struct{}{}).StatusCode).To(Equal(http.StatusNoContent))

			Expect(minimized(hwndEditor)()).To(BeFalse())
			Expect(win.ForegroundWindow()).To(Equal(hwndConsole))
		})
	})

	Context("when the process is torn down without stopping", func() {
		It("emergency cleanup reverts every system change", func() {
			runner.EmergencyCleanup()

			Expect(hosts.Current()).To(Equal(testutil.SampleHosts))
			Expect(taskbar.Hidden).To(BeFalse())
			Expect(notif.Current).To(Equal(interfaces.NotificationsOff))
		})
	})
})
