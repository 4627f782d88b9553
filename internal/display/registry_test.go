package display

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-displays/internal/access"
	"github.com/nerrad567/gray-logic-displays/internal/monitor"
	"github.com/nerrad567/gray-logic-displays/internal/reconcile"
)

func TestScan_PopulatesRoster(t *testing.T) {
	reg, p := newTestRegistry(t, Options{})
	events := newEventLog(reg)

	res := mustScan(t, reg)

	if res.Monitors != 2 || reg.Count() != 2 {
		t.Fatalf("Monitors = %d, Count() = %d, want 2", res.Monitors, reg.Count())
	}
	if len(res.Added) != 2 {
		t.Errorf("Added = %v, want both monitors", res.Added)
	}
	if p.OpenHandles() != 1 {
		t.Errorf("OpenHandles() = %d, want 1 (the DDC monitor)", p.OpenHandles())
	}

	roster := events.ofType(EventRosterChanged)
	if len(roster) != 1 || roster[0].RosterID != res.ID {
		t.Errorf("roster_changed events = %+v", roster)
	}

	dell, ok := reg.Monitor(idDell)
	if !ok {
		t.Fatal("Monitor(identity) not found")
	}
	if dell.Backend() != monitor.BackendDDC {
		t.Errorf("Backend() = %s, want ddc", dell.Backend())
	}
	// Initial read happens during the scan.
	if dell.Brightness() != 50 {
		t.Errorf("Brightness() = %d, want 50", dell.Brightness())
	}

	bySlug, ok := reg.Monitor(monitor.Identity(idDell).Slug())
	if !ok || bySlug != dell {
		t.Error("Monitor(slug) did not return the same controller")
	}

	states := reg.States()
	if len(states) != 2 || states[0].Identity != monitor.Identity(idDell) {
		t.Fatalf("States() = %+v", states)
	}
	if states[1].Backend != monitor.BackendWMI || !states[1].Internal {
		t.Errorf("panel state = %+v", states[1])
	}

	last, ok := reg.LastScan()
	if !ok || last.ID != res.ID {
		t.Errorf("LastScan() = %+v, %v", last, ok)
	}
}

func TestScan_UnchangedKeepsControllers(t *testing.T) {
	reg, p := newTestRegistry(t, Options{})
	mustScan(t, reg)
	before, _ := reg.Monitor(idDell)

	events := newEventLog(reg)
	res := mustScan(t, reg)

	if res.Changed() {
		t.Errorf("second scan reported changes: %+v", res)
	}
	after, _ := reg.Monitor(idDell)
	if after != before {
		t.Error("controller was replaced although the monitor did not change")
	}
	if p.OpenHandles() != 1 {
		t.Errorf("OpenHandles() = %d, want 1 (duplicate handle released)", p.OpenHandles())
	}
	if n := len(events.ofType(EventRosterChanged)); n != 0 {
		t.Errorf("roster_changed events = %d, want 0", n)
	}
}

func TestScan_RemovedMonitorReleased(t *testing.T) {
	reg, p := newTestRegistry(t, Options{})
	mustScan(t, reg)

	p.RemoveMonitor(idDell)
	res := mustScan(t, reg)

	if len(res.Removed) != 1 || !res.Removed[0].Equal(idDell) {
		t.Errorf("Removed = %v, want [%s]", res.Removed, idDell)
	}
	if _, ok := reg.Monitor(idDell); ok {
		t.Error("removed monitor still in roster")
	}
	if p.OpenHandles() != 0 {
		t.Errorf("OpenHandles() = %d, want 0", p.OpenHandles())
	}
}

// failingScanner fails Reconcile after the first call.
type failingScanner struct {
	Scanner
	calls atomic.Int32
}

func (f *failingScanner) Reconcile(ctx context.Context) (*reconcile.Roster, error) {
	if f.calls.Add(1) > 1 {
		return nil, reconcile.ErrLegacyUnavailable
	}
	return f.Scanner.Reconcile(ctx)
}

func TestScan_ErrorKeepsPreviousRoster(t *testing.T) {
	reg, _ := newTestRegistry(t, Options{})
	reg.scanner = &failingScanner{Scanner: reg.scanner}

	mustScan(t, reg)

	_, err := reg.Scan(context.Background())
	if !errors.Is(err, reconcile.ErrLegacyUnavailable) {
		t.Fatalf("Scan() error = %v, want ErrLegacyUnavailable", err)
	}
	if reg.Count() != 2 {
		t.Errorf("Count() = %d after failed scan, want 2", reg.Count())
	}
}

// blockingScanner counts Reconcile calls and holds them until released.
type blockingScanner struct {
	Scanner
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (b *blockingScanner) Reconcile(ctx context.Context) (*reconcile.Roster, error) {
	b.calls.Add(1)
	b.entered <- struct{}{}
	<-b.release
	return b.Scanner.Reconcile(ctx)
}

func TestScan_ConcurrentCallersShareOneScan(t *testing.T) {
	reg, _ := newTestRegistry(t, Options{})
	bs := &blockingScanner{
		Scanner: reg.scanner,
		entered: make(chan struct{}, 4),
		release: make(chan struct{}),
	}
	reg.scanner = bs

	var wg sync.WaitGroup
	results := make([]ScanResult, 3)
	errs := make([]error, 3)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = reg.Scan(context.Background())
	}()
	<-bs.entered

	for i := 1; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = reg.Scan(context.Background())
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(bs.release)
	wg.Wait()

	if n := bs.calls.Load(); n != 1 {
		t.Errorf("Reconcile called %d times, want 1", n)
	}
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("Scan[%d] error = %v", i, errs[i])
		}
		if results[i].ID != results[0].ID {
			t.Errorf("Scan[%d] ID = %s, want shared %s", i, results[i].ID, results[0].ID)
		}
	}
}

func TestScan_CallerCancelled(t *testing.T) {
	reg, _ := newTestRegistry(t, Options{})
	bs := &blockingScanner{
		Scanner: reg.scanner,
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	reg.scanner = bs

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := reg.Scan(ctx)
		done <- err
	}()
	<-bs.entered
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Scan() error = %v, want context.Canceled", err)
	}

	// The scan itself completes and installs its roster.
	close(bs.release)
	deadline := time.Now().Add(2 * time.Second)
	for reg.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if reg.Count() != 2 {
		t.Errorf("Count() = %d, want 2 once the abandoned scan finished", reg.Count())
	}
}

func TestSetBrightness(t *testing.T) {
	rec := &fakeRecorder{}
	reg, _ := newTestRegistry(t, Options{Recorder: rec})
	mustScan(t, reg)
	events := newEventLog(reg)

	res, err := reg.SetBrightness(context.Background(), monitor.Identity(idDell).Slug(), 70)
	if err != nil {
		t.Fatalf("SetBrightness() error = %v", err)
	}
	if !res.Succeeded() {
		t.Fatalf("SetBrightness() = %s, want succeeded", res)
	}

	changed := events.ofType(EventBrightnessChanged)
	if len(changed) != 1 || changed[0].Value != 70 || !changed[0].Identity.Equal(idDell) {
		t.Errorf("brightness_changed events = %+v", changed)
	}

	cmds := rec.bySource(SourceCommand)
	found := false
	for _, o := range cmds {
		if o.Kind == KindBrightness && o.Value == 70 && o.Backend == monitor.BackendDDC {
			found = true
		}
	}
	if !found {
		t.Errorf("recorder command observations = %+v, want brightness 70", cmds)
	}
}

func TestSetBrightness_SameValueNoEvent(t *testing.T) {
	reg, _ := newTestRegistry(t, Options{})
	mustScan(t, reg)
	events := newEventLog(reg)

	if _, err := reg.SetBrightness(context.Background(), idDell, 50); err != nil {
		t.Fatal(err)
	}
	if n := len(events.ofType(EventBrightnessChanged)); n != 0 {
		t.Errorf("brightness_changed events = %d, want 0", n)
	}
}

func TestSetContrast(t *testing.T) {
	reg, _ := newTestRegistry(t, Options{})
	mustScan(t, reg)
	events := newEventLog(reg)

	res, err := reg.SetContrast(context.Background(), idDell, 40)
	if err != nil || !res.Succeeded() {
		t.Fatalf("SetContrast() = %s, %v", res, err)
	}
	if got := events.ofType(EventContrastChanged); len(got) != 1 || got[0].Value != 40 {
		t.Errorf("contrast_changed events = %+v", got)
	}

	// WMI panels have no contrast control.
	res, err = reg.SetContrast(context.Background(), idPanel, 40)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != access.NotSupported {
		t.Errorf("panel SetContrast() = %s, want not_supported", res)
	}
}

func TestOperations_UnknownMonitor(t *testing.T) {
	reg, _ := newTestRegistry(t, Options{})
	mustScan(t, reg)
	ctx := context.Background()

	if _, err := reg.SetBrightness(ctx, "nope", 10); !errors.Is(err, ErrMonitorNotFound) {
		t.Errorf("SetBrightness() error = %v, want ErrMonitorNotFound", err)
	}
	if _, err := reg.SetContrast(ctx, "nope", 10); !errors.Is(err, ErrMonitorNotFound) {
		t.Errorf("SetContrast() error = %v, want ErrMonitorNotFound", err)
	}
	if _, err := reg.RefreshMonitor(ctx, "nope"); !errors.Is(err, ErrMonitorNotFound) {
		t.Errorf("RefreshMonitor() error = %v, want ErrMonitorNotFound", err)
	}
}

func TestVanishedMonitorRequestsRescan(t *testing.T) {
	reg, p := newTestRegistry(t, Options{})
	mustScan(t, reg)

	p.RemoveMonitor(idDell)
	res, err := reg.SetBrightness(context.Background(), idDell, 30)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != access.NoLongerExists {
		t.Fatalf("SetBrightness() = %s, want no_longer_exists", res)
	}

	select {
	case <-reg.rescan:
	default:
		t.Error("no rescan requested after no_longer_exists")
	}
}

func TestRefresh_RecordsObservations(t *testing.T) {
	rec := &fakeRecorder{}
	reg, _ := newTestRegistry(t, Options{Recorder: rec})
	mustScan(t, reg)

	if err := reg.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	kinds := map[Kind]int{}
	for _, o := range rec.bySource(SourceRefresh) {
		kinds[o.Kind]++
	}
	// Brightness for both monitors, contrast for the DDC one.
	if kinds[KindBrightness] != 2 || kinds[KindContrast] != 1 {
		t.Errorf("refresh observations = %v", kinds)
	}
}

func TestOperations_RecordTouchedKindOnly(t *testing.T) {
	tests := []struct {
		name   string
		source string
		op     func(*Registry) (access.Result, error)
		want   map[Kind]int
	}{
		{
			name:   "refresh one monitor",
			source: SourceRefresh,
			op: func(r *Registry) (access.Result, error) {
				return r.RefreshMonitor(context.Background(), idDell)
			},
			want: map[Kind]int{KindBrightness: 1, KindContrast: 1},
		},
		{
			name:   "set brightness",
			source: SourceCommand,
			op: func(r *Registry) (access.Result, error) {
				return r.SetBrightness(context.Background(), idDell, 40)
			},
			want: map[Kind]int{KindBrightness: 1},
		},
		{
			name:   "set contrast",
			source: SourceCommand,
			op: func(r *Registry) (access.Result, error) {
				return r.SetContrast(context.Background(), idDell, 40)
			},
			want: map[Kind]int{KindContrast: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecorder{}
			reg, _ := newTestRegistry(t, Options{Recorder: rec})
			mustScan(t, reg)

			res, err := tt.op(reg)
			if err != nil || !res.Succeeded() {
				t.Fatalf("operation = %s, %v", res, err)
			}

			got := map[Kind]int{}
			for _, o := range rec.bySource(tt.source) {
				got[o.Kind]++
			}
			if len(got) != len(tt.want) {
				t.Errorf("observations = %v, want %v", got, tt.want)
			}
			for kind, n := range tt.want {
				if got[kind] != n {
					t.Errorf("observations = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestRecorderErrorDoesNotFailOperation(t *testing.T) {
	rec := &fakeRecorder{fail: errors.New("disk full")}
	reg, _ := newTestRegistry(t, Options{Recorder: rec})
	mustScan(t, reg)

	res, err := reg.SetBrightness(context.Background(), idDell, 60)
	if err != nil || !res.Succeeded() {
		t.Errorf("SetBrightness() = %s, %v; want success despite recorder error", res, err)
	}
}

func TestWatch_RescansOnChange(t *testing.T) {
	reg, p := newTestRegistry(t, Options{})
	mustScan(t, reg)
	events := newEventLog(reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- reg.Watch(ctx, 20*time.Millisecond) }()

	p.RemoveMonitor(idPanel)
	ev := events.await(t, EventRosterChanged, 2*time.Second)
	if len(ev.Removed) != 1 || !ev.Removed[0].Equal(idPanel) {
		t.Errorf("roster_changed Removed = %v, want [%s]", ev.Removed, idPanel)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Watch() = %v, want context.Canceled", err)
	}
}

func TestWatch_InvalidInterval(t *testing.T) {
	reg, _ := newTestRegistry(t, Options{})
	if err := reg.Watch(context.Background(), 0); err == nil {
		t.Error("Watch(0) expected error")
	}
}

func TestClose(t *testing.T) {
	reg, p := newTestRegistry(t, Options{})
	mustScan(t, reg)

	if err := reg.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if p.OpenHandles() != 0 {
		t.Errorf("OpenHandles() = %d after Close, want 0", p.OpenHandles())
	}
	if reg.Count() != 0 {
		t.Errorf("Count() = %d after Close", reg.Count())
	}
	if _, err := reg.Scan(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Scan() after Close error = %v, want ErrClosed", err)
	}
	// Idempotent.
	if err := reg.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestAddListener_Remove(t *testing.T) {
	reg, _ := newTestRegistry(t, Options{})
	var calls atomic.Int32
	remove := reg.AddListener(func(Event) { calls.Add(1) })
	remove()

	mustScan(t, reg)
	if calls.Load() != 0 {
		t.Errorf("removed listener called %d times", calls.Load())
	}
}
