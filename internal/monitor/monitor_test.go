package monitor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"goldwatch/internal/components/chrono"
	"goldwatch/internal/components/telemetry"
	"goldwatch/internal/db"
	"goldwatch/internal/notifier/telegram"
	"goldwatch/internal/scrapers/logammulia"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

type fakeSleep struct {
	delays []time.Duration
}

func (s *fakeSleep) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.delays = append(s.delays, d)
	return nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	alerts    [][]telegram.StockItem
	errors    []string
	summaries int
}

func (n *fakeNotifier) SendStockAlert(ctx context.Context, items []telegram.StockItem) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, items)
	return nil
}

func (n *fakeNotifier) SendError(ctx context.Context, message, errContext string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, message)
	return nil
}

func (n *fakeNotifier) SendSummary(ctx context.Context, totalBranches, totalProducts, availableCount int, duration time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.summaries++
	return nil
}

const testLocationDocument = `
<select id="location">
	<option value="">Pilih lokasi Butik Emas Logam Mulia</option>
	<option value="ASB1">BELM - Surabaya 1, Surabaya</option>
	<option value="ABDG">BELM - Bandung, Bandung</option>
	<option value="AJK2">BELM - Gedung Antam Jakarta, Jakarta</option>
</select>
`

// stockServer serves a purchase page whose availability per branch is
// mutable between monitoring passes.
type stockServer struct {
	mu sync.Mutex
	// disabled maps branch code to whether its 5g variant is out of stock
	disabled map[string]bool
	selected string
	server   *httptest.Server
}

func newStockServer() *stockServer {
	s := &stockServer{disabled: map[string]bool{}, selected: "ASB1"}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		if r.Method == http.MethodPost && r.URL.Path == logammulia.ChangeLocationPath {
			r.ParseForm()
			s.selected = r.PostFormValue("location")
			w.Write([]byte("ok"))
			return
		}

		disabledAttr := ""
		if s.disabled[s.selected] {
			disabledAttr = "disabled"
		}
		fmt.Fprintf(w, `<html><head><meta name="_token" content="tok"></head><body>
			<div><input price="5.500.000" weight="5" max="10" %s></div>
		</body></html>`, disabledAttr)
	}))
	return s
}

func (s *stockServer) setDisabled(code string, disabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled[code] = disabled
}

func setup(t testing.TB, server *stockServer, notifier Notifier) Monitor {
	directory, err := logammulia.ParseDirectory(strings.NewReader(testLocationDocument))
	require.NoError(t, err)

	tel := telemetry.SlogAPI{}
	sleep := &fakeSleep{}
	client, err := logammulia.NewClient(server.server.URL, directory, 3, chrono.StandardTime{}, sleep, tel)
	require.NoError(t, err)

	sqlite, err := db.OpenDB(db.Schema, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return NewMonitor(
		client,
		logammulia.NewExtractor(tel),
		directory,
		db.New(sqlite),
		db.NewMakeTx(sqlite),
		notifier,
		chrono.StandardTime{},
		sleep,
		tel,
	)
}

func TestCheckBranchFirstSighting(t *testing.T) {
	server := newStockServer()
	defer server.server.Close()

	mon := setup(t, server, nil)
	result, err := mon.CheckBranch(context.Background(), "ASB1", nil)
	require.NoError(t, err)

	require.Equal(t, 1, result.Snapshot.TotalScanned)
	require.Len(t, result.Snapshot.Variants, 1)

	// an unseen variant that is purchasable counts as newly available
	require.Len(t, result.NewlyAvailable, 1)
	require.Equal(t, "ASB1", result.NewlyAvailable[0].BranchCode)
	require.Equal(t, "Surabaya 1", result.NewlyAvailable[0].BranchName)
	require.Equal(t, float64(5), result.NewlyAvailable[0].WeightGrams)
}

func TestCheckBranchTransitions(t *testing.T) {
	server := newStockServer()
	defer server.server.Close()
	server.setDisabled("ASB1", true)

	mon := setup(t, server, nil)
	ctx := context.Background()

	// out of stock on first sight: nothing to report
	result, err := mon.CheckBranch(ctx, "ASB1", nil)
	require.NoError(t, err)
	require.Empty(t, result.NewlyAvailable)

	// restocked: out -> available must alert
	server.setDisabled("ASB1", false)
	result, err = mon.CheckBranch(ctx, "ASB1", nil)
	require.NoError(t, err)
	require.Len(t, result.NewlyAvailable, 1)

	// still available: no repeat alert
	result, err = mon.CheckBranch(ctx, "ASB1", nil)
	require.NoError(t, err)
	require.Empty(t, result.NewlyAvailable)

	// sold out again, then restocked: alerts again
	server.setDisabled("ASB1", true)
	_, err = mon.CheckBranch(ctx, "ASB1", nil)
	require.NoError(t, err)
	server.setDisabled("ASB1", false)
	result, err = mon.CheckBranch(ctx, "ASB1", nil)
	require.NoError(t, err)
	require.Len(t, result.NewlyAvailable, 1)
}

func TestCheckBranchRetriesMissingToken(t *testing.T) {
	var gets int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Write([]byte("ok"))
			return
		}
		gets++
		if gets == 1 {
			// token-less page, the session that produced it is poisoned
			w.Write([]byte(`<html><body><p>session expired</p></body></html>`))
			return
		}
		w.Write([]byte(`<html><head><meta name="_token" content="tok"></head><body>
			<div><input price="5.500.000" weight="5"></div>
		</body></html>`))
	}))
	defer server.Close()

	mon := setup(t, &stockServer{server: server}, nil)
	result, err := mon.CheckBranch(context.Background(), "ASB1", nil)
	require.NoError(t, err)
	require.Len(t, result.Snapshot.Variants, 1)
	require.GreaterOrEqual(t, gets, 2)
}

func TestCheckBranchFailsWhenScopeLost(t *testing.T) {
	var mu sync.Mutex
	gets := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Write([]byte("ok"))
			return
		}
		mu.Lock()
		gets++
		n := gets
		mu.Unlock()
		// every scheduled attempt after selection is blocked, forcing the
		// client onto a throwaway session whose branch selection is gone
		if n > 1 && n <= 4 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(`<html><head><meta name="_token" content="tok"></head><body>
			<div><input price="5.500.000" weight="5"></div>
		</body></html>`))
	}))
	defer server.Close()

	mon := setup(t, &stockServer{server: server}, nil)
	_, err := mon.CheckBranch(context.Background(), "ASB1", nil)

	// the page came back fine but no longer describes ASB1
	require.ErrorIs(t, err, ErrScopeLost)
}

func TestCheckBranchUnknownCode(t *testing.T) {
	server := newStockServer()
	defer server.server.Close()

	mon := setup(t, server, nil)
	_, err := mon.CheckBranch(context.Background(), "NOPE", nil)
	require.ErrorIs(t, err, logammulia.ErrUnknownBranch)
}

func TestRunSequentialPacing(t *testing.T) {
	server := newStockServer()
	defer server.server.Close()

	notifier := &fakeNotifier{}
	mon := setup(t, server, notifier)

	result, err := mon.Run(context.Background(), []string{"ASB1", "ABDG", "AJK2"}, nil)
	require.NoError(t, err)
	require.Len(t, result.Snapshots, 3)
	require.Empty(t, result.Failed)
	require.Len(t, result.NewlyAvailable, 3)

	// one alert for the whole pass plus one summary
	require.Len(t, notifier.alerts, 1)
	require.Len(t, notifier.alerts[0], 3)
	require.Equal(t, 1, notifier.summaries)

	// branches two and three each waited for their pacing delay
	sleep := mon.sleep.(*fakeSleep)
	pacing := 0
	for _, d := range sleep.delays {
		if d == 5*time.Second || d == 8*time.Second {
			pacing++
		}
	}
	require.GreaterOrEqual(t, pacing, 2)
}

func TestRunContinuesPastFailingBranch(t *testing.T) {
	server := newStockServer()
	defer server.server.Close()

	notifier := &fakeNotifier{}
	mon := setup(t, server, notifier)

	result, err := mon.Run(context.Background(), []string{"NOPE", "ASB1"}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"NOPE"}, result.Failed)
	require.Len(t, result.Snapshots, 1)

	// the failure was reported but did not stop the pass
	require.Len(t, notifier.errors, 1)
	require.Contains(t, notifier.errors[0], "NOPE")
}

func TestInterBranchDelay(t *testing.T) {
	require.Equal(t, 5*time.Second, interBranchDelay(0))
	require.Equal(t, 8*time.Second, interBranchDelay(1))
	require.Equal(t, 11*time.Second, interBranchDelay(2))
	require.Equal(t, 5*time.Second, interBranchDelay(3))
}

func TestBuildWorkList(t *testing.T) {
	directory, err := logammulia.ParseDirectory(strings.NewReader(testLocationDocument))
	require.NoError(t, err)

	// priority cities come first in priority order
	codes := BuildWorkList(directory, WorkListOptions{})
	require.Equal(t, []string{"AJK2", "ASB1", "ABDG"}, codes)

	codes = BuildWorkList(directory, WorkListOptions{MaxBranches: 2})
	require.Equal(t, []string{"AJK2", "ASB1"}, codes)
}
