// Package monitor drives the polling loop: branch selection, extraction,
// persistence and notification, one branch at a time. The loop is
// deliberately sequential and single-threaded; concurrent requests from one
// source would defeat the retrieval client's anti-blocking posture, and the
// pacing between branches is part of that contract, never skipped.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"goldwatch/internal/components/assert"
	"goldwatch/internal/components/chrono"
	"goldwatch/internal/components/telemetry"
	"goldwatch/internal/db"
	"goldwatch/internal/notifier/telegram"
	"goldwatch/internal/scrapers/logammulia"
)

const (
	report_monitor_check_branch = "monitor.check-branch"
	report_monitor_persist      = "monitor.persist"
	report_monitor_notify       = "monitor.notify"
)

// settleDelay gives the server a moment between branch selection and the
// catalogue fetch, like a human waiting for the page to reload.
const settleDelay = 2 * time.Second

// ErrScopeLost reports that the retrieval client had to abandon its session
// mid-check, so the fetched page no longer reflects the selected branch.
var ErrScopeLost = errors.New("branch selection lost during retrieval")

// Notifier is the outbound alert boundary. Implementations decide for
// themselves whether a given message class is enabled.
type Notifier interface {
	SendStockAlert(ctx context.Context, items []telegram.StockItem) error
	SendError(ctx context.Context, message, errContext string) error
	SendSummary(ctx context.Context, totalBranches, totalProducts, availableCount int, duration time.Duration) error
}

// Monitor owns one retrieval client and checks branches with it
// sequentially.
type Monitor struct {
	client    *logammulia.Client
	extractor logammulia.Extractor
	directory *logammulia.Directory
	makeTx    db.MakeTx
	queries   *db.Queries
	notifier  Notifier
	time      chrono.TimeAPI
	sleep     chrono.SleepAPI
	tel       telemetry.API
}

// NewMonitor constructs a Monitor. notifier may be nil, which disables all
// outbound notifications.
func NewMonitor(
	client *logammulia.Client,
	extractor logammulia.Extractor,
	directory *logammulia.Directory,
	queries *db.Queries,
	makeTx db.MakeTx,
	notifier Notifier,
	time chrono.TimeAPI,
	sleep chrono.SleepAPI,
	tel telemetry.API,
) Monitor {
	assert.NotNil(client)
	assert.NotNil(directory)
	assert.NotNil(queries)
	assert.NotNil(makeTx)
	assert.NotNil(time)
	assert.NotNil(sleep)
	assert.NotNil(tel)

	return Monitor{
		client:    client,
		extractor: extractor,
		directory: directory,
		queries:   queries,
		makeTx:    makeTx,
		notifier:  notifier,
		time:      time,
		sleep:     sleep,
		tel:       telemetry.NewScopedAPI("monitor", tel),
	}
}

// CheckResult is the outcome of checking one branch.
type CheckResult struct {
	Snapshot logammulia.StockSnapshot
	// NewlyAvailable holds variants that were out of stock (or unseen) on
	// the previous check and are purchasable now.
	NewlyAvailable []telegram.StockItem
}

// CheckBranch runs the full selection-then-extraction sequence for one
// branch and diffs the result against its last-known state. A missing
// anti-forgery token is retried once on a completely fresh session; any
// other failure is returned as-is for the caller to count and move on.
func (m Monitor) CheckBranch(ctx context.Context, branchCode string, targetWeights []float64) (CheckResult, error) {
	err := m.client.SelectBranch(ctx, branchCode)
	if errors.Is(err, logammulia.ErrMissingToken) {
		// the session that produced the token-less page must not be reused
		m.tel.ReportWarning(report_monitor_check_branch, "missing token, retrying on a fresh session", branchCode)
		m.client.ResetSession()
		err = m.client.SelectBranch(ctx, branchCode)
	}
	if err != nil {
		return CheckResult{}, fmt.Errorf("check branch %s: %w", branchCode, err)
	}

	if err := m.sleep.Sleep(ctx, settleDelay); err != nil {
		return CheckResult{}, err
	}

	doc, err := m.client.Fetch(ctx, logammulia.PurchasePagePath, 0)
	if err != nil {
		return CheckResult{}, fmt.Errorf("check branch %s: %w", branchCode, err)
	}

	// retrieval can escalate into a session reset, which drops the branch
	// selection server-side. The page then shows some other branch's stock,
	// so fail the check rather than attribute it to the wrong branch.
	if scoped, ok := m.client.CurrentBranch(); !ok || scoped.Code != branchCode {
		return CheckResult{}, fmt.Errorf("check branch %s: %w", branchCode, ErrScopeLost)
	}

	branch, _ := m.directory.ByCode(branchCode)
	snapshot := m.extractor.Extract(doc, branch, m.time.Now(), targetWeights)

	if snapshot.TotalScanned == 0 {
		lastCount, err := m.queries.LastNonZeroCount(ctx, branchCode)
		if err == nil && lastCount > 0 {
			m.tel.ReportWarning(
				report_monitor_check_branch,
				"no price-bearing elements on a branch that previously had some, page structure may have changed",
				branchCode,
				lastCount,
			)
		}
	}

	previous, err := m.queries.VariantStates(ctx, branchCode)
	if err != nil {
		m.tel.ReportBroken(report_monitor_persist, fmt.Errorf("load previous states: %w", err), branchCode)
		previous = map[float64]db.VariantState{}
	}

	result := CheckResult{Snapshot: snapshot}
	for _, variant := range snapshot.Variants {
		if variant.Availability == logammulia.STOCK_OUT {
			continue
		}
		prev, seen := previous[variant.WeightGrams]
		if seen && prev.Availability != db.STATE_OUT {
			continue
		}
		result.NewlyAvailable = append(result.NewlyAvailable, telegram.StockItem{
			BranchCode:  branch.Code,
			BranchName:  branch.Name,
			City:        branch.City,
			WeightGrams: variant.WeightGrams,
			PriceIdr:    variant.PriceIdr,
			Status:      variant.Availability.String(),
		})
	}

	if err := m.persist(ctx, snapshot); err != nil {
		m.tel.ReportBroken(report_monitor_persist, err, branchCode)
	}

	return result, nil
}

func (m Monitor) persist(ctx context.Context, snapshot logammulia.StockSnapshot) error {
	tx, discard, commit, err := m.makeTx()
	if err != nil {
		return fmt.Errorf("make tx: %w", err)
	}
	defer discard()

	err = tx.InsertCheck(ctx, snapshot.Branch.Code, snapshot.CheckedAt, snapshot.TotalScanned, true)
	if err != nil {
		return fmt.Errorf("insert check: %w", err)
	}
	for _, variant := range snapshot.Variants {
		err = tx.UpsertVariantState(ctx, db.VariantState{
			BranchCode:   snapshot.Branch.Code,
			WeightGrams:  variant.WeightGrams,
			PriceIdr:     variant.PriceIdr,
			Availability: db.AvailabilityState(variant.Availability),
			CheckedAt:    snapshot.CheckedAt,
		})
		if err != nil {
			return fmt.Errorf("upsert variant state: %w", err)
		}
	}
	return commit()
}

// RunResult aggregates one pass over a work list.
type RunResult struct {
	Snapshots      []logammulia.StockSnapshot
	NewlyAvailable []telegram.StockItem
	Failed         []string
}

// Run checks every branch in codes in order, pacing between branches with a
// varying 5-11s delay. A branch that cannot be checked is reported and
// skipped; it never aborts the rest of the work list.
func (m Monitor) Run(ctx context.Context, codes []string, targetWeights []float64) (RunResult, error) {
	started := m.time.Now()
	var result RunResult

	for i, code := range codes {
		check, err := m.CheckBranch(ctx, code, targetWeights)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			m.tel.ReportBroken(report_monitor_check_branch, err, code)
			result.Failed = append(result.Failed, code)
			if m.notifier != nil {
				notifyErr := m.notifier.SendError(
					ctx,
					err.Error(),
					fmt.Sprintf("Branch check failed - %s", code),
				)
				if notifyErr != nil {
					m.tel.ReportWarning(report_monitor_notify, notifyErr)
				}
			}
		} else {
			result.Snapshots = append(result.Snapshots, check.Snapshot)
			result.NewlyAvailable = append(result.NewlyAvailable, check.NewlyAvailable...)
		}

		if i < len(codes)-1 {
			if err := m.sleep.Sleep(ctx, interBranchDelay(i)); err != nil {
				return result, err
			}
		}
	}

	if m.notifier != nil && len(result.NewlyAvailable) > 0 {
		if err := m.notifier.SendStockAlert(ctx, result.NewlyAvailable); err != nil {
			m.tel.ReportBroken(report_monitor_notify, err)
		}
	}
	if m.notifier != nil {
		totalScanned := 0
		for _, snapshot := range result.Snapshots {
			totalScanned += snapshot.TotalScanned
		}
		err := m.notifier.SendSummary(
			ctx,
			len(result.Snapshots),
			totalScanned,
			len(result.NewlyAvailable),
			m.time.Now().Sub(started),
		)
		if err != nil {
			m.tel.ReportWarning(report_monitor_notify, err)
		}
	}

	m.tel.ReportCount("monitor.newly-available", int64(len(result.NewlyAvailable)))
	return result, nil
}

// interBranchDelay paces consecutive branch checks: 5s, 8s, 11s, repeating.
func interBranchDelay(i int) time.Duration {
	return time.Duration(5+(i%3)*3) * time.Second
}
