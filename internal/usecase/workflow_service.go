package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/orderdesk/backend/internal/domain"
	"github.com/rs/zerolog/log"
)

// WorkflowServiceConfig holds configuration for the workflow service
type WorkflowServiceConfig struct {
	BackofficeURL string
	Worksheets    map[domain.Workflow]string
	// DaysOffset is how many days back each workflow looks for sheet rows (deviations: yesterday)
	DaysOffset map[domain.Workflow]int
	Location   *time.Location
	RunTTL     time.Duration
	LedgerTTL  time.Duration
}

// DefaultWorksheets are the tab names used when none are configured
var DefaultWorksheets = map[domain.Workflow]string{
	domain.WorkflowDeviations:    "check_nueva_info_desvios",
	domain.WorkflowCancellations: "Cancelar",
	domain.WorkflowClaims:        "ReclamoAI",
}

// WorkflowService plans sheet work items, tracks runs and reports outcomes to chat
type WorkflowService struct {
	sheets   domain.SheetSource
	notifier domain.Notifier
	store    domain.CacheRepository
	matcher  *MatchingService
	parser   *WorkItemParser
	clock    clockwork.Clock

	worksheets map[domain.Workflow]string
	daysOffset map[domain.Workflow]int
	location   *time.Location
	runTTL     time.Duration
	ledgerTTL  time.Duration

	// mu serialises run read-modify-write cycles on the store
	mu sync.Mutex
}

// NewWorkflowService creates a new workflow service with dependencies
func NewWorkflowService(
	sheets domain.SheetSource,
	notifier domain.Notifier,
	store domain.CacheRepository,
	matcher *MatchingService,
	clock clockwork.Clock,
	config WorkflowServiceConfig,
) *WorkflowService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	loc := config.Location
	if loc == nil {
		loc = time.UTC
	}

	worksheets := make(map[domain.Workflow]string, len(DefaultWorksheets))
	for wf, name := range DefaultWorksheets {
		worksheets[wf] = name
	}
	for wf, name := range config.Worksheets {
		if name != "" {
			worksheets[wf] = name
		}
	}

	daysOffset := map[domain.Workflow]int{domain.WorkflowDeviations: 1}
	for wf, days := range config.DaysOffset {
		daysOffset[wf] = days
	}

	runTTL := config.RunTTL
	if runTTL == 0 {
		runTTL = 24 * time.Hour
	}

	ledgerTTL := config.LedgerTTL
	if ledgerTTL == 0 {
		ledgerTTL = 720 * time.Hour // Default 30 days
	}

	return &WorkflowService{
		sheets:     sheets,
		notifier:   notifier,
		store:      store,
		matcher:    matcher,
		parser:     NewWorkItemParser(config.BackofficeURL, loc),
		clock:      clock,
		worksheets: worksheets,
		daysOffset: daysOffset,
		location:   loc,
		runTTL:     runTTL,
		ledgerTTL:  ledgerTTL,
	}
}

// StartRun announces a run, reads the workflow's worksheet and returns the pending work items.
// Items already in the processed ledger are left out and listed in Plan.Skipped.
func (s *WorkflowService) StartRun(ctx context.Context, workflow domain.Workflow) (*domain.Run, *domain.Plan, error) {
	if _, err := domain.ParseWorkflow(string(workflow)); err != nil {
		return nil, nil, err
	}

	worksheet := s.worksheets[workflow]
	now := s.clock.Now().In(s.location)
	day := now.AddDate(0, 0, -s.daysOffset[workflow])

	s.notify(ctx, fmt.Sprintf("🚀 El proceso de %s ha comenzado.", workflow.DisplayName()))

	rows, err := s.sheets.Rows(ctx, worksheet)
	if err != nil {
		s.notify(ctx, fmt.Sprintf("❌ No se pudo leer la hoja %q del proceso de %s", worksheet, workflow.DisplayName()))
		if errors.Is(err, domain.ErrSheetFailure) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrSheetFailure, err)
	}

	plan, err := s.buildPlan(ctx, workflow, rows, day)
	if err != nil {
		return nil, nil, err
	}

	run := &domain.Run{
		ID:        uuid.NewString(),
		Workflow:  workflow,
		StartedAt: now,
		Counts: domain.RunCounts{
			Planned: plan.ItemCount(),
			Skipped: len(plan.Skipped),
		},
	}

	if err := s.saveRun(ctx, run); err != nil {
		return nil, nil, err
	}

	log.Info().
		Str("component", "workflow").
		Str("run", run.ID).
		Str("workflow", string(workflow)).
		Str("worksheet", worksheet).
		Time("day", day).
		Int("planned", run.Counts.Planned).
		Int("skipped", run.Counts.Skipped).
		Int("rejected", len(plan.Rejected)).
		Msg("run started")

	return run, plan, nil
}

// buildPlan parses rows for the workflow and drops items found in the ledger
func (s *WorkflowService) buildPlan(
	ctx context.Context,
	workflow domain.Workflow,
	rows [][]string,
	day time.Time,
) (*domain.Plan, error) {
	plan := &domain.Plan{Workflow: workflow}

	switch workflow {
	case domain.WorkflowDeviations:
		items, rejected := s.parser.ParseDeviations(rows, day)
		plan.Rejected = rejected
		for _, item := range items {
			done, err := s.isProcessed(ctx, workflow, item.OrderID, item.Product)
			if err != nil {
				return nil, err
			}
			if done {
				plan.Skipped = append(plan.Skipped, item.OrderID)
				continue
			}
			plan.Deviations = append(plan.Deviations, item)
		}

	case domain.WorkflowCancellations:
		items, rejected := s.parser.ParseCancellations(rows)
		plan.Rejected = rejected
		for _, r := range rejected {
			s.notify(ctx, fmt.Sprintf("❌ No se encontró un ID válido en la fila %d", r.Row))
		}
		for _, item := range items {
			done, err := s.isProcessed(ctx, workflow, item.OrderID, "")
			if err != nil {
				return nil, err
			}
			if done {
				plan.Skipped = append(plan.Skipped, item.OrderID)
				continue
			}
			plan.Cancellations = append(plan.Cancellations, item)
		}

	case domain.WorkflowClaims:
		orders, marked, rejected := s.parser.ParseClaims(rows, day)
		plan.Rejected = rejected
		plan.Skipped = append(plan.Skipped, marked...)
		for _, order := range orders {
			done, err := s.isProcessed(ctx, workflow, order.OrderID, "")
			if err != nil {
				return nil, err
			}
			if done {
				plan.Skipped = append(plan.Skipped, order.OrderID)
				continue
			}
			plan.Claims = append(plan.Claims, order)
		}
	}

	return plan, nil
}

// GetRun returns a stored run
func (s *WorkflowService) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	return s.loadRun(ctx, runID)
}

// MatchInRun locates product among the order's line items.
// A miss is counted on the run, reported to chat and returned as domain.ErrNoMatch.
func (s *WorkflowService) MatchInRun(
	ctx context.Context,
	runID string,
	orderID string,
	product string,
	candidates []domain.MatchCandidate,
) (domain.MatchResult, error) {
	run, err := s.loadOpenRun(ctx, runID)
	if err != nil {
		return domain.NoMatchResult(), err
	}

	result, err := s.matcher.FindBestMatch(ctx, product, candidates)
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, domain.ErrNoMatch) {
		return result, err
	}

	if _, err := s.updateRun(ctx, run.ID, func(r *domain.Run) { r.Counts.NoMatch++ }); err != nil {
		return result, err
	}
	s.notify(ctx, fmt.Sprintf("❌ Producto '%s' no encontrado en pedido %s", product, orderID))

	return result, domain.ErrNoMatch
}

// RecordOutcome stores what the client did with a work item.
// Completed items enter the processed ledger; failures are reported to chat.
func (s *WorkflowService) RecordOutcome(ctx context.Context, runID string, outcome domain.Outcome) (*domain.Run, error) {
	if outcome.OrderID == "" {
		return nil, domain.ErrInvalidRequest
	}

	run, err := s.loadOpenRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	var apply func(r *domain.Run)
	var message string

	switch outcome.Status {
	case domain.OutcomeDone:
		apply = func(r *domain.Run) { r.Counts.Done++ }
		if run.Workflow == domain.WorkflowCancellations {
			message = fmt.Sprintf("✅ Pedido %s cancelado con motivo '%s'", outcome.OrderID, domain.ReasonPrepaid)
		}
	case domain.OutcomeNoMatch:
		apply = func(r *domain.Run) { r.Counts.NoMatch++ }
		message = fmt.Sprintf("❌ Producto '%s' no encontrado en pedido %s", outcome.Product, outcome.OrderID)
	case domain.OutcomeFailed:
		apply = func(r *domain.Run) { r.Counts.Failed++ }
		message = fmt.Sprintf("❌ Error procesando el pedido %s", outcome.OrderID)
		if outcome.Detail != "" {
			message += ": " + outcome.Detail
		}
	default:
		return nil, fmt.Errorf("%w: unknown outcome status %q", domain.ErrInvalidRequest, outcome.Status)
	}

	updated, err := s.updateRun(ctx, run.ID, apply)
	if err != nil {
		return nil, err
	}

	// ledger after the count is stored
	if outcome.Status == domain.OutcomeDone {
		if err := s.markProcessed(ctx, run.Workflow, outcome.OrderID, outcome.Product); err != nil {
			return nil, err
		}
	}

	log.Info().
		Str("component", "workflow").
		Str("run", run.ID).
		Str("order", outcome.OrderID).
		Str("product", outcome.Product).
		Str("status", string(outcome.Status)).
		Msg("outcome recorded")

	if message != "" {
		s.notify(ctx, message)
	}

	return updated, nil
}

// FinishRun closes a run and posts its summary
func (s *WorkflowService) FinishRun(ctx context.Context, runID string) (*domain.Run, error) {
	if _, err := s.loadOpenRun(ctx, runID); err != nil {
		return nil, err
	}

	run, err := s.updateRun(ctx, runID, func(r *domain.Run) {
		finished := s.clock.Now().In(s.location)
		r.FinishedAt = &finished
	})
	if err != nil {
		return nil, err
	}

	c := run.Counts
	s.notify(ctx, fmt.Sprintf(
		"✅ Proceso de %s finalizado: %d ok, %d sin coincidencia, %d con error, %d omitidos (%d planificados)",
		run.Workflow.DisplayName(), c.Done, c.NoMatch, c.Failed, c.Skipped, c.Planned,
	))

	log.Info().
		Str("component", "workflow").
		Str("run", run.ID).
		Interface("counts", c).
		Msg("run finished")

	return run, nil
}

// notify posts to chat; failures are logged and never stop the batch
func (s *WorkflowService) notify(ctx context.Context, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, message); err != nil {
		log.Warn().
			Err(err).
			Str("component", "workflow").
			Str("message", message).
			Msg("chat notification failed")
	}
}

func (s *WorkflowService) loadOpenRun(ctx context.Context, runID string) (*domain.Run, error) {
	run, err := s.loadRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Finished() {
		return nil, domain.ErrRunFinished
	}
	return run, nil
}

func (s *WorkflowService) loadRun(ctx context.Context, runID string) (*domain.Run, error) {
	if runID == "" {
		return nil, domain.ErrRunNotFound
	}

	data, err := s.store.Get(ctx, runKey(runID))
	if errors.Is(err, domain.ErrCacheMiss) {
		return nil, domain.ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}

	var run domain.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", runID, err)
	}
	return &run, nil
}

func (s *WorkflowService) saveRun(ctx context.Context, run *domain.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run %s: %w", run.ID, err)
	}
	return s.store.Set(ctx, runKey(run.ID), data, s.runTTL)
}

// updateRun applies fn to the stored run under the service lock and returns the saved run.
// A run finished by a concurrent call is rejected with domain.ErrRunFinished.
func (s *WorkflowService) updateRun(ctx context.Context, runID string, fn func(r *domain.Run)) (*domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, err := s.loadOpenRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	fn(run)
	if err := s.saveRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *WorkflowService) isProcessed(ctx context.Context, workflow domain.Workflow, orderID, product string) (bool, error) {
	return s.store.Exists(ctx, ledgerKey(workflow, orderID, product))
}

func (s *WorkflowService) markProcessed(ctx context.Context, workflow domain.Workflow, orderID, product string) error {
	stamp := []byte(s.clock.Now().UTC().Format(time.RFC3339))
	return s.store.Set(ctx, ledgerKey(workflow, orderID, product), stamp, s.ledgerTTL)
}

func runKey(runID string) string {
	return "run:" + runID
}

// ledgerKey creates a normalized ledger key.
// Deviations are tracked per line item, the other workflows per order.
// Format: "processed:{workflow}:{order}[:{normalized_product}]"
func ledgerKey(workflow domain.Workflow, orderID, product string) string {
	key := fmt.Sprintf("processed:%s:%s", workflow, strings.TrimSpace(orderID))
	if workflow != domain.WorkflowDeviations {
		return key
	}
	if p := normalizeForKey(product); p != "" {
		key += ":" + p
	}
	return key
}

// normalizeForKey lowercases, strips punctuation and collapses whitespace
func normalizeForKey(s string) string {
	return strings.Join(strings.Fields(cleanText(s)), " ")
}
