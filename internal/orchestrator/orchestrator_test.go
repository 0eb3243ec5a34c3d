package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ryanmello/lilli/internal/classifier"
	"github.com/ryanmello/lilli/internal/dispatch"
	"github.com/ryanmello/lilli/internal/handler"
	"github.com/ryanmello/lilli/internal/llm"
	"github.com/ryanmello/lilli/internal/metrics"
	"github.com/ryanmello/lilli/internal/registry"
	"github.com/ryanmello/lilli/internal/state"
	"github.com/ryanmello/lilli/pkg/models"
)

var shopShape = models.OutputShape{Fields: []models.FieldSpec{
	{Name: "message", Type: models.FieldString, Required: true},
	{Name: "flower", Type: models.FieldString},
}}

// fixture is a flower-shop registry whose handlers echo their query.
type fixture struct {
	mu       sync.Mutex
	fail     map[string]error
	inFlight map[string]int
	maxSeen  map[string]int
	hold     time.Duration
}

func newFixture() *fixture {
	return &fixture{
		fail:     make(map[string]error),
		inFlight: make(map[string]int),
		maxSeen:  make(map[string]int),
	}
}

func (f *fixture) handler(name string, deps []string, remember ...string) handler.Handler {
	return handler.Func{
		Def: models.HandlerDefinition{
			Name:        name,
			Description: name + " handler",
			OutputShape: shopShape,
			DependsOn:   deps,
			Remember:    remember,
		},
		Fn: func(ctx context.Context, in handler.Input) (json.RawMessage, error) {
			key := in.RequestText[:strings.Index(in.RequestText, ":")+1]
			f.mu.Lock()
			err := f.fail[name]
			f.inFlight[key]++
			if f.inFlight[key] > f.maxSeen[key] {
				f.maxSeen[key] = f.inFlight[key]
			}
			hold := f.hold
			f.mu.Unlock()

			if hold > 0 {
				time.Sleep(hold)
			}
			f.mu.Lock()
			f.inFlight[key]--
			f.mu.Unlock()

			if err != nil {
				return nil, err
			}
			out := map[string]any{"message": name + " answered " + in.Query}
			if name == "inventory" {
				out["flower"] = "roses"
			}
			return json.Marshal(out)
		},
	}
}

func (f *fixture) registry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.Build([]handler.Handler{
		f.handler("general", nil),
		f.handler("clarification", nil),
		f.handler("design", nil),
		f.handler("inventory", nil, "flower"),
		f.handler("delivery", nil),
		f.handler("pricing", []string{"design"}),
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return reg
}

// router routes by keyword in the request text.
func router() *llm.ScriptedCompleter {
	return llm.NewScriptedCompleter().Fallback(func(req llm.Request) (json.RawMessage, error) {
		if req.Name != classifier.RequestName {
			return nil, fmt.Errorf("unexpected request %q", req.Name)
		}
		text := strings.ToLower(classifier.RequestFromPrompt(req.User))
		decision := map[string]any{"primary_handler": "general", "confidence": 0.9}
		switch {
		case strings.Contains(text, "unsure"):
			decision = map[string]any{"primary_handler": "inventory", "confidence": 0.3}
		case strings.Contains(text, "price"):
			decision = map[string]any{"primary_handler": "pricing", "confidence": 0.8}
		case strings.Contains(text, "roses"):
			decision = map[string]any{"primary_handler": "inventory", "confidence": 0.95}
		}
		return json.Marshal(decision)
	})
}

func newTestOrchestrator(t *testing.T, f *fixture, opts ...Option) *Orchestrator {
	t.Helper()
	orch, err := New(RequiredConfig{Registry: f.registry(t), Completer: router()}, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { orch.Close() })
	return orch
}

func TestNew_RequiresRoutingHandlers(t *testing.T) {
	reg, err := registry.Build([]handler.Handler{newFixture().handler("general", nil)})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	_, err = New(RequiredConfig{Registry: reg, Completer: router()})
	var unknown *registry.UnknownHandlerError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownHandlerError, got %v", err)
	}
	if unknown.Name != "clarification" {
		t.Errorf("unknown handler = %q, want clarification", unknown.Name)
	}

	if _, err := New(RequiredConfig{Registry: reg}); err == nil {
		t.Error("expected error without a completer")
	}
}

func TestHandleTurn_SingleHandler(t *testing.T) {
	orch := newTestOrchestrator(t, newFixture())
	ctx := context.Background()

	resp, err := orch.HandleTurn(ctx, "s1", "s1: Do you have red roses?")
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if resp.Message != "inventory answered s1: Do you have red roses?" {
		t.Errorf("message = %q", resp.Message)
	}
	if resp.Partial {
		t.Error("expected a complete response")
	}

	snap, err := orch.ExportState(ctx, "s1")
	if err != nil {
		t.Fatalf("ExportState failed: %v", err)
	}
	if len(snap.Turns) != 1 {
		t.Fatalf("turns = %d, want 1", len(snap.Turns))
	}
	turn := snap.Turns[0]
	if turn.Decision.PrimaryHandler != "inventory" {
		t.Errorf("recorded primary = %q", turn.Decision.PrimaryHandler)
	}
	if turn.ID == "" || turn.Timestamp.IsZero() {
		t.Error("expected turn ID and timestamp to be set")
	}
}

func TestHandleTurn_ReplyDoesNotAliasRecordedTurn(t *testing.T) {
	orch := newTestOrchestrator(t, newFixture())
	ctx := context.Background()

	resp, err := orch.HandleTurn(ctx, "s1", "s1: Do you have red roses?")
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if resp.Merged["flower"] != "roses" {
		t.Fatalf("merged = %v, want flower=roses", resp.Merged)
	}

	resp.Outputs[0].Data["flower"] = "tulips"
	resp.Merged["flower"] = "tulips"
	resp.Missing = append(resp.Missing, "delivery")

	snap, err := orch.ExportState(ctx, "s1")
	if err != nil {
		t.Fatalf("ExportState failed: %v", err)
	}
	turn := snap.Turns[0]
	if got := turn.FinalResponse.Outputs[0].Data["flower"]; got != "roses" {
		t.Errorf("recorded reply output flower = %v, want roses", got)
	}
	if got := turn.FinalResponse.Merged["flower"]; got != "roses" {
		t.Errorf("recorded merged flower = %v, want roses", got)
	}
	if got := turn.HandlerOutputs[0].Data["flower"]; got != "roses" {
		t.Errorf("recorded handler output flower = %v, want roses", got)
	}
	if len(turn.FinalResponse.Missing) != 0 {
		t.Errorf("recorded missing = %v, want none", turn.FinalResponse.Missing)
	}
}

func TestHandleTurn_WindowKeepsNewestTurns(t *testing.T) {
	orch := newTestOrchestrator(t, newFixture(), WithWindowSize(10))
	ctx := context.Background()

	for i := 1; i <= 11; i++ {
		if _, err := orch.HandleTurn(ctx, "s1", fmt.Sprintf("s1: question %d", i)); err != nil {
			t.Fatalf("turn %d failed: %v", i, err)
		}
	}

	snap, err := orch.ExportState(ctx, "s1")
	if err != nil {
		t.Fatalf("ExportState failed: %v", err)
	}
	if len(snap.Turns) != 10 {
		t.Fatalf("turns = %d, want 10", len(snap.Turns))
	}
	if got := snap.Turns[0].RequestText; got != "s1: question 2" {
		t.Errorf("oldest turn = %q, want question 2", got)
	}
	if got := snap.Turns[9].RequestText; got != "s1: question 11" {
		t.Errorf("newest turn = %q, want question 11", got)
	}
}

func TestHandleTurn_LowConfidenceAsksForClarification(t *testing.T) {
	orch := newTestOrchestrator(t, newFixture())

	resp, err := orch.HandleTurn(context.Background(), "s1", "s1: unsure what I want")
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if len(resp.Outputs) != 1 || resp.Outputs[0].Handler != "clarification" {
		t.Errorf("outputs = %+v, want clarification only", resp.Outputs)
	}
}

func TestHandleTurn_ClassificationFailure(t *testing.T) {
	f := newFixture()
	completer := llm.NewScriptedCompleter().On(classifier.RequestName, llm.Reply{Err: errors.New("model unavailable")})
	orch, err := New(RequiredConfig{Registry: f.registry(t), Completer: completer})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer orch.Close()
	ctx := context.Background()

	resp, err := orch.HandleTurn(ctx, "s1", "s1: hello")
	if !errors.Is(err, ErrTurnFailed) {
		t.Fatalf("expected ErrTurnFailed, got %v", err)
	}
	var ce *classifier.ClassificationError
	if !errors.As(err, &ce) {
		t.Errorf("expected ClassificationError in chain, got %v", err)
	}
	if resp.Message != FallbackMessage {
		t.Errorf("message = %q, want fallback message", resp.Message)
	}

	snap, err := orch.ExportState(ctx, "s1")
	if err != nil {
		t.Fatalf("ExportState failed: %v", err)
	}
	if len(snap.Turns) != 0 {
		t.Errorf("failed turn was recorded: %d turns", len(snap.Turns))
	}
}

func TestHandleTurn_PartialTurnIsRecorded(t *testing.T) {
	f := newFixture()
	f.fail["pricing"] = errors.New("price list unavailable")
	orch := newTestOrchestrator(t, f)
	ctx := context.Background()

	resp, err := orch.HandleTurn(ctx, "s1", "s1: what's the price of a bouquet?")
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if !resp.Partial {
		t.Error("expected a partial response")
	}
	if !reflect.DeepEqual(resp.Missing, []string{"pricing"}) {
		t.Errorf("missing = %v, want [pricing]", resp.Missing)
	}
	if _, ok := resp.Output("design"); !ok {
		t.Error("expected design output to survive")
	}

	snap, err := orch.ExportState(ctx, "s1")
	if err != nil {
		t.Fatalf("ExportState failed: %v", err)
	}
	if len(snap.Turns) != 1 || !snap.Turns[0].FinalResponse.Partial {
		t.Errorf("expected the partial turn to be recorded, got %+v", snap.Turns)
	}
}

func TestHandleTurn_NoOutputsFails(t *testing.T) {
	f := newFixture()
	cause := errors.New("design service down")
	f.fail["design"] = cause
	orch := newTestOrchestrator(t, f)
	ctx := context.Background()

	resp, err := orch.HandleTurn(ctx, "s1", "s1: what's the price?")
	if !errors.Is(err, ErrTurnFailed) {
		t.Fatalf("expected ErrTurnFailed, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected handler cause in chain, got %v", err)
	}
	var failure *dispatch.HandlerFailure
	if !errors.As(err, &failure) || failure.Handler != "design" {
		t.Errorf("expected HandlerFailure for design, got %v", err)
	}
	if resp.Message != FallbackMessage {
		t.Errorf("message = %q", resp.Message)
	}

	snap, _ := orch.ExportState(ctx, "s1")
	if len(snap.Turns) != 0 {
		t.Errorf("failed turn was recorded")
	}
}

func TestHandleTurn_EmptySessionID(t *testing.T) {
	orch := newTestOrchestrator(t, newFixture())

	_, err := orch.HandleTurn(context.Background(), "  ", "hello")
	if !errors.Is(err, ErrEmptySessionID) {
		t.Errorf("expected ErrEmptySessionID, got %v", err)
	}
}

func TestHandleTurn_RemembersDeclaredFields(t *testing.T) {
	completer := router()
	f := newFixture()
	orch, err := New(RequiredConfig{Registry: f.registry(t), Completer: completer})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer orch.Close()
	ctx := context.Background()

	if _, err := orch.HandleTurn(ctx, "s1", "s1: any roses?"); err != nil {
		t.Fatalf("first turn failed: %v", err)
	}
	snap, _ := orch.ExportState(ctx, "s1")
	if snap.Attributes["flower"] != "roses" {
		t.Errorf("flower attribute = %q, want roses", snap.Attributes["flower"])
	}

	if _, err := orch.HandleTurn(ctx, "s1", "s1: and delivery?"); err != nil {
		t.Fatalf("second turn failed: %v", err)
	}
	calls := completer.Calls()
	last := calls[len(calls)-1].User
	if !strings.Contains(last, "- flower: roses") {
		t.Errorf("classifier prompt missing remembered fact:\n%s", last)
	}
	if !strings.Contains(last, "s1: any roses?") {
		t.Errorf("classifier prompt missing history:\n%s", last)
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	source := newTestOrchestrator(t, newFixture())
	for _, q := range []string{"s1: roses?", "s1: hello"} {
		if _, err := source.HandleTurn(ctx, "s1", q); err != nil {
			t.Fatalf("HandleTurn failed: %v", err)
		}
	}
	snap, err := source.ExportState(ctx, "s1")
	if err != nil {
		t.Fatalf("ExportState failed: %v", err)
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var decoded models.Snapshot
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	target := newTestOrchestrator(t, newFixture())
	if err := target.ImportState(ctx, "s1", decoded); err != nil {
		t.Fatalf("ImportState failed: %v", err)
	}
	got, err := target.ExportState(ctx, "s1")
	if err != nil {
		t.Fatalf("ExportState failed: %v", err)
	}
	if len(got.Turns) != 2 || got.Turns[1].RequestText != "s1: hello" {
		t.Errorf("imported turns = %+v", got.Turns)
	}
	if got.Attributes["flower"] != "roses" {
		t.Errorf("imported attributes = %v", got.Attributes)
	}

	if err := target.ImportState(ctx, "other", decoded); err == nil {
		t.Error("expected error importing a snapshot into a different session")
	}
}

func TestExportState_UnknownSession(t *testing.T) {
	orch := newTestOrchestrator(t, newFixture())

	_, err := orch.ExportState(context.Background(), "nobody")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSnapshotStore_RestoresSessions(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()

	first := newTestOrchestrator(t, newFixture(), WithSnapshotStore(store))
	if _, err := first.HandleTurn(ctx, "s1", "s1: roses please"); err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}

	saved, err := store.Load(ctx, "s1")
	if err != nil || saved == nil {
		t.Fatalf("expected snapshot in store, got %v, %v", saved, err)
	}
	if len(saved.Turns) != 1 {
		t.Errorf("stored turns = %d, want 1", len(saved.Turns))
	}

	second := newTestOrchestrator(t, newFixture(), WithSnapshotStore(store))
	snap, err := second.ExportState(ctx, "s1")
	if err != nil {
		t.Fatalf("ExportState from store failed: %v", err)
	}
	if len(snap.Turns) != 1 {
		t.Errorf("exported turns = %d, want 1", len(snap.Turns))
	}

	if _, err := second.HandleTurn(ctx, "s1", "s1: hello again"); err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	snap, _ = second.ExportState(ctx, "s1")
	if len(snap.Turns) != 2 || snap.Attributes["flower"] != "roses" {
		t.Errorf("restored session = %d turns, attributes %v", len(snap.Turns), snap.Attributes)
	}

	if err := second.CloseSession(ctx, "s1"); err != nil {
		t.Fatalf("CloseSession failed: %v", err)
	}
	if got, _ := store.Load(ctx, "s1"); got != nil {
		t.Error("expected CloseSession to delete the stored snapshot")
	}
	if ids := second.Sessions(); len(ids) != 0 {
		t.Errorf("sessions after close = %v", ids)
	}
}

// failingStore fails every load.
type failingStore struct {
	state.SnapshotStore
}

func (failingStore) Load(ctx context.Context, sessionID string) (*models.Snapshot, error) {
	return nil, errors.New("disk on fire")
}

func TestHandleTurn_StoreLoadFailure(t *testing.T) {
	orch := newTestOrchestrator(t, newFixture(), WithSnapshotStore(failingStore{state.NewMemoryStore()}))

	_, err := orch.HandleTurn(context.Background(), "s1", "s1: hello")
	if !errors.Is(err, ErrTurnFailed) {
		t.Fatalf("expected ErrTurnFailed, got %v", err)
	}
	if ids := orch.Sessions(); len(ids) != 0 {
		t.Errorf("session kept after failed load: %v", ids)
	}
}

func TestEvictIdle(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	store := state.NewMemoryStore()
	orch := newTestOrchestrator(t, newFixture(), WithClock(clock), WithSnapshotStore(store))
	ctx := context.Background()

	if _, err := orch.HandleTurn(ctx, "old", "old: hello"); err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	advance(20 * time.Minute)
	if _, err := orch.HandleTurn(ctx, "new", "new: hello"); err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	advance(5 * time.Minute)

	evicted := orch.EvictIdle(15 * time.Minute)
	if !reflect.DeepEqual(evicted, []string{"old"}) {
		t.Errorf("evicted = %v, want [old]", evicted)
	}
	if got := orch.Sessions(); !reflect.DeepEqual(got, []string{"new"}) {
		t.Errorf("sessions = %v, want [new]", got)
	}

	// The evicted session comes back from the store on its next turn.
	if _, err := orch.HandleTurn(ctx, "old", "old: back again"); err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	snap, _ := orch.ExportState(ctx, "old")
	if len(snap.Turns) != 2 {
		t.Errorf("restored turns = %d, want 2", len(snap.Turns))
	}
}

func TestRunEviction(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	orch := newTestOrchestrator(t, newFixture(), WithClock(clock))
	ctx, cancel := context.WithCancel(context.Background())

	if _, err := orch.HandleTurn(ctx, "idle", "idle: hello"); err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	mu.Lock()
	now = now.Add(time.Hour)
	mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		orch.RunEviction(ctx, 30*time.Minute, 5*time.Millisecond)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for len(orch.Sessions()) > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("idle session never evicted, sessions = %v", orch.Sessions())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunEviction did not stop after cancel")
	}
}

func TestRunEviction_DisabledReturnsImmediately(t *testing.T) {
	orch := newTestOrchestrator(t, newFixture())

	done := make(chan struct{})
	go func() {
		defer close(done)
		orch.RunEviction(context.Background(), 0, time.Millisecond)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunEviction with no idle timeout should return")
	}
}

func TestHandleTurn_ConcurrentSessions(t *testing.T) {
	f := newFixture()
	f.hold = 2 * time.Millisecond
	orch := newTestOrchestrator(t, f, WithEventBuffer(0))
	ctx := context.Background()

	const sessions, turns = 8, 5
	var wg sync.WaitGroup
	var failures atomic.Int32
	for s := 0; s < sessions; s++ {
		id := fmt.Sprintf("s%d", s)
		for i := 0; i < turns; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, err := orch.HandleTurn(ctx, id, fmt.Sprintf("%s: question %d", id, i)); err != nil {
					failures.Add(1)
				}
			}(i)
		}
	}
	wg.Wait()

	if n := failures.Load(); n != 0 {
		t.Fatalf("%d turns failed", n)
	}
	for s := 0; s < sessions; s++ {
		id := fmt.Sprintf("s%d", s)
		snap, err := orch.ExportState(ctx, id)
		if err != nil {
			t.Fatalf("ExportState(%s) failed: %v", id, err)
		}
		if len(snap.Turns) != turns {
			t.Errorf("%s has %d turns, want %d", id, len(snap.Turns), turns)
		}
		f.mu.Lock()
		maxSeen := f.maxSeen[id+":"]
		f.mu.Unlock()
		if maxSeen != 1 {
			t.Errorf("%s ran %d handlers at once, want 1", id, maxSeen)
		}
	}
	if got := len(orch.Sessions()); got != sessions {
		t.Errorf("sessions = %d, want %d", got, sessions)
	}
}

func TestHandleTurn_Events(t *testing.T) {
	orch := newTestOrchestrator(t, newFixture())

	if _, err := orch.HandleTurn(context.Background(), "s1", "s1: what's the price?"); err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	orch.Close()

	var types []EventType
	var handlers []string
	for ev := range orch.Events() {
		types = append(types, ev.Type)
		if ev.Handler != "" {
			handlers = append(handlers, ev.Handler)
		}
		if ev.SessionID != "s1" {
			t.Errorf("event %s has session %q", ev.Type, ev.SessionID)
		}
	}

	wantTypes := []EventType{
		EventTurnStarted,
		EventTurnClassified,
		EventHandlerCompleted,
		EventHandlerCompleted,
		EventTurnCompleted,
	}
	if !reflect.DeepEqual(types, wantTypes) {
		t.Errorf("event types = %v, want %v", types, wantTypes)
	}
	if !reflect.DeepEqual(handlers, []string{"design", "pricing"}) {
		t.Errorf("handler events = %v, want [design pricing]", handlers)
	}
}

func TestHandleTurn_Metrics(t *testing.T) {
	f := newFixture()
	m := metrics.New()
	orch := newTestOrchestrator(t, f, WithMetrics(m), WithParallelDispatch(true))
	ctx := context.Background()

	if _, err := orch.HandleTurn(ctx, "s1", "s1: roses?"); err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	f.mu.Lock()
	f.fail["general"] = errors.New("boom")
	f.mu.Unlock()
	if _, err := orch.HandleTurn(ctx, "s1", "s1: hello"); err == nil {
		t.Fatal("expected failed turn")
	}

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	counts := make(map[string]float64)
	for _, mf := range families {
		if mf.GetName() != "lilli_turns_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "status" {
					counts[label.GetValue()] = metric.GetCounter().GetValue()
				}
			}
		}
	}
	if counts[metrics.StatusOK] != 1 || counts[metrics.StatusFailed] != 1 {
		t.Errorf("turn counts = %v, want ok=1 failed=1", counts)
	}
}
