package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/roach88/vstore/internal/codec"
	"github.com/roach88/vstore/internal/maybe"
	"github.com/roach88/vstore/internal/store"
)

// ErrorLatchNotFound is the Expect.Error code for store.ErrLatchNotFound.
const ErrorLatchNotFound = "LATCH_NOT_FOUND"

// settleMarker is published after the last step; every message before it
// has been delivered once it arrives.
const settleMarker = "--harness-settle--"

const settleTimeout = 5 * time.Second

// Harness executes scenario steps against one client.
type Harness struct {
	client *store.Client
	logger *slog.Logger

	mu        sync.Mutex
	published []string
	settled   chan struct{}
	once      sync.Once
}

// Run executes a scenario against a fresh in-process Redis and returns the
// result.
//
// Execution flow:
// 1. Start an empty server and a client configured from the scenario
// 2. Subscribe to the collection's change channel
// 3. Execute steps, checking expectations
// 4. Wait until every published message has been delivered
// 5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	mr, err := miniredis.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start in-process redis: %w", err)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts := []store.Option{
		store.WithLogger(logger),
		store.WithUnsubscribeTimeout(time.Second),
	}
	if scenario.InternalPrefix != nil {
		opts = append(opts, store.WithInternalPrefix(*scenario.InternalPrefix))
	}
	client := store.New(rdb, opts...)
	defer client.Close()

	return RunWith(context.Background(), client, scenario)
}

// RunWith executes a scenario against an existing client, logging through
// the client's logger. The collection and latches it names should be empty
// beforehand.
func RunWith(ctx context.Context, client *store.Client, scenario *Scenario) (*Result, error) {
	h := &Harness{
		client:  client,
		logger:  client.Logger(),
		settled: make(chan struct{}),
	}

	channel := store.ChangeChannel(scenario.Collection)
	sub, err := client.Subscribe(ctx, channel, h.record)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}
	defer sub.Close()

	result := NewResult()
	for i, step := range scenario.Steps {
		event, err := h.execute(ctx, scenario.Collection, i+1, step)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s %s): %w", i+1, step.Op, step.ID, err)
		}
		checkExpect(result, event, step.Expect)
		result.Trace = append(result.Trace, event)
	}

	if err := h.settle(ctx, channel); err != nil {
		return nil, err
	}
	h.mu.Lock()
	result.Published = append(result.Published, h.published...)
	h.mu.Unlock()

	actx := &AssertionContext{Ctx: ctx, Client: client, Collection: scenario.Collection}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) record(_, message string) {
	if message == settleMarker {
		h.once.Do(func() { close(h.settled) })
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.published = append(h.published, message)
}

func (h *Harness) settle(ctx context.Context, channel string) error {
	if _, err := h.client.Publish(ctx, channel, settleMarker); err != nil {
		return fmt.Errorf("failed to publish settle marker: %w", err)
	}
	select {
	case <-h.settled:
		return nil
	case <-time.After(settleTimeout):
		return fmt.Errorf("change channel %s did not settle within %s", channel, settleTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// execute runs one step. Errors matching store error codes are recorded in
// the event; everything else aborts the run unless expected.
func (h *Harness) execute(ctx context.Context, collection string, n int, step Step) (TraceEvent, error) {
	event := TraceEvent{Step: n, Op: step.Op, ID: step.ID}

	err := h.apply(ctx, collection, step, &event)
	if err == nil {
		return event, nil
	}
	code := errorCode(err)
	if step.Expect == nil || step.Expect.Error == "" || code == "" {
		return event, err
	}

	h.logger.Debug("step failed as expected",
		"step", n,
		"op", step.Op,
		"code", code,
	)
	return TraceEvent{Step: n, Op: step.Op, ID: step.ID, Error: code}, nil
}

func (h *Harness) apply(ctx context.Context, collection string, step Step, event *TraceEvent) error {
	switch step.Op {
	case OpLatchInit, OpLatchDecrement:
		return h.applyLatch(ctx, step, event)
	}

	e, err := h.client.Entity(collection, step.ID)
	if err != nil {
		return err
	}

	switch step.Op {
	case OpTouch:
		mod, err := e.CheckedTouch(ctx)
		if err != nil {
			return err
		}
		event.Inserted = ptr(mod.Inserted)
		event.Version = mod.Version
		event.Payload = payload(mod.Payload)

	case OpSet:
		res, err := e.CheckedSetAll(ctx, step.Fields)
		if err != nil {
			return err
		}
		recordModification(event, res)

	case OpClear:
		res, err := e.CheckedClear(ctx, step.Names...)
		if err != nil {
			return err
		}
		recordModification(event, res)

	case OpDelete:
		deleted, err := e.CheckedDelete(ctx)
		if err != nil {
			return err
		}
		event.Deleted = ptr(deleted)

	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}

func (h *Harness) applyLatch(ctx context.Context, step Step, event *TraceEvent) error {
	l, err := h.client.Latch(step.ID)
	if err != nil {
		return err
	}

	if step.Op == OpLatchInit {
		names := make([]string, 0, len(step.Fields))
		for name := range step.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		args := make([]any, 0, 2*len(names))
		for _, name := range names {
			args = append(args, name, step.Fields[name])
		}
		return l.Init(ctx, step.Count, args...)
	}

	res, err := l.Decrement(ctx, step.Names...)
	if err != nil {
		return err
	}
	values, released := res.Get()
	event.Released = ptr(released)
	if released && len(values) > 0 {
		event.Values = make(map[string]json.RawMessage, len(values))
		for _, v := range values {
			event.Values[v.Field()] = rawJSON(v)
		}
	}
	return nil
}

func recordModification(event *TraceEvent, res maybe.Maybe[store.Modification]) {
	mod, ok := res.Get()
	event.Modified = ptr(ok)
	if !ok {
		return
	}
	event.Inserted = ptr(mod.Inserted)
	event.Version = mod.Version
	event.Payload = payload(mod.Payload)
	for _, mv := range mod.Diff {
		event.Diff = append(event.Diff, DiffEntry{
			Field:  mv.Field,
			Before: rawJSON(mv.Before),
			After:  rawJSON(mv.After),
		})
	}
}

// checkExpect compares an event with the step's expectations.
func checkExpect(result *Result, event TraceEvent, expect *Expect) {
	if expect == nil {
		return
	}
	fail := func(what string, want, got any) {
		result.AddError(fmt.Sprintf("step %d (%s %s): expected %s %v, got %v",
			event.Step, event.Op, event.ID, what, want, got))
	}

	if expect.Error != "" || event.Error != "" {
		if expect.Error != event.Error {
			fail("error", quoted(expect.Error), quoted(event.Error))
		}
		return
	}
	if expect.Modified != nil && (event.Modified == nil || *event.Modified != *expect.Modified) {
		fail("modified", *expect.Modified, deref(event.Modified))
	}
	if expect.Inserted != nil && (event.Inserted == nil || *event.Inserted != *expect.Inserted) {
		fail("inserted", *expect.Inserted, deref(event.Inserted))
	}
	if expect.Version != nil && event.Version != *expect.Version {
		fail("version", *expect.Version, event.Version)
	}
	if expect.Payload != nil && (event.Payload == nil || *event.Payload != *expect.Payload) {
		fail("payload", quoted(*expect.Payload), quoted(deref(event.Payload)))
	}
	if expect.Deleted != nil && (event.Deleted == nil || *event.Deleted != *expect.Deleted) {
		fail("deleted", *expect.Deleted, deref(event.Deleted))
	}
	if expect.Released != nil && (event.Released == nil || *event.Released != *expect.Released) {
		fail("released", *expect.Released, deref(event.Released))
	}
}

func errorCode(err error) string {
	var se *store.Error
	switch {
	case errors.As(err, &se):
		return string(se.Code)
	case errors.Is(err, store.ErrLatchNotFound):
		return ErrorLatchNotFound
	}
	return ""
}

func rawJSON(v codec.Value) json.RawMessage {
	raw, ok := v.Raw()
	if !ok {
		return nil
	}
	return json.RawMessage(raw)
}

func payload(p maybe.Maybe[string]) *string {
	if s, ok := p.Get(); ok {
		return &s
	}
	return nil
}

func ptr[T any](v T) *T {
	return &v
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func quoted(s string) string {
	return fmt.Sprintf("%q", s)
}
