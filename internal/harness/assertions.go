package harness

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/vstore/internal/codec"
	"github.com/roach88/vstore/internal/store"
)

// AssertionContext provides what assertions need to inspect final state.
type AssertionContext struct {
	Ctx        context.Context
	Client     *store.Client
	Collection string
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type      string   // Assertion type for categorization
	Expected  string   // Human-readable expected outcome
	Actual    string   // Human-readable actual outcome
	Published []string // Published messages for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Published) > 0 {
		fmt.Fprintf(&buf, "\nPublished:\n")
		for i, msg := range e.Published {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, msg)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertPublishedCount:
			err = assertPublishedCount(result, a)
		case AssertFinalState:
			err = assertFinalState(actx, result, a)
		case AssertIndexMembers:
			err = assertIndexMembers(actx, result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return failures
}

func assertPublishedCount(result *Result, a Assertion) error {
	if len(result.Published) == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:      AssertPublishedCount,
		Expected:  fmt.Sprintf("%d messages", *a.Count),
		Actual:    fmt.Sprintf("%d messages", len(result.Published)),
		Published: result.Published,
	}
}

func assertFinalState(actx *AssertionContext, result *Result, a Assertion) error {
	e, err := actx.Client.Entity(actx.Collection, a.ID)
	if err != nil {
		return err
	}

	if a.Exists != nil {
		exists, err := e.Exists(actx.Ctx)
		if err != nil {
			return err
		}
		if exists != *a.Exists {
			return &AssertionError{
				Type:      AssertFinalState,
				Expected:  fmt.Sprintf("%s exists=%v", a.ID, *a.Exists),
				Actual:    fmt.Sprintf("exists=%v", exists),
				Published: result.Published,
			}
		}
	}

	if a.Version != nil {
		v, err := e.Version(actx.Ctx)
		if err != nil {
			return err
		}
		if v != *a.Version {
			return &AssertionError{
				Type:      AssertFinalState,
				Expected:  fmt.Sprintf("%s version %d", a.ID, *a.Version),
				Actual:    fmt.Sprintf("version %d", v),
				Published: result.Published,
			}
		}
	}

	if len(a.Fields) == 0 {
		return nil
	}
	stored, err := e.GetAll(actx.Ctx)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(a.Fields))
	for name := range a.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		want, err := codec.Default.Encode(a.Fields[name])
		if err != nil {
			return fmt.Errorf("encode expected %s: %w", name, err)
		}
		got := "<absent>"
		if v, ok := stored[name]; ok {
			got, _ = v.Raw()
		}
		if got != want {
			return &AssertionError{
				Type:      AssertFinalState,
				Expected:  fmt.Sprintf("%s.%s = %s", a.ID, name, want),
				Actual:    got,
				Published: result.Published,
			}
		}
	}
	return nil
}

func assertIndexMembers(actx *AssertionContext, result *Result, a Assertion) error {
	x, err := actx.Client.Index(actx.Collection)
	if err != nil {
		return err
	}
	ids, err := x.IDs(actx.Ctx)
	if err != nil {
		return err
	}

	got := slices.Sorted(slices.Values(ids))
	want := slices.Sorted(slices.Values(a.Members))
	if slices.Equal(got, want) {
		return nil
	}
	return &AssertionError{
		Type:      AssertIndexMembers,
		Expected:  fmt.Sprintf("%v", want),
		Actual:    fmt.Sprintf("%v", got),
		Published: result.Published,
	}
}
