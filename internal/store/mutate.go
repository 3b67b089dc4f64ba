package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/vstore/internal/codec"
	"github.com/roach88/vstore/internal/maybe"
	"github.com/roach88/vstore/internal/script"
)

const (
	opTouch  = "checked touch"
	opSet    = "checked set"
	opClear  = "checked clear"
	opDelete = "checked delete"
)

// Field is a field name and the Go value to store under it.
type Field struct {
	Name  string
	Value any
}

// ModifiedValue records one field changed by a checked mutation.
type ModifiedValue struct {
	Field  string
	Before codec.Value
	After  codec.Value
}

// Modification is the result of an effective checked mutation.
type Modification struct {
	Entity *Entity

	// Inserted is true iff the mutation produced version 1.
	Inserted bool

	// Version is the entity version after the mutation.
	Version int64

	// Diff lists changed fields in caller order. Internal fields are
	// included.
	Diff []ModifiedValue

	// Payload is the change message published to the collection's change
	// channel, if one was published.
	Payload maybe.Maybe[string]
}

// Changed reports whether field is part of the diff.
func (m Modification) Changed(field string) bool {
	for _, mv := range m.Diff {
		if mv.Field == field {
			return true
		}
	}
	return false
}

// Fields returns the changed field names in diff order.
func (m Modification) Fields() []string {
	out := make([]string, len(m.Diff))
	for i, mv := range m.Diff {
		out[i] = mv.Field
	}
	return out
}

// pairs splits an alternating name/value list.
func pairs(op, key string, fieldsAndValues []any) ([]Field, error) {
	if len(fieldsAndValues)%2 != 0 {
		return nil, newArgumentError(op, key, "a value must be given for each field (got %d arguments)", len(fieldsAndValues))
	}
	out := make([]Field, 0, len(fieldsAndValues)/2)
	for i := 0; i < len(fieldsAndValues); i += 2 {
		name, ok := fieldsAndValues[i].(string)
		if !ok {
			return nil, newArgumentError(op, key, "field name at position %d is %T, want string", i, fieldsAndValues[i])
		}
		out = append(out, Field{Name: name, Value: fieldsAndValues[i+1]})
	}
	return out, nil
}

// CheckedTouch increments the version. The first touch inserts the entity:
// it is added to the index, {"<id>":{"v":1}} is published and insert
// callbacks run. Later touches only bump the version.
func (e *Entity) CheckedTouch(ctx context.Context) (Modification, error) {
	if err := e.client.checkOpen(); err != nil {
		return Modification{}, err
	}

	reply, err := e.client.scripts.EvalSlice(ctx, checkedTouchScript, e.scriptKeys(), e.scriptArgs()...)
	if err != nil {
		e.client.metrics.mutation(opTouch, outcomeFailed)
		return Modification{}, newTransactionError(opTouch, e.key, err)
	}
	mod, err := e.parseModification(opTouch, reply, 0)
	if err != nil {
		e.client.metrics.mutation(opTouch, outcomeFailed)
		return Modification{}, err
	}

	e.client.metrics.mutation(opTouch, outcomeApplied)
	e.client.callbacks.dispatchModification(e.client.metrics, mod)
	return mod, nil
}

// CheckedSet stores alternating field names and values, changing only the
// fields whose serialized form differs from what is stored.
//
// If nothing changed, nothing is written or published and the result is
// absent. Otherwise the version goes up by exactly one, version 1 adds the
// entity to the index, and a change message carrying the new version and
// every changed public field is published; a first insert is always
// published even when only internal fields changed. Fields with a nil value
// are skipped. Naming a field twice is an argument error.
func (e *Entity) CheckedSet(ctx context.Context, fieldsAndValues ...any) (maybe.Maybe[Modification], error) {
	fields, err := pairs(opSet, e.key, fieldsAndValues)
	if err != nil {
		return maybe.None[Modification](), err
	}
	return e.CheckedSetFields(ctx, fields...)
}

// CheckedSetAll is CheckedSet over a map, applied in sorted key order.
func (e *Entity) CheckedSetAll(ctx context.Context, values map[string]any) (maybe.Maybe[Modification], error) {
	return e.CheckedSetFields(ctx, sortedFields(values)...)
}

// CheckedSetFields is CheckedSet over explicit fields.
func (e *Entity) CheckedSetFields(ctx context.Context, fields ...Field) (maybe.Maybe[Modification], error) {
	return e.checkedSet(ctx, e.score(), fields)
}

func (e *Entity) checkedSet(ctx context.Context, score float64, fields []Field) (maybe.Maybe[Modification], error) {
	if err := e.client.checkOpen(); err != nil {
		return maybe.None[Modification](), err
	}

	args := e.scriptArgsWithScore(score)
	seen := make(map[string]struct{}, len(fields))
	n := 0
	for _, f := range fields {
		if err := validateField(opSet, e.key, f.Name); err != nil {
			return maybe.None[Modification](), err
		}
		if _, dup := seen[f.Name]; dup {
			return maybe.None[Modification](), newArgumentError(opSet, e.key, "field %q given more than once", f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Value == nil {
			continue
		}
		raw, err := e.client.codec.Encode(f.Value)
		if err != nil {
			return maybe.None[Modification](), newSerializationError(opSet, e.key, fmt.Errorf("field %s: %w", f.Name, err))
		}
		args = append(args, f.Name, codec.Quote(f.Name), raw)
		n++
	}
	if n == 0 {
		e.client.metrics.mutation(opSet, outcomeNoop)
		return maybe.None[Modification](), nil
	}

	return e.runDiffScript(ctx, opSet, checkedSetScript, args)
}

// CheckedClear removes the named fields that are present. Absent fields
// contribute nothing. If anything was removed the version goes up by one
// and {"<id>":{"v":n,"<field>":null,...}} is published for the public
// fields cleared.
func (e *Entity) CheckedClear(ctx context.Context, fields ...string) (maybe.Maybe[Modification], error) {
	if err := e.client.checkOpen(); err != nil {
		return maybe.None[Modification](), err
	}

	args := e.scriptArgs()
	for _, f := range fields {
		if err := validateField(opClear, e.key, f); err != nil {
			return maybe.None[Modification](), err
		}
		args = append(args, f, codec.Quote(f))
	}
	if len(fields) == 0 {
		e.client.metrics.mutation(opClear, outcomeNoop)
		return maybe.None[Modification](), nil
	}

	return e.runDiffScript(ctx, opClear, checkedClearScript, args)
}

func (e *Entity) runDiffScript(ctx context.Context, op string, s *script.Script, args []any) (maybe.Maybe[Modification], error) {
	reply, err := e.client.scripts.EvalSlice(ctx, s, e.scriptKeys(), args...)
	if errors.Is(err, redis.Nil) {
		e.client.metrics.mutation(op, outcomeNoop)
		return maybe.None[Modification](), nil
	}
	if err != nil {
		e.client.metrics.mutation(op, outcomeFailed)
		return maybe.None[Modification](), newTransactionError(op, e.key, err)
	}

	mod, err := e.parseModification(op, reply, 3)
	if err != nil {
		e.client.metrics.mutation(op, outcomeFailed)
		return maybe.None[Modification](), err
	}

	e.client.metrics.mutation(op, outcomeApplied)
	e.client.callbacks.dispatchModification(e.client.metrics, mod)
	return maybe.Some(mod), nil
}

// CheckedDelete removes the entity. Only when it existed is it removed from
// the index, {"<id>":null} published and delete callbacks run; the result
// reports whether that happened.
func (e *Entity) CheckedDelete(ctx context.Context) (bool, error) {
	if err := e.client.checkOpen(); err != nil {
		return false, err
	}

	reply, err := e.client.scripts.EvalSlice(ctx, checkedDeleteScript, e.scriptKeys(), e.id, codec.Quote(e.id))
	if err != nil {
		e.client.metrics.mutation(opDelete, outcomeFailed)
		return false, newTransactionError(opDelete, e.key, err)
	}
	if len(reply) == 0 {
		e.client.metrics.mutation(opDelete, outcomeFailed)
		return false, newTransactionError(opDelete, e.key, fmt.Errorf("empty reply"))
	}
	removed, _ := reply[0].(int64)
	if removed != 1 {
		e.client.metrics.mutation(opDelete, outcomeNoop)
		return false, nil
	}

	e.client.metrics.mutation(opDelete, outcomeApplied)
	e.client.callbacks.dispatchDelete(e.client.metrics, e)
	return true, nil
}

// parseModification decodes {version, payload, [field, before, after]...}.
// stride is 3 for diff replies and 0 for replies without a diff.
func (e *Entity) parseModification(op string, reply []any, stride int) (Modification, error) {
	if len(reply) < 2 {
		return Modification{}, newTransactionError(op, e.key, fmt.Errorf("short reply of %d elements", len(reply)))
	}
	version, ok := reply[0].(int64)
	if !ok {
		return Modification{}, newTransactionError(op, e.key, fmt.Errorf("version is %T, want integer", reply[0]))
	}

	mod := Modification{
		Entity:   e,
		Inserted: version == 1,
		Version:  version,
	}
	if payload, ok := reply[1].(string); ok {
		mod.Payload = maybe.Some(payload)
	}

	if stride == 0 {
		return mod, nil
	}
	rest := reply[2:]
	if len(rest)%stride != 0 {
		return Modification{}, newTransactionError(op, e.key, fmt.Errorf("diff of %d elements is not a multiple of %d", len(rest), stride))
	}
	mod.Diff = make([]ModifiedValue, 0, len(rest)/stride)
	for i := 0; i < len(rest); i += stride {
		field, ok := rest[i].(string)
		if !ok {
			return Modification{}, newTransactionError(op, e.key, fmt.Errorf("field name is %T, want string", rest[i]))
		}
		mod.Diff = append(mod.Diff, ModifiedValue{
			Field:  field,
			Before: codec.FromReply(e.client.codec, field, rest[i+1]),
			After:  codec.FromReply(e.client.codec, field, rest[i+2]),
		})
	}
	return mod, nil
}
