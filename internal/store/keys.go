package store

import "strings"

const (
	// Separator joins a collection and an id into an entity key, and a
	// collection and "change" into its change channel. Collections and ids
	// must not contain it.
	Separator = ":"

	// VersionField is the reserved hash field holding the entity version.
	VersionField = "v"

	// Wildcard registers a change callback for every field.
	Wildcard = "*"

	// DefaultInternalPrefix marks fields that are never published.
	DefaultInternalPrefix = "_"

	reservedPrefix = "@"
	changeSuffix   = "change"
	latchNamespace = reservedPrefix + "latch"
	remainingField = "remaining"
)

// EntityKey returns the hash key of an entity.
func EntityKey(collection, id string) string {
	return collection + Separator + id
}

// ChangeChannel returns the channel on which a collection's changes are
// published.
func ChangeChannel(collection string) string {
	return collection + Separator + changeSuffix
}

// LatchKey returns the hash key of a count-down latch.
func LatchKey(id string) string {
	return latchNamespace + Separator + id
}

func validateCollection(op, collection string) error {
	switch {
	case collection == "":
		return newArgumentError(op, "", "empty collection name")
	case strings.Contains(collection, Separator):
		return newArgumentError(op, collection, "collection name contains %q", Separator)
	case strings.HasPrefix(collection, reservedPrefix):
		return newArgumentError(op, collection, "collection name starts with reserved %q", reservedPrefix)
	}
	return nil
}

func validateID(op, collection, id string) error {
	switch {
	case id == "":
		return newArgumentError(op, collection, "empty id")
	case strings.Contains(id, Separator):
		return newArgumentError(op, EntityKey(collection, id), "id contains %q", Separator)
	}
	return nil
}

// validateField rejects names that can't be stored as user fields.
func validateField(op, key, field string) error {
	switch field {
	case "":
		return newArgumentError(op, key, "empty field name")
	case VersionField:
		return newArgumentError(op, key, "field %q is reserved for the version", VersionField)
	case Wildcard:
		return newArgumentError(op, key, "field %q is reserved for wildcard callbacks", Wildcard)
	}
	return nil
}
