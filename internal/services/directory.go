package services

import (
	"context"
	"strings"

	"stitch/internal/identity"
)

// Type identifies a supported service kind.
type Type string

const (
	TypePlex      Type = "plex"
	TypeJellyfin  Type = "jellyfin"
	TypeEmby      Type = "emby"
	TypeOverseerr Type = "overseerr"
	TypeAuthentik Type = "authentik"
)

var allTypes = []Type{
	TypePlex,
	TypeJellyfin,
	TypeEmby,
	TypeOverseerr,
	TypeAuthentik,
}

var typeSet = func() map[Type]struct{} {
	set := make(map[Type]struct{}, len(allTypes))
	for _, t := range allTypes {
		set[t] = struct{}{}
	}
	return set
}()

// AllTypes returns the supported service types.
func AllTypes() []Type {
	cp := make([]Type, len(allTypes))
	copy(cp, allTypes)
	return cp
}

// ParseType converts a string into a known service Type.
func ParseType(value string) (Type, bool) {
	normalized := Type(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := typeSet[normalized]
	return normalized, ok
}

// UserLister is the protocol-level surface a service adapter implements.
type UserLister interface {
	ListUsers(ctx context.Context) ([]identity.Record, error)
}

// Directory is one enabled service bound to the client that lists its users.
// Records returned by ListUsers are stamped with the directory's config ID and
// service type.
type Directory interface {
	UserLister
	ServiceConfigID() int64
	Type() Type
	Name() string
}

type boundDirectory struct {
	id     int64
	kind   Type
	name   string
	lister UserLister
}

// Bind attaches a service configuration identity to a protocol client.
func Bind(id int64, kind Type, name string, lister UserLister) Directory {
	return &boundDirectory{id: id, kind: kind, name: name, lister: lister}
}

func (d *boundDirectory) ServiceConfigID() int64 { return d.id }
func (d *boundDirectory) Type() Type             { return d.kind }
func (d *boundDirectory) Name() string           { return d.name }

func (d *boundDirectory) ListUsers(ctx context.Context) ([]identity.Record, error) {
	records, err := d.lister.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].ServiceConfigID = d.id
		records[i].Service = string(d.kind)
	}
	return records, nil
}
