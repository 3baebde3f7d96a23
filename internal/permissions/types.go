package permissions

import (
	"fmt"
	"sort"
)

// Type identifies a single grantable action on the platform.
type Type uint8

const (
	TypeRead Type = iota
	TypeComment
	TypeVote
	TypeShare
	TypeCreate
	TypeEdit
	TypeDelete
	TypeDraft
	TypeApprove
	TypeModerate
	TypePublish
	TypeArchive
	TypePin
	TypeTranslate
	TypeExportContent
	TypeInviteUser
	TypeScheduleLab
	TypeManageLab
	TypeManageGrants
	TypeManageDomains
	TypeManageGroups
	TypeManageMembers
)

// bitIndex is the single source of truth mapping each Type to its bit
// position across the two 64-bit grant words. The mapping is append-only:
// positions of existing entries must never change, or previously persisted
// grants would silently decode into different permissions. Content-level
// actions live in word 0; tenant administration actions live in word 1.
var bitIndex = map[Type]uint8{
	TypeRead:          0,
	TypeComment:       1,
	TypeVote:          2,
	TypeShare:         3,
	TypeCreate:        4,
	TypeEdit:          5,
	TypeDelete:        6,
	TypeDraft:         7,
	TypeApprove:       8,
	TypeModerate:      9,
	TypePublish:       10,
	TypeArchive:       11,
	TypePin:           12,
	TypeTranslate:     13,
	TypeExportContent: 14,
	TypeInviteUser:    15,
	TypeScheduleLab:   16,
	TypeManageLab:     17,

	TypeManageGrants:  64,
	TypeManageDomains: 65,
	TypeManageGroups:  66,
	TypeManageMembers: 67,
}

var typeNames = map[Type]string{
	TypeRead:          "read",
	TypeComment:       "comment",
	TypeVote:          "vote",
	TypeShare:         "share",
	TypeCreate:        "create",
	TypeEdit:          "edit",
	TypeDelete:        "delete",
	TypeDraft:         "draft",
	TypeApprove:       "approve",
	TypeModerate:      "moderate",
	TypePublish:       "publish",
	TypeArchive:       "archive",
	TypePin:           "pin",
	TypeTranslate:     "translate",
	TypeExportContent: "export_content",
	TypeInviteUser:    "invite_user",
	TypeScheduleLab:   "schedule_lab",
	TypeManageLab:     "manage_lab",
	TypeManageGrants:  "manage_grants",
	TypeManageDomains: "manage_domains",
	TypeManageGroups:  "manage_groups",
	TypeManageMembers: "manage_members",
}

var nameToType map[string]Type

func init() {
	// A duplicated bit position would make two distinct permissions
	// indistinguishable in storage. Fail hard before any grant is written.
	seen := make(map[uint8]Type, len(bitIndex))
	for t, pos := range bitIndex {
		if pos >= totalBits {
			panic(fmt.Sprintf("permissions: bit position %d of %q exceeds %d-bit capacity", pos, typeNames[t], totalBits))
		}
		if prev, dup := seen[pos]; dup {
			panic(fmt.Sprintf("permissions: types %q and %q share bit position %d", typeNames[prev], typeNames[t], pos))
		}
		seen[pos] = t
		if _, ok := typeNames[t]; !ok {
			panic(fmt.Sprintf("permissions: type %d has a bit position but no name", t))
		}
	}

	nameToType = make(map[string]Type, len(typeNames))
	for t, name := range typeNames {
		if _, ok := bitIndex[t]; !ok {
			panic(fmt.Sprintf("permissions: type %q has a name but no bit position", name))
		}
		nameToType[name] = t
	}
}

// String returns the stable wire name of the permission type.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// Parse resolves a wire name back to its permission type.
func Parse(name string) (Type, bool) {
	t, ok := nameToType[name]
	return t, ok
}

// All returns every registered permission type in bit-position order.
func All() []Type {
	out := make([]Type, 0, len(bitIndex))
	for t := range bitIndex {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return bitIndex[out[i]] < bitIndex[out[j]]
	})
	return out
}

// position resolves the bit index for a type. An unmapped type is a
// programming error, never a silent no-op: truncating the bit would
// corrupt whichever grant it was meant to land in.
func position(t Type) uint8 {
	pos, ok := bitIndex[t]
	if !ok {
		panic(fmt.Sprintf("permissions: type %d has no registered bit position", uint8(t)))
	}
	return pos
}
