// Package unread keeps per-user unread badge counters in step with row
// changes on the messages, notifications and notebox tables.
package unread

import (
	"fmt"
	"strings"
)

// ChangeType is the row operation carried by a change event.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// ChangeEvent is a database row-change payload as delivered by the
// database webhook or the row-change topic.
type ChangeEvent struct {
	Type      ChangeType             `json:"type"`
	Table     string                 `json:"table"`
	Schema    string                 `json:"schema"`
	Record    map[string]interface{} `json:"record"`
	OldRecord map[string]interface{} `json:"old_record"`
}

// Kind names one badge counter.
type Kind string

const (
	KindDM            Kind = "dm"
	KindNotifications Kind = "notifications"
	KindNoteBox       Kind = "notebox"
)

// Source binds a counter to the table and owner column that feed it.
type Source struct {
	Kind        Kind
	Table       string
	OwnerColumn string
}

// Sources lists every counted table.
var Sources = []Source{
	{Kind: KindDM, Table: "messages", OwnerColumn: "recipient_id"},
	{Kind: KindNotifications, Table: "notifications", OwnerColumn: "user_id"},
	{Kind: KindNoteBox, Table: "notebox", OwnerColumn: "recipient_id"},
}

func sourceFor(table string) (Source, bool) {
	for _, s := range Sources {
		if s.Table == table {
			return s, true
		}
	}
	return Source{}, false
}

// Delta is the counter change implied by one event.
// Recount is set when the event cannot be applied incrementally.
type Delta struct {
	UserID  string
	Kind    Kind
	Amount  int64
	Recount bool
}

// Reduce maps a change event onto a counter delta. The second return value
// is false when the event does not affect any counter.
//
//	INSERT of an unread row        +1
//	UPDATE is_read false -> true   -1
//	UPDATE is_read true -> false   +1
//	DELETE of an unread row        -1
func Reduce(ev ChangeEvent) (Delta, bool) {
	src, ok := sourceFor(ev.Table)
	if !ok {
		return Delta{}, false
	}

	switch ChangeType(strings.ToUpper(string(ev.Type))) {
	case ChangeInsert:
		owner := stringField(ev.Record, src.OwnerColumn)
		read, known := boolField(ev.Record, "is_read")
		if owner == "" || (known && read) {
			return Delta{}, false
		}
		return Delta{UserID: owner, Kind: src.Kind, Amount: 1}, true

	case ChangeUpdate:
		owner := stringField(ev.Record, src.OwnerColumn)
		if owner == "" {
			owner = stringField(ev.OldRecord, src.OwnerColumn)
		}
		if owner == "" {
			return Delta{}, false
		}
		newRead, newKnown := boolField(ev.Record, "is_read")
		oldRead, oldKnown := boolField(ev.OldRecord, "is_read")
		if !newKnown {
			return Delta{}, false
		}
		if !oldKnown {
			// old_record only carries the primary key unless the table has
			// REPLICA IDENTITY FULL, so the transition is unknown.
			return Delta{UserID: owner, Kind: src.Kind, Recount: true}, true
		}
		switch {
		case !oldRead && newRead:
			return Delta{UserID: owner, Kind: src.Kind, Amount: -1}, true
		case oldRead && !newRead:
			return Delta{UserID: owner, Kind: src.Kind, Amount: 1}, true
		}
		return Delta{}, false

	case ChangeDelete:
		owner := stringField(ev.OldRecord, src.OwnerColumn)
		if owner == "" {
			return Delta{}, false
		}
		read, known := boolField(ev.OldRecord, "is_read")
		if !known {
			return Delta{UserID: owner, Kind: src.Kind, Recount: true}, true
		}
		if read {
			return Delta{}, false
		}
		return Delta{UserID: owner, Kind: src.Kind, Amount: -1}, true
	}
	return Delta{}, false
}

func stringField(record map[string]interface{}, key string) string {
	v, ok := record[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func boolField(record map[string]interface{}, key string) (value bool, known bool) {
	v, ok := record[key]
	if !ok || v == nil {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		return b == "true" || b == "t", true
	}
	return false, false
}
