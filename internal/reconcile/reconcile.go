// Package reconcile merges raw snapshot records pushed by the remote store
// into a single deduplicated, consistently keyed view.
//
// Identity is derived by an ordered fallback over key fields rather than ad
// hoc comparisons at call sites. Conflicts between records sharing an identity
// are resolved last-write-wins on their normalized timestamps; ties keep the
// record that was seen first, which makes a pass deterministic and makes
// re-applying its own output a no-op. Reordering equal-timestamp duplicates
// between passes can change which copy wins; that is an accepted limitation of
// last-write-wins, not something this package papers over.
package reconcile

import (
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Record is one raw entity as delivered in a remote-store snapshot.
type Record map[string]any

// Policy controls how a record's identity and write time are derived.
// KeyFields are tried in order; the first field holding a non-empty value is
// the record's key. A record yielding no key is malformed and skipped.
type Policy struct {
	KeyFields  []string
	TimeFields []string
}

// VehiclePolicy keys vehicles by plate number, falling back to the
// store-assigned key for records created before plates were mandatory.
func VehiclePolicy() Policy {
	return Policy{
		KeyFields:  []string{"plate_number", "_key"},
		TimeFields: []string{"updated_at", "created_at"},
	}
}

// TripPolicy keys trips by their generated trip id.
func TripPolicy() Policy {
	return Policy{
		KeyFields:  []string{"trip_id", "_key"},
		TimeFields: []string{"updated_at", "created_at"},
	}
}

// Result is the outcome of one reconciliation pass. Records preserves the
// insertion order of each first-seen key; Index maps key to the surviving
// record. Skipped and DroppedDuplicates are diagnostic counts, they never
// abort a pass.
type Result struct {
	Records           []Record
	Index             map[string]Record
	Skipped           int
	DroppedDuplicates int
}

// Key derives the record's identity under the policy.
func (p Policy) Key(r Record) (string, bool) {
	for _, field := range p.KeyFields {
		if key := stringValue(r[field]); key != "" {
			return key, true
		}
	}
	return "", false
}

// Timestamp derives the record's write time under the policy. Records with no
// usable timestamp sort as the epoch, so any timestamped write beats them.
func (p Policy) Timestamp(r Record) time.Time {
	for _, field := range p.TimeFields {
		if ts, ok := NormalizeTime(r[field]); ok {
			return ts
		}
	}
	return time.Unix(0, 0).UTC()
}

// Reconcile folds the raw records into a deduplicated view under the policy.
// For each identity the record with the strictly newest timestamp wins; on
// equal timestamps the already-stored record is kept.
func Reconcile(records []Record, p Policy) Result {
	res := Result{Index: make(map[string]Record, len(records))}
	positions := make(map[string]int, len(records))

	for _, rec := range records {
		if rec == nil {
			res.Skipped++
			continue
		}
		key, ok := p.Key(rec)
		if !ok {
			res.Skipped++
			log.WithField("fields", len(rec)).Debug("skipping record with no derivable key")
			continue
		}

		pos, seen := positions[key]
		if !seen {
			positions[key] = len(res.Records)
			res.Records = append(res.Records, rec)
			res.Index[key] = rec
			continue
		}

		stored := res.Records[pos]
		if p.Timestamp(rec).After(p.Timestamp(stored)) {
			res.Records[pos] = rec
			res.Index[key] = rec
		}
		res.DroppedDuplicates++
	}

	return res
}

// NormalizeTime converts the timestamp representations the store is allowed
// to deliver (epoch milliseconds as a number, ISO-8601 strings, or native
// time values from the BSON decoder) into a time.Time.
func NormalizeTime(v any) (time.Time, bool) {
	switch ts := v.(type) {
	case time.Time:
		if ts.IsZero() {
			return time.Time{}, false
		}
		return ts, true
	case primitive.DateTime:
		return ts.Time(), true
	case float64:
		if ts <= 0 {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(ts)).UTC(), true
	case int64:
		if ts <= 0 {
			return time.Time{}, false
		}
		return time.UnixMilli(ts).UTC(), true
	case int:
		return NormalizeTime(int64(ts))
	case string:
		if ts == "" {
			return time.Time{}, false
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
			if parsed, err := time.Parse(layout, ts); err == nil {
				return parsed, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case primitive.ObjectID:
		if s.IsZero() {
			return ""
		}
		return s.Hex()
	default:
		return ""
	}
}
