// Package factor mediates every mutation of the threshold key's share set.
//
// The manager presents a conflict-tolerant veneer over the external
// threshold-key service: each mutating operation resynchronizes first, and a
// detected metadata version conflict triggers exactly one resync-and-retry of
// the whole operation. Metadata changes are committed durably only while the
// session is Ready.
package factor
