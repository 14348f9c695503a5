package typewiz

// FileFingerprint is the per-file content identity used by the cache key.
// Exactly one of {Hash set, Missing, Unreadable} holds at a time; Missing
// and Unreadable are stable sentinel tokens that still participate in
// hashing (spec §3, §4.B step 6).
type FileFingerprint struct {
	Hash       string
	Mtime      int64
	Size       int64
	Missing    bool
	Unreadable bool
}

// Equal reports whether two fingerprints are identical for cache-key
// comparison purposes (spec §4.E lookup protocol: element-for-element
// equality, including the sentinel states).
func (f FileFingerprint) Equal(other FileFingerprint) bool {
	return f.Hash == other.Hash &&
		f.Mtime == other.Mtime &&
		f.Size == other.Size &&
		f.Missing == other.Missing &&
		f.Unreadable == other.Unreadable
}

// FingerprintMapEqual reports whether two fingerprint maps are equal
// element-for-element (spec §4.E CacheEntry invariant).
func FingerprintMapEqual(a, b map[string]FileFingerprint) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		other, ok := b[k]
		if !ok || !v.Equal(other) {
			return false
		}
	}
	return true
}
