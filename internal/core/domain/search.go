package domain

// SimilarityHit is one result of a similarity query.
// Score is cosine similarity; higher is closer.
type SimilarityHit struct {
	SerialNumber string       `json:"serial_number"`
	Kind         DocumentKind `json:"kind"`
	Score        float64      `json:"score"`
}

// HydratedHit pairs a hit with its stored record.
// Record is nil when the key is indexed but no longer stored.
type HydratedHit struct {
	SimilarityHit
	Record *CanonicalRecord `json:"-"`
}
