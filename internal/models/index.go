package models

import "time"

// FeatureVector is the fixed-length encoding of one book.
type FeatureVector struct {
	ID     string
	Values []float32
}

// Dimensions returns the vector length.
func (v FeatureVector) Dimensions() int {
	return len(v.Values)
}

// IndexEntry is the persisted form of a FeatureVector, stored under BookKey(ID).
type IndexEntry struct {
	ID              string
	Title           string
	Author          string
	Encoding        string
	EncodingVersion uint16
	Vector          []float32
}

// IndexMeta describes a built index. It is stored as JSON next to the entries so
// queries can validate compatibility.
type IndexMeta struct {
	Name            string    `json:"name"`
	Dimensions      int       `json:"dimensions"`
	Encoding        string    `json:"encoding"`
	EncodingVersion uint16    `json:"encoding_version"`
	Metric          string    `json:"metric"`
	Count           int       `json:"count"`
	Failed          int       `json:"failed"`
	BuildID         string    `json:"build_id"`
	BuiltAt         time.Time `json:"built_at"`
}

// Recommendation is one similar book.
type Recommendation struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// QueryResult holds at most K recommendations ordered by descending score,
// ties broken by ascending ID.
type QueryResult struct {
	Count           int               `json:"count"`
	Recommendations []*Recommendation `json:"recommendations"`
}

// NewQueryResult wraps recs and sets Count.
func NewQueryResult(recs []*Recommendation) *QueryResult {
	if recs == nil {
		recs = []*Recommendation{}
	}
	return &QueryResult{Count: len(recs), Recommendations: recs}
}
