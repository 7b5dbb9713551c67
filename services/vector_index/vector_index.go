// Package vector_index holds the persistent record stores behind the
// knowledge base. A Backend owns the physical location (a directory or a
// database table); an Index is an open handle on one collection in it.
package vector_index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Record is one stored chunk. Metadata values are JSON scalars; whole
// numbers are read back as int, other numbers as float64.
type Record struct {
	ID        string
	Content   string
	Metadata  map[string]any
	Embedding []float32
}

// Match is a record returned by Query with its squared L2 distance to the
// query vector. Smaller is closer.
type Match struct {
	Record
	Distance float64
}

type Index interface {
	// Upsert writes all records in one transaction: either all are stored
	// or none are.
	Upsert(ctx context.Context, records []Record) error
	// Query returns up to k records nearest to vector, closest first.
	Query(ctx context.Context, vector []float32, k int) ([]Match, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

type Backend interface {
	// Open creates the collection if needed and returns a handle on it.
	Open(ctx context.Context, collection string, dimension int) (Index, error)
	// Destroy removes everything the backend persisted for the collection.
	// Handles returned by Open must be closed first.
	Destroy(ctx context.Context, collection string) error
	// Location describes where records are persisted.
	Location() string
}

// SquaredL2 is the distance used by every backend.
func SquaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

func checkDimension(vector []float32, dimension int) error {
	if len(vector) != dimension {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), dimension)
	}
	return nil
}

// decodeMetadata parses stored metadata, keeping integral numbers such as a
// page index as int.
func decodeMetadata(data string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	var metadata map[string]any
	if err := dec.Decode(&metadata); err != nil {
		return nil, err
	}
	for key, value := range metadata {
		n, ok := value.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			metadata[key] = int(i)
		} else if f, err := n.Float64(); err == nil {
			metadata[key] = f
		} else {
			return nil, fmt.Errorf("metadata %s: %w", key, err)
		}
	}
	return metadata, nil
}
