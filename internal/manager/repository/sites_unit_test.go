package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/code-sleuth/ike-wp/pkg/db"
)

// Test NewSiteRepository constructor
func TestNewSiteRepository_Unit(t *testing.T) {
	dbWrapper := &db.DB{}
	repo := NewSiteRepository(dbWrapper)

	if repo == nil {
		t.Fatal("Expected non-nil repository")
	}
	if repo.db != dbWrapper {
		t.Error("Expected database to be set correctly")
	}
}

// Test error constants
func TestSiteRepository_ErrorConstants(t *testing.T) {
	if ErrSiteNotFound.Error() != "site not found" {
		t.Errorf("Expected 'site not found', got '%s'", ErrSiteNotFound.Error())
	}
}

type fakeRow struct {
	values []any
	err    error
}

func (f fakeRow) Scan(dest ...any) error {
	if f.err != nil {
		return f.err
	}
	for i, d := range dest {
		switch ptr := d.(type) {
		case *string:
			*ptr = f.values[i].(string)
		case *int:
			*ptr = f.values[i].(int)
		}
	}
	return nil
}

func TestScanSite(t *testing.T) {
	errScan := errors.New("scan failed")

	tests := []struct {
		name         string
		row          fakeRow
		expectError  bool
		expectedTime time.Time
		description  string
	}{
		{
			name: "valid row",
			row: fakeRow{values: []any{
				"example.com", "https://example.com", "https://example.com/wp-json/",
				"run-1", 42, "2024-05-01T10:00:00Z",
			}},
			expectedTime: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
			description:  "should map every column",
		},
		{
			name: "unparseable timestamp",
			row: fakeRow{values: []any{
				"example.com", "https://example.com", "https://example.com/wp-json/",
				"run-1", 42, "yesterday",
			}},
			description: "should leave the timestamp zero",
		},
		{
			name:        "scan error",
			row:         fakeRow{err: errScan},
			expectError: true,
			description: "should return scan errors",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site, err := scanSite(tt.row)
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error for test: %s", tt.description)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error for test %s: %v", tt.description, err)
			}

			if site.Host != "example.com" || site.ChunkCount != 42 || site.RunID != "run-1" {
				t.Errorf("Unexpected site %+v", site)
			}
			if !site.IngestedAt.Equal(tt.expectedTime) {
				t.Errorf("Expected ingested_at %v, got %v", tt.expectedTime, site.IngestedAt)
			}
		})
	}
}
