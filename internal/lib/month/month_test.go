package month

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStart(t *testing.T) {
	madrid := time.FixedZone("CET", 3600)

	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "middle of month",
			in:   time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC),
			want: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "first instant",
			in:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "local midnight belongs to previous month in UTC",
			in:   time.Date(2024, 4, 1, 0, 30, 0, 0, madrid),
			want: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "leap day",
			in:   time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC),
			want: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Start(tt.in))
		})
	}
}
