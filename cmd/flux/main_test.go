package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pbaille/flux/internal/domain"
)

func TestHeadlessCanvasFitsCards(t *testing.T) {
	tests := []struct {
		name string
		fp   domain.Footprint
		want domain.Bounds
	}{
		{"terminal cards", domain.Footprint{Width: 24, Height: 3}, domain.Bounds{Width: 96, Height: 24}},
		{"small cards", domain.Footprint{Width: 10, Height: 2}, domain.Bounds{Width: 80, Height: 24}},
		{"pixel cards", domain.Footprint{Width: 200, Height: 40}, domain.Bounds{Width: 800, Height: 160}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := headlessCanvas(tt.fp)
			assert.Equal(t, tt.want, got)
			assert.False(t, got.Degenerate(tt.fp))
		})
	}
}
